package fund

import (
	"context"
	"time"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

// ErrNotFound indicates the requested fund record does not exist.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

// PledgeFilter narrows pledge listings.
type PledgeFilter struct {
	EventID    id.EventID
	RecordedBy id.UserID
	Status     string
	SourceType string
}

// PledgeStore persists pledges and their payments.
type PledgeStore interface {
	Insert(ctx context.Context, p Pledge) error
	Update(ctx context.Context, p Pledge) error
	FindByID(ctx context.Context, pledgeID id.PledgeID) (Pledge, error)
	List(ctx context.Context, filter PledgeFilter) ([]Pledge, error)
	Stats(ctx context.Context, eventID id.EventID) (PledgeStats, error)

	InsertPayment(ctx context.Context, pp PledgePayment) error
	UpdatePayment(ctx context.Context, pp PledgePayment) error
	FindPayment(ctx context.Context, paymentID id.PledgePaymentID) (PledgePayment, error)
	PaymentsFor(ctx context.Context, pledgeID id.PledgeID) ([]PledgePayment, error)
}

// ScheduleStore persists recurring payment plans and their installments.
type ScheduleStore interface {
	Insert(ctx context.Context, sp ScheduledPayment) error
	Update(ctx context.Context, sp ScheduledPayment) error
	FindByID(ctx context.Context, scheduleID id.ScheduleID) (ScheduledPayment, error)
	List(ctx context.Context, status string) ([]ScheduledPayment, error)
	// Due returns active schedules whose next payment date is on or
	// before the given day.
	Due(ctx context.Context, on time.Time) ([]ScheduledPayment, error)

	InsertInstallment(ctx context.Context, in Installment) error
	UpdateInstallment(ctx context.Context, in Installment) error
	FindInstallment(ctx context.Context, installmentID id.InstallmentID) (Installment, error)
	InstallmentsFor(ctx context.Context, scheduleID id.ScheduleID) ([]Installment, error)
}

// TransferFilter narrows transfer listings. ParticipantID matches
// transfers the user appears on either side of.
type TransferFilter struct {
	ParticipantID id.UserID
	ToUserID      id.UserID
	Status        string
	Stage         string
	EventID       id.EventID
}

// TransferStore persists fund transfers and their action history.
type TransferStore interface {
	Insert(ctx context.Context, t Transfer) error
	Update(ctx context.Context, t Transfer) error
	FindByID(ctx context.Context, transferID id.TransferID) (Transfer, error)
	List(ctx context.Context, filter TransferFilter) ([]Transfer, error)
	Stats(ctx context.Context, filter TransferFilter) (TransferStats, error)

	// AppendApproval records one action in the transfer's history. The
	// history is append only.
	AppendApproval(ctx context.Context, a TransferApproval) error
	ApprovalsFor(ctx context.Context, transferID id.TransferID) ([]TransferApproval, error)
}
