package payment

import (
	"context"
	"time"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

type Store interface {
	Insert(ctx context.Context, payment Payment) error
	Update(ctx context.Context, payment Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (Payment, error)
	FindByCheckoutID(ctx context.Context, checkoutRequestID string) (Payment, error)
	List(ctx context.Context, filter Filter) ([]Payment, error)
	// PendingPushes returns pending payments that have an outstanding
	// STK push to poll.
	PendingPushes(ctx context.Context, olderThan time.Time) ([]Payment, error)
	Totals(ctx context.Context) (Totals, error)
}

type DiscrepancyStore interface {
	Insert(ctx context.Context, d Discrepancy) error
	Update(ctx context.Context, d Discrepancy) error
	FindByID(ctx context.Context, discrepancyID id.DiscrepancyID) (Discrepancy, error)
	List(ctx context.Context, status string) ([]Discrepancy, error)
}

type ReminderStore interface {
	Insert(ctx context.Context, r Reminder) error
	// ForDelegate returns reminders already sent to a delegate, newest
	// first.
	ForDelegate(ctx context.Context, delegateID id.DelegateID) ([]Reminder, error)
}
