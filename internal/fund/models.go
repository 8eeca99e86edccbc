package fund

import (
	"time"

	"github.com/google/uuid"

	id "kayo/pkg/domain"
)

// Pledge sources.
const (
	SourceDelegate    = "delegate"
	SourceWellWisher  = "well_wisher"
	SourceFundraising = "fundraising"
)

// ValidSource reports whether s is a known pledge source.
func ValidSource(s string) bool {
	switch s {
	case SourceDelegate, SourceWellWisher, SourceFundraising:
		return true
	}
	return false
}

// Pledge lifecycle, derived from amounts rather than stored decisions.
const (
	PledgePending   = "pending"
	PledgePartial   = "partial"
	PledgeFulfilled = "fulfilled"
	PledgeCancelled = "cancelled"
)

// Pledge is a promise of funds toward an event.
type Pledge struct {
	ID                 id.PledgeID   `json:"id"`
	SourceType         string        `json:"source_type"`
	SourceName         string        `json:"source_name"`
	SourcePhone        string        `json:"source_phone,omitempty"`
	SourceEmail        string        `json:"source_email,omitempty"`
	DelegateID         id.DelegateID `json:"delegate_id,omitempty"`
	AmountPledgedCents int64         `json:"amount_pledged_cents"`
	AmountPaidCents    int64         `json:"amount_paid_cents"`
	Status             string        `json:"status"`
	EventID            id.EventID    `json:"event_id,omitempty"`
	RecordedBy         id.UserID     `json:"recorded_by"`
	LocalChurch        string        `json:"local_church,omitempty"`
	Parish             string        `json:"parish,omitempty"`
	Archdeaconry       string        `json:"archdeaconry,omitempty"`
	Description        string        `json:"description,omitempty"`
	DueDate            *time.Time    `json:"due_date,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// DeriveStatus recomputes the pledge status from its amounts. Cancelled
// pledges stay cancelled.
func (p Pledge) DeriveStatus() string {
	switch {
	case p.Status == PledgeCancelled:
		return PledgeCancelled
	case p.AmountPaidCents <= 0:
		return PledgePending
	case p.AmountPaidCents < p.AmountPledgedCents:
		return PledgePartial
	default:
		return PledgeFulfilled
	}
}

// Pledge payment confirmation states.
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentRejected  = "rejected"
)

// PledgePayment is one amount received against a pledge; it counts only
// once confirmed.
type PledgePayment struct {
	ID          id.PledgePaymentID `json:"id"`
	PledgeID    id.PledgeID        `json:"pledge_id"`
	AmountCents int64              `json:"amount_cents"`
	Method      string             `json:"method"`
	Reference   string             `json:"reference,omitempty"`
	Notes       string             `json:"notes,omitempty"`
	Status      string             `json:"status"`
	ConfirmedBy id.UserID          `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time         `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Payment methods for pledge and installment collections.
const (
	MethodMpesa = "mpesa"
	MethodCash  = "cash"
	MethodBank  = "bank"
)

func ValidMethod(m string) bool {
	switch m {
	case MethodMpesa, MethodCash, MethodBank:
		return true
	}
	return false
}

// Schedule frequencies.
const (
	FrequencyOnce    = "once"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

func ValidFrequency(f string) bool {
	switch f {
	case FrequencyOnce, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Schedule statuses.
const (
	ScheduleActive    = "active"
	ScheduleCompleted = "completed"
	ScheduleCancelled = "cancelled"
)

// ScheduledPayment is a recurring collection plan.
type ScheduledPayment struct {
	ID                  id.ScheduleID `json:"id"`
	SourceType          string        `json:"source_type"`
	SourceName          string        `json:"source_name"`
	SourcePhone         string        `json:"source_phone,omitempty"`
	DelegateID          id.DelegateID `json:"delegate_id,omitempty"`
	AmountCents         int64         `json:"amount_cents"`
	Frequency           string        `json:"frequency"`
	StartDate           time.Time     `json:"start_date"`
	EndDate             *time.Time    `json:"end_date,omitempty"`
	NextPaymentDate     *time.Time    `json:"next_payment_date,omitempty"`
	TotalExpectedCents  int64         `json:"total_expected_cents"`
	TotalCollectedCents int64         `json:"total_collected_cents"`
	Status              string        `json:"status"`
	EventID             id.EventID    `json:"event_id,omitempty"`
	RecordedBy          id.UserID     `json:"recorded_by"`
	Description         string        `json:"description,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// NextAfter computes the due date following from. Zero time means the
// schedule has no further installments.
func (sp ScheduledPayment) NextAfter(from time.Time) time.Time {
	var next time.Time
	switch sp.Frequency {
	case FrequencyOnce:
		return time.Time{}
	case FrequencyWeekly:
		next = from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		next = from.AddDate(0, 1, 0)
	default:
		return time.Time{}
	}
	if sp.EndDate != nil && next.After(*sp.EndDate) {
		return time.Time{}
	}
	return next
}

// Installment statuses.
const (
	InstallmentPending = "pending"
	InstallmentPaid    = "paid"
	InstallmentMissed  = "missed"
)

// Installment is one due collection of a schedule.
type Installment struct {
	ID              id.InstallmentID `json:"id"`
	ScheduleID      id.ScheduleID    `json:"schedule_id"`
	DueDate         time.Time        `json:"due_date"`
	AmountDueCents  int64            `json:"amount_due_cents"`
	AmountPaidCents int64            `json:"amount_paid_cents"`
	Method          string           `json:"method,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	Status          string           `json:"status"`
	ConfirmedBy     id.UserID        `json:"confirmed_by,omitempty"`
	ConfirmedAt     *time.Time       `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
}

// Transfer stages: collections climb the hierarchy one hop at a time.
const (
	StageChairToYM   = "chair_to_ym"
	StageYMToFinance = "ym_to_finance"
)

// Transfer statuses.
const (
	TransferPending   = "pending"
	TransferApproved  = "approved"
	TransferCompleted = "completed"
	TransferRejected  = "rejected"
)

// Transfer moves collected funds from one custodian to the next.
type Transfer struct {
	ID           id.TransferID `json:"id"`
	Reference    string        `json:"reference"`
	AmountCents  int64         `json:"amount_cents"`
	FromUserID   id.UserID     `json:"from_user_id"`
	FromRole     string        `json:"from_role"`
	ToUserID     id.UserID     `json:"to_user_id"`
	ToRole       string        `json:"to_role"`
	Stage        string        `json:"stage"`
	Status       string        `json:"status"`
	LocalChurch  string        `json:"local_church,omitempty"`
	Parish       string        `json:"parish,omitempty"`
	Archdeaconry string        `json:"archdeaconry,omitempty"`
	EventID      id.EventID    `json:"event_id,omitempty"`
	Description  string        `json:"description,omitempty"`
	Attachments  []string      `json:"attachments"`
	CreatedAt    time.Time     `json:"created_at"`
	ApprovedAt   *time.Time    `json:"approved_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// TransferApproval is one action in a transfer's history.
type TransferApproval struct {
	ID         uuid.UUID     `json:"id"`
	TransferID id.TransferID `json:"transfer_id"`
	ActorID    id.UserID     `json:"actor_id"`
	Action     string        `json:"action"`
	Notes      string        `json:"notes,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// CreatePledgeRequest records a new pledge.
type CreatePledgeRequest struct {
	SourceType         string `json:"source_type"`
	SourceName         string `json:"source_name"`
	SourcePhone        string `json:"source_phone"`
	SourceEmail        string `json:"source_email"`
	DelegateID         string `json:"delegate_id"`
	AmountPledgedCents int64  `json:"amount_pledged_cents"`
	EventID            string `json:"event_id"`
	LocalChurch        string `json:"local_church"`
	Parish             string `json:"parish"`
	Archdeaconry       string `json:"archdeaconry"`
	Description        string `json:"description"`
	DueDate            string `json:"due_date"`
}

// RecordPledgePaymentRequest adds a payment against a pledge.
type RecordPledgePaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
	Notes       string `json:"notes"`
}

// CreateScheduleRequest opens a recurring collection plan.
type CreateScheduleRequest struct {
	SourceType  string `json:"source_type"`
	SourceName  string `json:"source_name"`
	SourcePhone string `json:"source_phone"`
	DelegateID  string `json:"delegate_id"`
	AmountCents int64  `json:"amount_cents"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	EventID     string `json:"event_id"`
	Description string `json:"description"`
}

// PayInstallmentRequest records payment of one installment.
type PayInstallmentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Reference   string `json:"reference"`
}

// CreateTransferRequest opens a transfer to the next custodian.
type CreateTransferRequest struct {
	AmountCents int64    `json:"amount_cents"`
	ToUserID    string   `json:"to_user_id"`
	EventID     string   `json:"event_id"`
	Description string   `json:"description"`
	Attachments []string `json:"attachments"`
}

// TransferActionRequest approves, completes or rejects a transfer.
type TransferActionRequest struct {
	Notes string `json:"notes"`
}

// TransferStats summarizes transfers for the dashboard, in cents.
type TransferStats struct {
	PendingCount   int   `json:"pending_count"`
	PendingCents   int64 `json:"pending_cents"`
	CompletedCount int   `json:"completed_count"`
	CompletedCents int64 `json:"completed_cents"`
	RejectedCount  int   `json:"rejected_count"`
}

// PledgeStats summarizes pledges, in cents.
type PledgeStats struct {
	TotalPledgedCents int64 `json:"total_pledged_cents"`
	TotalPaidCents    int64 `json:"total_paid_cents"`
	Pending           int   `json:"pending"`
	Partial           int   `json:"partial"`
	Fulfilled         int   `json:"fulfilled"`
}
