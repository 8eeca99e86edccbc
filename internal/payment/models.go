package payment

import (
	"time"

	id "kayo/pkg/domain"
)

// Payment lifecycle.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Finance review chain for manual payments.
const (
	FinancePendingApproval = "pending_approval"
	FinanceApproved        = "approved"
	FinanceRejected        = "rejected"
)

// Payment modes.
const (
	ModeMpesaPaybill = "mpesa_paybill"
	ModeMpesaManual  = "mpesa_manual"
	ModeCash         = "cash"
	ModeBank         = "bank"
)

// ValidManualMode reports whether mode may be recorded by hand. STK
// push payments always use mpesa_paybill.
func ValidManualMode(mode string) bool {
	switch mode {
	case ModeMpesaManual, ModeCash, ModeBank:
		return true
	}
	return false
}

// Payment is one fee collection attempt covering one or more delegates.
// All amounts are in cents.
type Payment struct {
	ID                id.PaymentID `json:"id"`
	UserID            id.UserID    `json:"user_id"`
	EventID           id.EventID   `json:"event_id,omitempty"`
	TierID            id.TierID    `json:"tier_id,omitempty"`
	AmountCents       int64        `json:"amount_cents"`
	Mode              string       `json:"payment_mode"`
	TransactionID     string       `json:"transaction_id,omitempty"`
	MpesaReceipt      string       `json:"mpesa_receipt,omitempty"`
	CheckoutRequestID string       `json:"checkout_request_id,omitempty"`
	MerchantRequestID string       `json:"merchant_request_id,omitempty"`
	PhoneNumber       string       `json:"phone_number,omitempty"`
	Status            string       `json:"status"`
	ResultCode        string       `json:"result_code,omitempty"`
	ResultDesc        string       `json:"result_desc,omitempty"`
	FinanceStatus     string       `json:"finance_status"`
	ConfirmedByChair  id.UserID    `json:"confirmed_by_chair,omitempty"`
	ChairConfirmedAt  *time.Time   `json:"chair_confirmed_at,omitempty"`
	ApprovedByFinance id.UserID    `json:"approved_by_finance,omitempty"`
	FinanceApprovedAt *time.Time   `json:"finance_approved_at,omitempty"`
	FinanceNotes      string       `json:"finance_notes,omitempty"`
	RejectionReason   string       `json:"rejection_reason,omitempty"`
	DelegatesCount    int          `json:"delegates_count"`
	CreatedAt         time.Time    `json:"created_at"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
}

// Discrepancy lifecycle and kinds.
const (
	DiscrepancyPending  = "pending"
	DiscrepancyResolved = "resolved"
	DiscrepancyRefunded = "refunded"
	DiscrepancyWaived   = "waived"

	DiscrepancyOverpayment  = "overpayment"
	DiscrepancyUnderpayment = "underpayment"
)

// Discrepancy records a completed payment whose amount did not match
// what was expected.
type Discrepancy struct {
	ID              id.DiscrepancyID `json:"id"`
	PaymentID       id.PaymentID     `json:"payment_id"`
	ExpectedCents   int64            `json:"expected_cents"`
	ActualCents     int64            `json:"actual_cents"`
	DifferenceCents int64            `json:"difference_cents"`
	Type            string           `json:"discrepancy_type"`
	Status          string           `json:"status"`
	ResolutionNotes string           `json:"resolution_notes,omitempty"`
	ResolvedBy      id.UserID        `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Reminder is one nudge sent to an unpaid delegate.
type Reminder struct {
	ID             id.ReminderID `json:"id"`
	DelegateID     id.DelegateID `json:"delegate_id"`
	ReminderNumber int           `json:"reminder_number"`
	Channel        string        `json:"channel"`
	Message        string        `json:"message,omitempty"`
	Status         string        `json:"status"`
	SentAt         time.Time     `json:"sent_at"`
}

// InitiateRequest starts an STK push for the listed delegates.
type InitiateRequest struct {
	DelegateIDs []string `json:"delegate_ids"`
	PhoneNumber string   `json:"phone_number"`
}

// ManualRequest records an offline payment awaiting the confirmation
// chain.
type ManualRequest struct {
	DelegateIDs   []string `json:"delegate_ids"`
	AmountCents   int64    `json:"amount_cents"`
	Mode          string   `json:"payment_mode"`
	TransactionID string   `json:"transaction_id"`
	PhoneNumber   string   `json:"phone_number"`
}

// ReviewRequest is the finance approve/reject decision.
type ReviewRequest struct {
	Approve         bool   `json:"approve"`
	Notes           string `json:"notes"`
	RejectionReason string `json:"rejection_reason"`
}

// ResolveDiscrepancyRequest closes a discrepancy.
type ResolveDiscrepancyRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Filter narrows payment listings. Zero values mean "any".
type Filter struct {
	UserID        id.UserID
	EventID       id.EventID
	Status        string
	FinanceStatus string
}

// Totals is the finance dashboard summary, in cents.
type Totals struct {
	CollectedCents       int64 `json:"collected_cents"`
	PendingApprovalCents int64 `json:"pending_approval_cents"`
	Pending              int   `json:"pending"`
	Completed            int   `json:"completed"`
	Failed               int   `json:"failed"`
}
