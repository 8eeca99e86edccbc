package delegate

import (
	"time"

	id "kayo/pkg/domain"
)

// Genders accepted on registration forms.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Registration categories.
const (
	CategoryDelegate = "delegate"
	CategoryClergy   = "clergy"
	CategoryLeader   = "leader"
	CategoryObserver = "observer"
)

// ValidCategory reports whether c is a known registration category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryDelegate, CategoryClergy, CategoryLeader, CategoryObserver:
		return true
	}
	return false
}

// Delegate is a person registered for an event. PaymentID links the
// delegate to the payment that covers their fee; IsPaid flips only when
// that payment completes.
type Delegate struct {
	ID           id.DelegateID `json:"id"`
	Name         string        `json:"name"`
	LocalChurch  string        `json:"local_church"`
	Parish       string        `json:"parish"`
	Archdeaconry string        `json:"archdeaconry"`
	PhoneNumber  string        `json:"phone_number,omitempty"`
	Gender       string        `json:"gender"`
	AgeBracket   string        `json:"age_bracket,omitempty"`
	Category     string        `json:"category"`
	EventID      id.EventID    `json:"event_id,omitempty"`
	RegisteredBy id.UserID     `json:"registered_by"`
	RegisteredAt time.Time     `json:"registered_at"`
	IsPaid       bool          `json:"is_paid"`
	FeeExempt    bool          `json:"fee_exempt"`
	PaymentID    id.PaymentID  `json:"payment_id,omitempty"`
	CheckedIn    bool          `json:"checked_in"`
}

// Pending self-registration lifecycle.
const (
	PendingStatusPending  = "pending"
	PendingStatusApproved = "approved"
	PendingStatusRejected = "rejected"
)

// PendingDelegate is a self-registration awaiting a chair's review.
type PendingDelegate struct {
	ID                id.PendingDelegateID `json:"id"`
	RegistrationToken string               `json:"registration_token"`
	Name              string               `json:"name"`
	LocalChurch       string               `json:"local_church"`
	Parish            string               `json:"parish"`
	Archdeaconry      string               `json:"archdeaconry"`
	PhoneNumber       string               `json:"phone_number,omitempty"`
	Email             string               `json:"email,omitempty"`
	Gender            string               `json:"gender"`
	AgeBracket        string               `json:"age_bracket,omitempty"`
	Category          string               `json:"category"`
	EventID           id.EventID           `json:"event_id,omitempty"`
	Status            string               `json:"status"`
	SubmittedAt       time.Time            `json:"submitted_at"`
	ReviewedAt        *time.Time           `json:"reviewed_at,omitempty"`
	ReviewedBy        id.UserID            `json:"reviewed_by,omitempty"`
	ReviewerNotes     string               `json:"reviewer_notes,omitempty"`
	RejectionReason   string               `json:"rejection_reason,omitempty"`
	DelegateID        id.DelegateID        `json:"delegate_id,omitempty"`
}

// RegisterRequest is the payload for registering one delegate.
type RegisterRequest struct {
	Name         string `json:"name"`
	LocalChurch  string `json:"local_church"`
	Parish       string `json:"parish"`
	Archdeaconry string `json:"archdeaconry"`
	PhoneNumber  string `json:"phone_number"`
	Gender       string `json:"gender"`
	AgeBracket   string `json:"age_bracket"`
	Category     string `json:"category"`
	EventID      string `json:"event_id"`
	FeeExempt    bool   `json:"fee_exempt"`
}

// UpdateRequest carries mutable delegate fields; nil means unchanged.
type UpdateRequest struct {
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phone_number"`
	Gender      *string `json:"gender"`
	AgeBracket  *string `json:"age_bracket"`
	Category    *string `json:"category"`
	FeeExempt   *bool   `json:"fee_exempt"`
}

// SelfRegisterRequest is the public self-registration payload.
type SelfRegisterRequest struct {
	Name         string `json:"name"`
	LocalChurch  string `json:"local_church"`
	Parish       string `json:"parish"`
	Archdeaconry string `json:"archdeaconry"`
	PhoneNumber  string `json:"phone_number"`
	Email        string `json:"email"`
	Gender       string `json:"gender"`
	AgeBracket   string `json:"age_bracket"`
	Category     string `json:"category"`
	EventSlug    string `json:"event_slug"`
}

// ReviewRequest approves or rejects a pending self-registration.
type ReviewRequest struct {
	Approve         bool   `json:"approve"`
	Notes           string `json:"notes"`
	RejectionReason string `json:"rejection_reason"`
}

// Filter narrows delegate listings. Zero values mean "any".
type Filter struct {
	RegisteredBy id.UserID
	EventID      id.EventID
	Archdeaconry string
	Parish       string
	IsPaid       *bool
	Search       string
}

// ArchdeaconryStats is one row of the per-archdeaconry breakdown.
type ArchdeaconryStats struct {
	Archdeaconry string `json:"archdeaconry"`
	Total        int    `json:"total"`
	Paid         int    `json:"paid"`
	Unpaid       int    `json:"unpaid"`
}

// Stats is the registration dashboard summary.
type Stats struct {
	Total          int                 `json:"total"`
	Paid           int                 `json:"paid"`
	Unpaid         int                 `json:"unpaid"`
	CheckedIn      int                 `json:"checked_in"`
	ByGender       map[string]int      `json:"by_gender"`
	ByArchdeaconry []ArchdeaconryStats `json:"by_archdeaconry"`
}

// BulkRowError describes one rejected CSV row.
type BulkRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// BulkUploadReport summarizes a CSV import.
type BulkUploadReport struct {
	Registered int            `json:"registered"`
	Rejected   int            `json:"rejected"`
	Errors     []BulkRowError `json:"errors,omitempty"`
}
