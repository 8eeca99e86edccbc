package event

import (
	"time"

	id "kayo/pkg/domain"
)

// Event is one conference or camp delegates register for.
type Event struct {
	ID                   id.EventID `json:"id"`
	Name                 string     `json:"name"`
	Slug                 string     `json:"slug"`
	Description          string     `json:"description,omitempty"`
	StartDate            time.Time  `json:"start_date"`
	EndDate              time.Time  `json:"end_date"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Venue                string     `json:"venue,omitempty"`
	MaxDelegates         int        `json:"max_delegates,omitempty"`
	IsActive             bool       `json:"is_active"`
	IsPublished          bool       `json:"is_published"`
	CreatedBy            id.UserID  `json:"created_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Days returns the event length in calendar days, inclusive.
func (e Event) Days() int {
	if e.EndDate.Before(e.StartDate) {
		return 1
	}
	return int(e.EndDate.Sub(e.StartDate).Hours()/24) + 1
}

// RegistrationOpen reports whether new delegates may register at time now.
// The capacity check happens in the delegate service, which knows the
// current head count.
func (e Event) RegistrationOpen(now time.Time) bool {
	if !e.IsActive || !e.IsPublished {
		return false
	}
	if e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline) {
		return false
	}
	return true
}

// PricingTier is one price band for an event: early bird, regular, VIP.
type PricingTier struct {
	ID                   id.TierID  `json:"id"`
	EventID              id.EventID `json:"event_id"`
	Name                 string     `json:"name"`
	Description          string     `json:"description,omitempty"`
	PriceCents           int64      `json:"price_cents"`
	ValidFrom            *time.Time `json:"valid_from,omitempty"`
	ValidUntil           *time.Time `json:"valid_until,omitempty"`
	MaxTickets           int        `json:"max_tickets,omitempty"`
	TicketsSold          int        `json:"tickets_sold"`
	GroupMinSize         int        `json:"group_min_size,omitempty"`
	GroupDiscountPercent int        `json:"group_discount_percent,omitempty"`
	IsActive             bool       `json:"is_active"`
}

// Available reports whether the tier can sell a ticket at time now.
func (t PricingTier) Available(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	if t.ValidFrom != nil && now.Before(*t.ValidFrom) {
		return false
	}
	if t.ValidUntil != nil && now.After(*t.ValidUntil) {
		return false
	}
	if t.MaxTickets > 0 && t.TicketsSold >= t.MaxTickets {
		return false
	}
	return true
}

// TotalCents prices count delegates, applying the group discount when the
// party is large enough. Discounts round down to whole cents.
func (t PricingTier) TotalCents(count int) int64 {
	if count <= 0 {
		return 0
	}
	total := t.PriceCents * int64(count)
	if t.GroupMinSize > 0 && count >= t.GroupMinSize && t.GroupDiscountPercent > 0 {
		total -= total * int64(t.GroupDiscountPercent) / 100
	}
	return total
}

// CreateEventRequest is the payload for opening a new event.
type CreateEventRequest struct {
	Name                 string     `json:"name"`
	Slug                 string     `json:"slug"`
	Description          string     `json:"description"`
	StartDate            string     `json:"start_date"` // YYYY-MM-DD
	EndDate              string     `json:"end_date"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	Venue                string     `json:"venue"`
	MaxDelegates         int        `json:"max_delegates"`
}

// UpdateEventRequest carries mutable event fields; nil means unchanged.
type UpdateEventRequest struct {
	Name                 *string    `json:"name"`
	Description          *string    `json:"description"`
	StartDate            *string    `json:"start_date"`
	EndDate              *string    `json:"end_date"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	Venue                *string    `json:"venue"`
	MaxDelegates         *int       `json:"max_delegates"`
	IsActive             *bool      `json:"is_active"`
	IsPublished          *bool      `json:"is_published"`
}

// CreateTierRequest adds a pricing tier to an event.
type CreateTierRequest struct {
	Name                 string     `json:"name"`
	Description          string     `json:"description"`
	PriceCents           int64      `json:"price_cents"`
	ValidFrom            *time.Time `json:"valid_from"`
	ValidUntil           *time.Time `json:"valid_until"`
	MaxTickets           int        `json:"max_tickets"`
	GroupMinSize         int        `json:"group_min_size"`
	GroupDiscountPercent int        `json:"group_discount_percent"`
}

// Quote is the priced answer to "what do N delegates cost right now".
type Quote struct {
	TierID       id.TierID `json:"tier_id"`
	TierName     string    `json:"tier_name"`
	Count        int       `json:"count"`
	UnitCents    int64     `json:"unit_cents"`
	TotalCents   int64     `json:"total_cents"`
	GroupApplied bool      `json:"group_discount_applied"`
}
