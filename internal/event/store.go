package event

import (
	"context"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

type EventStore interface {
	Insert(ctx context.Context, event Event) error
	Update(ctx context.Context, event Event) error
	FindByID(ctx context.Context, eventID id.EventID) (Event, error)
	FindBySlug(ctx context.Context, slug string) (Event, error)
	List(ctx context.Context, activeOnly bool) ([]Event, error)
}

type TierStore interface {
	Insert(ctx context.Context, tier PricingTier) error
	Update(ctx context.Context, tier PricingTier) error
	FindByID(ctx context.Context, tierID id.TierID) (PricingTier, error)
	ListByEvent(ctx context.Context, eventID id.EventID) ([]PricingTier, error)
	// IncrementSold adds n tickets to the tier's sold count.
	IncrementSold(ctx context.Context, tierID id.TierID, n int) error
}
