package event

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"kayo/internal/audit"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

const dateLayout = "2006-01-02"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Service manages events and their pricing tiers, and answers pricing
// quotes for the payment flow.
type Service struct {
	events EventStore
	tiers  TierStore
	logger *slog.Logger
	audit  audit.Recorder

	// defaultFeeCents prices events that define no tiers.
	defaultFeeCents int64
}

func NewService(events EventStore, tiers TierStore, defaultFeeCents int64, logger *slog.Logger, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		events:          events,
		tiers:           tiers,
		logger:          logger,
		audit:           recorder,
		defaultFeeCents: defaultFeeCents,
	}
}

// Create opens a new event in draft (unpublished) state.
func (s *Service) Create(ctx context.Context, req CreateEventRequest) (Event, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Event{}, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(slug) {
		return Event{}, dErrors.New(dErrors.CodeValidation, "slug must be lowercase letters, digits and hyphens")
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return Event{}, dErrors.New(dErrors.CodeValidation, "start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return Event{}, dErrors.New(dErrors.CodeValidation, "end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return Event{}, dErrors.New(dErrors.CodeValidation, "end_date must not precede start_date")
	}

	if _, err := s.events.FindBySlug(ctx, slug); err == nil {
		return Event{}, dErrors.New(dErrors.CodeConflict, "slug already in use")
	} else if !errors.Is(err, ErrNotFound) {
		return Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "check slug")
	}

	now := requestcontext.Now(ctx)
	event := Event{
		ID:                   id.NewEventID(),
		Name:                 name,
		Slug:                 slug,
		Description:          strings.TrimSpace(req.Description),
		StartDate:            start,
		EndDate:              end,
		RegistrationDeadline: req.RegistrationDeadline,
		Venue:                strings.TrimSpace(req.Venue),
		MaxDelegates:         req.MaxDelegates,
		IsActive:             true,
		IsPublished:          false,
		CreatedBy:            requestcontext.UserID(ctx),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		return Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert event")
	}

	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "event",
		ResourceID:   event.ID.String(),
		NewValues:    map[string]any{"name": event.Name, "slug": event.Slug},
	})
	return event, nil
}

// Get fetches one event by ID.
func (s *Service) Get(ctx context.Context, eventID id.EventID) (Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Event{}, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "find event")
	}
	return event, nil
}

// GetBySlug fetches one event by its URL slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (Event, error) {
	event, err := s.events.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Event{}, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "find event")
	}
	return event, nil
}

// List returns events, optionally only active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Event, error) {
	events, err := s.events.List(ctx, activeOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list events")
	}
	return events, nil
}

// Update applies the non-nil fields.
func (s *Service) Update(ctx context.Context, eventID id.EventID, req UpdateEventRequest) (Event, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return Event{}, err
	}
	old := map[string]any{"is_active": event.IsActive, "is_published": event.IsPublished}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return Event{}, dErrors.New(dErrors.CodeValidation, "name must not be empty")
		}
		event.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		event.Description = strings.TrimSpace(*req.Description)
	}
	if req.StartDate != nil {
		start, err := time.Parse(dateLayout, *req.StartDate)
		if err != nil {
			return Event{}, dErrors.New(dErrors.CodeValidation, "start_date must be YYYY-MM-DD")
		}
		event.StartDate = start
	}
	if req.EndDate != nil {
		end, err := time.Parse(dateLayout, *req.EndDate)
		if err != nil {
			return Event{}, dErrors.New(dErrors.CodeValidation, "end_date must be YYYY-MM-DD")
		}
		event.EndDate = end
	}
	if event.EndDate.Before(event.StartDate) {
		return Event{}, dErrors.New(dErrors.CodeValidation, "end_date must not precede start_date")
	}
	if req.RegistrationDeadline != nil {
		event.RegistrationDeadline = req.RegistrationDeadline
	}
	if req.Venue != nil {
		event.Venue = strings.TrimSpace(*req.Venue)
	}
	if req.MaxDelegates != nil {
		event.MaxDelegates = *req.MaxDelegates
	}
	if req.IsActive != nil {
		event.IsActive = *req.IsActive
	}
	if req.IsPublished != nil {
		event.IsPublished = *req.IsPublished
	}
	event.UpdatedAt = requestcontext.Now(ctx)

	if err := s.events.Update(ctx, event); err != nil {
		return Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "update event")
	}

	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "event",
		ResourceID:   event.ID.String(),
		OldValues:    old,
		NewValues:    map[string]any{"is_active": event.IsActive, "is_published": event.IsPublished},
	})
	return event, nil
}

// AddTier attaches a pricing tier to an event.
func (s *Service) AddTier(ctx context.Context, eventID id.EventID, req CreateTierRequest) (PricingTier, error) {
	if _, err := s.Get(ctx, eventID); err != nil {
		return PricingTier{}, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return PricingTier{}, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if req.PriceCents <= 0 {
		return PricingTier{}, dErrors.New(dErrors.CodeValidation, "price must be positive")
	}
	if req.GroupDiscountPercent < 0 || req.GroupDiscountPercent >= 100 {
		return PricingTier{}, dErrors.New(dErrors.CodeValidation, "group discount must be between 0 and 99 percent")
	}

	tier := PricingTier{
		ID:                   id.NewTierID(),
		EventID:              eventID,
		Name:                 strings.TrimSpace(req.Name),
		Description:          strings.TrimSpace(req.Description),
		PriceCents:           req.PriceCents,
		ValidFrom:            req.ValidFrom,
		ValidUntil:           req.ValidUntil,
		MaxTickets:           req.MaxTickets,
		GroupMinSize:         req.GroupMinSize,
		GroupDiscountPercent: req.GroupDiscountPercent,
		IsActive:             true,
	}
	if err := s.tiers.Insert(ctx, tier); err != nil {
		return PricingTier{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert pricing tier")
	}
	return tier, nil
}

// Tiers lists an event's pricing tiers, cheapest first.
func (s *Service) Tiers(ctx context.Context, eventID id.EventID) ([]PricingTier, error) {
	tiers, err := s.tiers.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pricing tiers")
	}
	return tiers, nil
}

// CurrentTier returns the cheapest tier available right now, or ErrNotFound
// when the event has no available tier.
func (s *Service) CurrentTier(ctx context.Context, eventID id.EventID) (PricingTier, error) {
	tiers, err := s.Tiers(ctx, eventID)
	if err != nil {
		return PricingTier{}, err
	}
	now := requestcontext.Now(ctx)
	for _, tier := range tiers {
		if tier.Available(now) {
			return tier, nil
		}
	}
	return PricingTier{}, ErrNotFound
}

// QuoteFee prices count delegates for the event. Events without tiers fall
// back to the flat organization fee.
func (s *Service) QuoteFee(ctx context.Context, eventID id.EventID, count int) (Quote, error) {
	if count <= 0 {
		return Quote{}, dErrors.New(dErrors.CodeValidation, "count must be positive")
	}
	tier, err := s.CurrentTier(ctx, eventID)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			return Quote{
				TierName:   "standard",
				Count:      count,
				UnitCents:  s.defaultFeeCents,
				TotalCents: s.defaultFeeCents * int64(count),
			}, nil
		}
		return Quote{}, err
	}
	total := tier.TotalCents(count)
	return Quote{
		TierID:       tier.ID,
		TierName:     tier.Name,
		Count:        count,
		UnitCents:    tier.PriceCents,
		TotalCents:   total,
		GroupApplied: total != tier.PriceCents*int64(count),
	}, nil
}

// RecordSale bumps the sold counter after a completed payment. A missing
// tier is not an error: the fallback flat fee has no tier row.
func (s *Service) RecordSale(ctx context.Context, tierID id.TierID, count int) {
	if tierID.IsZero() || count <= 0 {
		return
	}
	if err := s.tiers.IncrementSold(ctx, tierID, count); err != nil {
		s.logger.WarnContext(ctx, "failed to record tier sale",
			"error", err,
			"tier_id", tierID.String(),
		)
	}
}
