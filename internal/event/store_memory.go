package event

import (
	"context"
	"sort"
	"sync"

	id "kayo/pkg/domain"
)

type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[id.EventID]Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[id.EventID]Event)}
}

func (s *MemoryEventStore) Insert(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
	return nil
}

func (s *MemoryEventStore) Update(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		return ErrNotFound
	}
	s.events[event.ID] = event
	return nil
}

func (s *MemoryEventStore) FindByID(_ context.Context, eventID id.EventID) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if event, ok := s.events[eventID]; ok {
		return event, nil
	}
	return Event{}, ErrNotFound
}

func (s *MemoryEventStore) FindBySlug(_ context.Context, slug string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, event := range s.events {
		if event.Slug == slug {
			return event, nil
		}
	}
	return Event{}, ErrNotFound
}

func (s *MemoryEventStore) List(_ context.Context, activeOnly bool) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []Event
	for _, event := range s.events {
		if activeOnly && !event.IsActive {
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartDate.After(events[j].StartDate) })
	return events, nil
}

type MemoryTierStore struct {
	mu    sync.RWMutex
	tiers map[id.TierID]PricingTier
}

func NewMemoryTierStore() *MemoryTierStore {
	return &MemoryTierStore{tiers: make(map[id.TierID]PricingTier)}
}

func (s *MemoryTierStore) Insert(_ context.Context, tier PricingTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tier.ID] = tier
	return nil
}

func (s *MemoryTierStore) Update(_ context.Context, tier PricingTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tiers[tier.ID]; !ok {
		return ErrNotFound
	}
	s.tiers[tier.ID] = tier
	return nil
}

func (s *MemoryTierStore) FindByID(_ context.Context, tierID id.TierID) (PricingTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tier, ok := s.tiers[tierID]; ok {
		return tier, nil
	}
	return PricingTier{}, ErrNotFound
}

func (s *MemoryTierStore) ListByEvent(_ context.Context, eventID id.EventID) ([]PricingTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tiers []PricingTier
	for _, tier := range s.tiers {
		if tier.EventID == eventID {
			tiers = append(tiers, tier)
		}
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].PriceCents < tiers[j].PriceCents })
	return tiers, nil
}

func (s *MemoryTierStore) IncrementSold(_ context.Context, tierID id.TierID, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tier, ok := s.tiers[tierID]
	if !ok {
		return ErrNotFound
	}
	tier.TicketsSold += n
	s.tiers[tierID] = tier
	return nil
}
