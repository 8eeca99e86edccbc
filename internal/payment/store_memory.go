package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	id "kayo/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[id.PaymentID]Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[id.PaymentID]Payment)}
}

func (s *MemoryStore) Insert(_ context.Context, p Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
	return nil
}

func (s *MemoryStore) Update(_ context.Context, p Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.ID]; !ok {
		return ErrNotFound
	}
	s.payments[p.ID] = p
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, paymentID id.PaymentID) (Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) FindByCheckoutID(_ context.Context, checkoutRequestID string) (Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.CheckoutRequestID != "" && p.CheckoutRequestID == checkoutRequestID {
			return p, nil
		}
	}
	return Payment{}, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Payment
	for _, p := range s.payments {
		if !filter.UserID.IsZero() && p.UserID != filter.UserID {
			continue
		}
		if !filter.EventID.IsZero() && p.EventID != filter.EventID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.FinanceStatus != "" && p.FinanceStatus != filter.FinanceStatus {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) PendingPushes(_ context.Context, olderThan time.Time) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Payment
	for _, p := range s.payments {
		if p.Status == StatusPending && p.CheckoutRequestID != "" && p.CreatedAt.Before(olderThan) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Totals(_ context.Context) (Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var t Totals
	for _, p := range s.payments {
		switch p.Status {
		case StatusCompleted:
			t.Completed++
			t.CollectedCents += p.AmountCents
		case StatusPending:
			t.Pending++
			if p.FinanceStatus == FinancePendingApproval {
				t.PendingApprovalCents += p.AmountCents
			}
		case StatusFailed:
			t.Failed++
		}
	}
	return t, nil
}

// MemoryDiscrepancyStore is an in-memory DiscrepancyStore.
type MemoryDiscrepancyStore struct {
	mu            sync.RWMutex
	discrepancies map[id.DiscrepancyID]Discrepancy
}

func NewMemoryDiscrepancyStore() *MemoryDiscrepancyStore {
	return &MemoryDiscrepancyStore{discrepancies: make(map[id.DiscrepancyID]Discrepancy)}
}

func (s *MemoryDiscrepancyStore) Insert(_ context.Context, d Discrepancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discrepancies[d.ID] = d
	return nil
}

func (s *MemoryDiscrepancyStore) Update(_ context.Context, d Discrepancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.discrepancies[d.ID]; !ok {
		return ErrNotFound
	}
	s.discrepancies[d.ID] = d
	return nil
}

func (s *MemoryDiscrepancyStore) FindByID(_ context.Context, discrepancyID id.DiscrepancyID) (Discrepancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.discrepancies[discrepancyID]
	if !ok {
		return Discrepancy{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryDiscrepancyStore) List(_ context.Context, status string) ([]Discrepancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Discrepancy
	for _, d := range s.discrepancies {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MemoryReminderStore is an in-memory ReminderStore.
type MemoryReminderStore struct {
	mu        sync.RWMutex
	reminders []Reminder
}

func NewMemoryReminderStore() *MemoryReminderStore {
	return &MemoryReminderStore{}
}

func (s *MemoryReminderStore) Insert(_ context.Context, r Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, r)
	return nil
}

func (s *MemoryReminderStore) ForDelegate(_ context.Context, delegateID id.DelegateID) ([]Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Reminder
	for _, r := range s.reminders {
		if r.DelegateID == delegateID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, nil
}
