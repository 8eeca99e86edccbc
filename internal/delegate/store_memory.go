package delegate

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "kayo/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	delegates map[id.DelegateID]Delegate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{delegates: make(map[id.DelegateID]Delegate)}
}

func (s *MemoryStore) Insert(_ context.Context, d Delegate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegates[d.ID] = d
	return nil
}

func (s *MemoryStore) Update(_ context.Context, d Delegate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.delegates[d.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = d.Name
	existing.PhoneNumber = d.PhoneNumber
	existing.Gender = d.Gender
	existing.AgeBracket = d.AgeBracket
	existing.Category = d.Category
	existing.FeeExempt = d.FeeExempt
	s.delegates[d.ID] = existing
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, delegateID id.DelegateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.delegates[delegateID]; !ok {
		return ErrNotFound
	}
	delete(s.delegates, delegateID)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, delegateID id.DelegateID) (Delegate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.delegates[delegateID]
	if !ok {
		return Delegate{}, ErrNotFound
	}
	return d, nil
}

func matchesFilter(d Delegate, filter Filter) bool {
	if !filter.RegisteredBy.IsZero() && d.RegisteredBy != filter.RegisteredBy {
		return false
	}
	if !filter.EventID.IsZero() && d.EventID != filter.EventID {
		return false
	}
	if filter.Archdeaconry != "" && !strings.EqualFold(d.Archdeaconry, filter.Archdeaconry) {
		return false
	}
	if filter.Parish != "" && !strings.EqualFold(d.Parish, filter.Parish) {
		return false
	}
	if filter.IsPaid != nil && d.IsPaid != *filter.IsPaid {
		return false
	}
	if filter.Search != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(filter.Search)) {
		return false
	}
	return true
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Delegate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Delegate
	for _, d := range s.delegates {
		if matchesFilter(d, filter) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int, error) {
	list, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (s *MemoryStore) Stats(ctx context.Context, filter Filter) (Stats, error) {
	list, err := s.List(ctx, filter)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{ByGender: make(map[string]int)}
	byArch := make(map[string]*ArchdeaconryStats)
	for _, d := range list {
		stats.Total++
		if d.IsPaid {
			stats.Paid++
		} else {
			stats.Unpaid++
		}
		if d.CheckedIn {
			stats.CheckedIn++
		}
		stats.ByGender[d.Gender]++
		row, ok := byArch[d.Archdeaconry]
		if !ok {
			row = &ArchdeaconryStats{Archdeaconry: d.Archdeaconry}
			byArch[d.Archdeaconry] = row
		}
		row.Total++
		if d.IsPaid {
			row.Paid++
		} else {
			row.Unpaid++
		}
	}
	names := make([]string, 0, len(byArch))
	for name := range byArch {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats.ByArchdeaconry = append(stats.ByArchdeaconry, *byArch[name])
	}
	return stats, nil
}

func (s *MemoryStore) ClaimForPayment(_ context.Context, delegateIDs []id.DelegateID, paymentID id.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, delegateID := range delegateIDs {
		d, ok := s.delegates[delegateID]
		if !ok {
			return ErrNotFound
		}
		if d.IsPaid || !d.PaymentID.IsZero() || d.FeeExempt {
			return ErrAlreadyClaimed
		}
	}
	for _, delegateID := range delegateIDs {
		d := s.delegates[delegateID]
		d.PaymentID = paymentID
		s.delegates[delegateID] = d
	}
	return nil
}

func (s *MemoryStore) MarkPaid(_ context.Context, paymentID id.PaymentID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for key, d := range s.delegates {
		if d.PaymentID == paymentID && !d.IsPaid {
			d.IsPaid = true
			s.delegates[key] = d
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) ReleasePayment(_ context.Context, paymentID id.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, d := range s.delegates {
		if d.PaymentID == paymentID && !d.IsPaid {
			d.PaymentID = id.PaymentID{}
			s.delegates[key] = d
		}
	}
	return nil
}

func (s *MemoryStore) SetCheckedIn(_ context.Context, delegateID id.DelegateID, checkedIn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.delegates[delegateID]
	if !ok {
		return ErrNotFound
	}
	d.CheckedIn = checkedIn
	s.delegates[delegateID] = d
	return nil
}

// MemoryPendingStore is an in-memory PendingStore.
type MemoryPendingStore struct {
	mu      sync.RWMutex
	pending map[id.PendingDelegateID]PendingDelegate
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{pending: make(map[id.PendingDelegateID]PendingDelegate)}
}

func (s *MemoryPendingStore) Insert(_ context.Context, p PendingDelegate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[p.ID] = p
	return nil
}

func (s *MemoryPendingStore) Update(_ context.Context, p PendingDelegate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[p.ID]; !ok {
		return ErrNotFound
	}
	s.pending[p.ID] = p
	return nil
}

func (s *MemoryPendingStore) FindByID(_ context.Context, pendingID id.PendingDelegateID) (PendingDelegate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[pendingID]
	if !ok {
		return PendingDelegate{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryPendingStore) FindByToken(_ context.Context, token string) (PendingDelegate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pending {
		if p.RegistrationToken == token {
			return p, nil
		}
	}
	return PendingDelegate{}, ErrNotFound
}

func (s *MemoryPendingStore) ListPending(_ context.Context) ([]PendingDelegate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PendingDelegate
	for _, p := range s.pending {
		if p.Status == PendingStatusPending {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}
