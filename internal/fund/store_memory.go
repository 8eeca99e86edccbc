package fund

import (
	"context"
	"sort"
	"sync"
	"time"

	id "kayo/pkg/domain"
)

// MemoryPledgeStore is an in-memory PledgeStore for tests.
type MemoryPledgeStore struct {
	mu       sync.RWMutex
	pledges  map[id.PledgeID]Pledge
	payments map[id.PledgePaymentID]PledgePayment
}

func NewMemoryPledgeStore() *MemoryPledgeStore {
	return &MemoryPledgeStore{
		pledges:  make(map[id.PledgeID]Pledge),
		payments: make(map[id.PledgePaymentID]PledgePayment),
	}
}

func (s *MemoryPledgeStore) Insert(_ context.Context, p Pledge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pledges[p.ID] = p
	return nil
}

func (s *MemoryPledgeStore) Update(_ context.Context, p Pledge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pledges[p.ID]; !ok {
		return ErrNotFound
	}
	s.pledges[p.ID] = p
	return nil
}

func (s *MemoryPledgeStore) FindByID(_ context.Context, pledgeID id.PledgeID) (Pledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pledges[pledgeID]
	if !ok {
		return Pledge{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryPledgeStore) List(_ context.Context, filter PledgeFilter) ([]Pledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pledges []Pledge
	for _, p := range s.pledges {
		if !filter.EventID.IsZero() && p.EventID != filter.EventID {
			continue
		}
		if !filter.RecordedBy.IsZero() && p.RecordedBy != filter.RecordedBy {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.SourceType != "" && p.SourceType != filter.SourceType {
			continue
		}
		pledges = append(pledges, p)
	}
	sort.Slice(pledges, func(i, j int) bool {
		return pledges[i].CreatedAt.After(pledges[j].CreatedAt)
	})
	return pledges, nil
}

func (s *MemoryPledgeStore) Stats(_ context.Context, eventID id.EventID) (PledgeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats PledgeStats
	for _, p := range s.pledges {
		if !eventID.IsZero() && p.EventID != eventID {
			continue
		}
		switch p.Status {
		case PledgeCancelled:
			continue
		case PledgePending:
			stats.Pending++
		case PledgePartial:
			stats.Partial++
		case PledgeFulfilled:
			stats.Fulfilled++
		}
		stats.TotalPledgedCents += p.AmountPledgedCents
		stats.TotalPaidCents += p.AmountPaidCents
	}
	return stats, nil
}

func (s *MemoryPledgeStore) InsertPayment(_ context.Context, pp PledgePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[pp.ID] = pp
	return nil
}

func (s *MemoryPledgeStore) UpdatePayment(_ context.Context, pp PledgePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[pp.ID]; !ok {
		return ErrNotFound
	}
	s.payments[pp.ID] = pp
	return nil
}

func (s *MemoryPledgeStore) FindPayment(_ context.Context, paymentID id.PledgePaymentID) (PledgePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pp, ok := s.payments[paymentID]
	if !ok {
		return PledgePayment{}, ErrNotFound
	}
	return pp, nil
}

func (s *MemoryPledgeStore) PaymentsFor(_ context.Context, pledgeID id.PledgeID) ([]PledgePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var payments []PledgePayment
	for _, pp := range s.payments {
		if pp.PledgeID == pledgeID {
			payments = append(payments, pp)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}

// MemoryScheduleStore is an in-memory ScheduleStore for tests.
type MemoryScheduleStore struct {
	mu           sync.RWMutex
	schedules    map[id.ScheduleID]ScheduledPayment
	installments map[id.InstallmentID]Installment
}

func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{
		schedules:    make(map[id.ScheduleID]ScheduledPayment),
		installments: make(map[id.InstallmentID]Installment),
	}
}

func (s *MemoryScheduleStore) Insert(_ context.Context, sp ScheduledPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sp.ID] = sp
	return nil
}

func (s *MemoryScheduleStore) Update(_ context.Context, sp ScheduledPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[sp.ID]; !ok {
		return ErrNotFound
	}
	s.schedules[sp.ID] = sp
	return nil
}

func (s *MemoryScheduleStore) FindByID(_ context.Context, scheduleID id.ScheduleID) (ScheduledPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.schedules[scheduleID]
	if !ok {
		return ScheduledPayment{}, ErrNotFound
	}
	return sp, nil
}

func (s *MemoryScheduleStore) List(_ context.Context, status string) ([]ScheduledPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var schedules []ScheduledPayment
	for _, sp := range s.schedules {
		if status != "" && sp.Status != status {
			continue
		}
		schedules = append(schedules, sp)
	}
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].CreatedAt.After(schedules[j].CreatedAt)
	})
	return schedules, nil
}

func (s *MemoryScheduleStore) Due(_ context.Context, on time.Time) ([]ScheduledPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []ScheduledPayment
	for _, sp := range s.schedules {
		if sp.Status != ScheduleActive || sp.NextPaymentDate == nil {
			continue
		}
		if sp.NextPaymentDate.After(on) {
			continue
		}
		due = append(due, sp)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextPaymentDate.Before(*due[j].NextPaymentDate)
	})
	return due, nil
}

func (s *MemoryScheduleStore) InsertInstallment(_ context.Context, in Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installments[in.ID] = in
	return nil
}

func (s *MemoryScheduleStore) UpdateInstallment(_ context.Context, in Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.installments[in.ID]; !ok {
		return ErrNotFound
	}
	s.installments[in.ID] = in
	return nil
}

func (s *MemoryScheduleStore) FindInstallment(_ context.Context, installmentID id.InstallmentID) (Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.installments[installmentID]
	if !ok {
		return Installment{}, ErrNotFound
	}
	return in, nil
}

func (s *MemoryScheduleStore) InstallmentsFor(_ context.Context, scheduleID id.ScheduleID) ([]Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var installments []Installment
	for _, in := range s.installments {
		if in.ScheduleID == scheduleID {
			installments = append(installments, in)
		}
	}
	sort.Slice(installments, func(i, j int) bool {
		return installments[i].DueDate.Before(installments[j].DueDate)
	})
	return installments, nil
}

// MemoryTransferStore is an in-memory TransferStore for tests.
type MemoryTransferStore struct {
	mu        sync.RWMutex
	transfers map[id.TransferID]Transfer
	approvals map[id.TransferID][]TransferApproval
}

func NewMemoryTransferStore() *MemoryTransferStore {
	return &MemoryTransferStore{
		transfers: make(map[id.TransferID]Transfer),
		approvals: make(map[id.TransferID][]TransferApproval),
	}
}

func (s *MemoryTransferStore) Insert(_ context.Context, t Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[t.ID] = t
	return nil
}

func (s *MemoryTransferStore) Update(_ context.Context, t Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transfers[t.ID]; !ok {
		return ErrNotFound
	}
	s.transfers[t.ID] = t
	return nil
}

func (s *MemoryTransferStore) FindByID(_ context.Context, transferID id.TransferID) (Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transfers[transferID]
	if !ok {
		return Transfer{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryTransferStore) List(_ context.Context, filter TransferFilter) ([]Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var transfers []Transfer
	for _, t := range s.transfers {
		if !filter.ParticipantID.IsZero() && t.FromUserID != filter.ParticipantID && t.ToUserID != filter.ParticipantID {
			continue
		}
		if !filter.ToUserID.IsZero() && t.ToUserID != filter.ToUserID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Stage != "" && t.Stage != filter.Stage {
			continue
		}
		if !filter.EventID.IsZero() && t.EventID != filter.EventID {
			continue
		}
		transfers = append(transfers, t)
	}
	sort.Slice(transfers, func(i, j int) bool {
		return transfers[i].CreatedAt.After(transfers[j].CreatedAt)
	})
	return transfers, nil
}

func (s *MemoryTransferStore) Stats(_ context.Context, filter TransferFilter) (TransferStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats TransferStats
	for _, t := range s.transfers {
		if !filter.ParticipantID.IsZero() && t.FromUserID != filter.ParticipantID && t.ToUserID != filter.ParticipantID {
			continue
		}
		if !filter.EventID.IsZero() && t.EventID != filter.EventID {
			continue
		}
		switch t.Status {
		case TransferPending:
			stats.PendingCount++
			stats.PendingCents += t.AmountCents
		case TransferCompleted:
			stats.CompletedCount++
			stats.CompletedCents += t.AmountCents
		case TransferRejected:
			stats.RejectedCount++
		}
	}
	return stats, nil
}

func (s *MemoryTransferStore) AppendApproval(_ context.Context, a TransferApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[a.TransferID] = append(s.approvals[a.TransferID], a)
	return nil
}

func (s *MemoryTransferStore) ApprovalsFor(_ context.Context, transferID id.TransferID) ([]TransferApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TransferApproval, len(s.approvals[transferID]))
	copy(out, s.approvals[transferID])
	return out, nil
}
