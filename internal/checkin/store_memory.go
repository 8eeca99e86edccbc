package checkin

import (
	"context"
	"sort"
	"sync"
	"time"

	id "kayo/pkg/domain"
)

type recordKey struct {
	delegateID id.DelegateID
	eventID    id.EventID
	day        string
	session    string
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]Record)}
}

func keyFor(r Record) recordKey {
	return recordKey{
		delegateID: r.DelegateID,
		eventID:    r.EventID,
		day:        r.CheckInDate.Format("2006-01-02"),
		session:    r.SessionName,
	}
}

func (s *MemoryStore) Insert(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := keyFor(r)
	if _, ok := s.records[key]; ok {
		return ErrDuplicate
	}
	s.records[key] = r
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, delegateID id.DelegateID, eventID id.EventID, day time.Time, session string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordKey{
		delegateID: delegateID,
		eventID:    eventID,
		day:        day.Format("2006-01-02"),
		session:    session,
	}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) ListByDate(ctx context.Context, eventID id.EventID, day time.Time, session string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date := day.Format("2006-01-02")
	var records []Record
	for key, r := range s.records {
		if r.EventID != eventID || key.day != date {
			continue
		}
		if session != "" && r.SessionName != session {
			continue
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CheckInTime.After(records[j].CheckInTime)
	})
	return records, nil
}

func (s *MemoryStore) HistoryFor(ctx context.Context, delegateID id.DelegateID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []Record
	for _, r := range s.records {
		if r.DelegateID == delegateID {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CheckInTime.Before(records[j].CheckInTime)
	})
	return records, nil
}

func (s *MemoryStore) Stats(ctx context.Context, eventID id.EventID) (EventStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := EventStats{
		SessionCounts: make(map[string]int),
		DailyCounts:   make(map[string]int),
	}
	seen := make(map[id.DelegateID]bool)
	for key, r := range s.records {
		if r.EventID != eventID {
			continue
		}
		stats.TotalCheckIns++
		if !seen[r.DelegateID] {
			seen[r.DelegateID] = true
			stats.UniqueDelegates++
		}
		session := r.SessionName
		if session == "" {
			session = "general"
		}
		stats.SessionCounts[session]++
		stats.DailyCounts[key.day]++
	}
	return stats, nil
}
