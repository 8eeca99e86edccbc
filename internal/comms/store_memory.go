package comms

import (
	"context"
	"sort"
	"sync"

	id "kayo/pkg/domain"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu            sync.RWMutex
	announcements map[id.AnnouncementID]Announcement
	messages      []Message
	nextMessageID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		announcements: make(map[id.AnnouncementID]Announcement),
		nextMessageID: 1,
	}
}

func (s *MemoryStore) Insert(ctx context.Context, a Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announcements[a.ID] = a
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, a Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.announcements[a.ID]; !ok {
		return ErrNotFound
	}
	s.announcements[a.ID] = a
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, announcementID id.AnnouncementID) (Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.announcements[announcementID]
	if !ok {
		return Announcement{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var announcements []Announcement
	for _, a := range s.announcements {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if !filter.EventID.IsZero() && a.EventID != filter.EventID {
			continue
		}
		announcements = append(announcements, a)
	}
	sort.Slice(announcements, func(i, j int) bool {
		return announcements[i].CreatedAt.After(announcements[j].CreatedAt)
	})
	return announcements, nil
}

func (s *MemoryStore) Delete(ctx context.Context, announcementID id.AnnouncementID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.announcements[announcementID]; !ok {
		return ErrNotFound
	}
	delete(s.announcements, announcementID)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.AnnouncementID != announcementID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *MemoryStore) InsertMessages(ctx context.Context, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range messages {
		m.ID = s.nextMessageID
		s.nextMessageID++
		s.messages = append(s.messages, m)
	}
	return nil
}

func (s *MemoryStore) MessagesFor(ctx context.Context, announcementID id.AnnouncementID) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var messages []Message
	for _, m := range s.messages {
		if m.AnnouncementID == announcementID {
			messages = append(messages, m)
		}
	}
	return messages, nil
}
