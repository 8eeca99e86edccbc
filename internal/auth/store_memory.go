package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	id "kayo/pkg/domain"
)

// In-memory stores back the service tests and local development. They
// favor clarity over performance.

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[id.UserID]User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[id.UserID]User)}
}

func (s *MemoryUserStore) Insert(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *MemoryUserStore) Update(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, userID id.UserID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		return user, nil
	}
	return User{}, ErrNotFound
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryUserStore) List(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[id.SessionID]Session)}
}

func (s *MemorySessionStore) Insert(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) FindByTokenHash(_ context.Context, tokenHash string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.TokenHash == tokenHash {
			return sess, nil
		}
	}
	return Session{}, ErrNotFound
}

func (s *MemorySessionStore) ListByUser(_ context.Context, userID id.UserID) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sessions []Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].LastActivity.After(sessions[j].LastActivity) })
	return sessions, nil
}

func (s *MemorySessionStore) Touch(_ context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.LastActivity = at
	s.sessions[sessionID] = sess
	return nil
}

func (s *MemorySessionStore) Deactivate(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.IsActive = false
	s.sessions[sessionID] = sess
	return nil
}

func (s *MemorySessionStore) DeactivateAllForUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid, sess := range s.sessions {
		if sess.UserID == userID {
			sess.IsActive = false
			s.sessions[sid] = sess
		}
	}
	return nil
}

type MemoryPermissionRequestStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]PermissionRequest
}

func NewMemoryPermissionRequestStore() *MemoryPermissionRequestStore {
	return &MemoryPermissionRequestStore{requests: make(map[id.RequestID]PermissionRequest)}
}

func (s *MemoryPermissionRequestStore) Insert(_ context.Context, request PermissionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[request.ID] = request
	return nil
}

func (s *MemoryPermissionRequestStore) Update(_ context.Context, request PermissionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[request.ID]; !ok {
		return ErrNotFound
	}
	s.requests[request.ID] = request
	return nil
}

func (s *MemoryPermissionRequestStore) FindByID(_ context.Context, requestID id.RequestID) (PermissionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pr, ok := s.requests[requestID]; ok {
		return pr, nil
	}
	return PermissionRequest{}, ErrNotFound
}

func (s *MemoryPermissionRequestStore) ListByUser(_ context.Context, userID id.UserID) ([]PermissionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var requests []PermissionRequest
	for _, pr := range s.requests {
		if pr.UserID == userID {
			requests = append(requests, pr)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].RequestedAt.After(requests[j].RequestedAt) })
	return requests, nil
}

func (s *MemoryPermissionRequestStore) ListByStatus(_ context.Context, status string) ([]PermissionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var requests []PermissionRequest
	for _, pr := range s.requests {
		if pr.Status == status {
			requests = append(requests, pr)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].RequestedAt.After(requests[j].RequestedAt) })
	return requests, nil
}

func (s *MemoryPermissionRequestStore) FindActive(_ context.Context, userID id.UserID, permissionType string, now time.Time) (PermissionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		found PermissionRequest
		ok    bool
	)
	for _, pr := range s.requests {
		if pr.UserID != userID || pr.PermissionType != permissionType || !pr.Active(now) {
			continue
		}
		if !ok || pr.RequestedAt.After(found.RequestedAt) {
			found = pr
			ok = true
		}
	}
	if !ok {
		return PermissionRequest{}, ErrNotFound
	}
	return found, nil
}
