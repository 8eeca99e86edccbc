package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"kayo/internal/audit"
	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	"kayo/pkg/requestcontext"
)

type SessionValidatorSuite struct {
	suite.Suite

	users    *MemoryUserStore
	sessions *MemorySessionStore
	service  *Service
	handler  http.Handler
	now      time.Time
}

func (s *SessionValidatorSuite) SetupTest() {
	s.users = NewMemoryUserStore()
	s.sessions = NewMemorySessionStore()
	s.now = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	tokens := NewTokenIssuer("test-signing-key", time.Hour)
	s.service = NewService(s.users, s.sessions, NewMemoryPermissionRequestStore(), tokens, nil, slog.Default(), nil, audit.NopRecorder{})

	validator := NewSessionValidator(tokens, s.service)
	s.handler = middleware.RequireAuth(validator, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func (s *SessionValidatorSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *SessionValidatorSuite) loginAs(email string) (User, string, Session) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	s.Require().NoError(err)
	user := User{
		ID:           id.NewUserID(),
		Name:         "Test User",
		Email:        email,
		Role:         RoleChair,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    s.now,
	}
	s.Require().NoError(s.users.Insert(context.Background(), user))

	result, err := s.service.Login(s.ctx(), LoginRequest{Email: email, Password: "correct-horse"})
	s.Require().NoError(err)

	sessions, err := s.sessions.ListByUser(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	return user, result.Token, sessions[0]
}

func (s *SessionValidatorSuite) serve(token string) int {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req = req.WithContext(requestcontext.WithTime(req.Context(), s.now))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec.Code
}

func (s *SessionValidatorSuite) TestLiveSessionAccepted() {
	_, token, _ := s.loginAs("chair@example.com")
	s.Equal(http.StatusOK, s.serve(token))
}

func (s *SessionValidatorSuite) TestRevokedSessionRejected() {
	user, token, sess := s.loginAs("chair@example.com")
	s.Equal(http.StatusOK, s.serve(token))

	ctx := requestcontext.WithUserID(s.ctx(), user.ID)
	s.Require().NoError(s.service.RevokeSession(ctx, sess.ID))

	// Revocation must bite before the token's own expiry.
	s.Equal(http.StatusUnauthorized, s.serve(token))
}

func (s *SessionValidatorSuite) TestLogoutInvalidatesToken() {
	user, token, sess := s.loginAs("chair@example.com")

	ctx := requestcontext.WithUserID(s.ctx(), user.ID)
	ctx = requestcontext.WithSessionID(ctx, sess.ID)
	s.Require().NoError(s.service.Logout(ctx))

	s.Equal(http.StatusUnauthorized, s.serve(token))
}

func (s *SessionValidatorSuite) TestSessionExpiryCutsOff() {
	user, _, sess := s.loginAs("chair@example.com")

	ctx := context.Background()
	s.True(s.service.ValidSession(ctx, user.ID, sess.ID, s.now))
	s.False(s.service.ValidSession(ctx, user.ID, sess.ID, sess.ExpiresAt.Add(time.Minute)))
}

func (s *SessionValidatorSuite) TestUnknownSessionRejected() {
	user, _, _ := s.loginAs("chair@example.com")

	tokens := NewTokenIssuer("test-signing-key", time.Hour)
	forged, _, err := tokens.Issue(user, id.NewSessionID(), s.now)
	s.Require().NoError(err)

	s.Equal(http.StatusUnauthorized, s.serve(forged))
}

func TestSessionValidatorSuite(t *testing.T) {
	suite.Run(t, new(SessionValidatorSuite))
}
