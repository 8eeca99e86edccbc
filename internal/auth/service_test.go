package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"kayo/internal/audit"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	users       *MemoryUserStore
	sessions    *MemorySessionStore
	permissions *MemoryPermissionRequestStore
	service     *Service
	now         time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.users = NewMemoryUserStore()
	s.sessions = NewMemorySessionStore()
	s.permissions = NewMemoryPermissionRequestStore()
	s.now = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	tokens := NewTokenIssuer("test-signing-key", time.Hour)
	s.service = NewService(s.users, s.sessions, s.permissions, tokens, nil, slog.Default(), nil, audit.NopRecorder{})
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) seedUser(email, password, role string) User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	s.Require().NoError(err)
	user := User{
		ID:           id.NewUserID(),
		Name:         "Test User",
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    s.now,
	}
	s.Require().NoError(s.users.Insert(context.Background(), user))
	return user
}

func (s *ServiceSuite) TestLoginIssuesToken() {
	user := s.seedUser("chair@example.com", "correct-horse", RoleChair)

	result, err := s.service.Login(s.ctx(), LoginRequest{Email: "chair@example.com", Password: "correct-horse"})
	s.Require().NoError(err)
	s.False(result.OTPRequired)
	s.NotEmpty(result.Token)
	s.Equal(user.ID, result.User.ID)

	sessions, err := s.sessions.ListByUser(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.True(sessions[0].IsActive)
	s.Equal(HashToken(result.Token), sessions[0].TokenHash)
}

func (s *ServiceSuite) TestLoginWrongPassword() {
	s.seedUser("chair@example.com", "correct-horse", RoleChair)

	_, err := s.service.Login(s.ctx(), LoginRequest{Email: "chair@example.com", Password: "wrong"})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestLoginUnknownEmail() {
	_, err := s.service.Login(s.ctx(), LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestLoginInactiveUser() {
	user := s.seedUser("gone@example.com", "correct-horse", RoleChair)
	user.IsActive = false
	s.Require().NoError(s.users.Update(context.Background(), user))

	_, err := s.service.Login(s.ctx(), LoginRequest{Email: "gone@example.com", Password: "correct-horse"})
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRegisterDefaultsToChair() {
	result, err := s.service.Register(s.ctx(), RegisterRequest{
		Name:     "New Chair",
		Email:    "New.Chair@example.com",
		Password: "password-123",
	})
	s.Require().NoError(err)
	s.NotEmpty(result.Token)
	s.Require().NotNil(result.User)
	s.Equal(RoleChair, result.User.Role)
	s.Equal("new.chair@example.com", result.User.Email)

	sessions, err := s.sessions.ListByUser(context.Background(), result.User.ID)
	s.Require().NoError(err)
	s.Len(sessions, 1)
}

func (s *ServiceSuite) TestRegisterRejectsElevatedRole() {
	for _, role := range []string{RoleFinance, RoleAdmin, RoleSuperAdmin} {
		_, err := s.service.Register(s.ctx(), RegisterRequest{
			Name:     "Sneaky",
			Email:    "sneaky@example.com",
			Password: "password-123",
			Role:     role,
		})
		s.True(dErrors.Is(err, dErrors.CodeValidation), role)
	}
}

func (s *ServiceSuite) TestRegisterDuplicateEmail() {
	s.seedUser("chair@example.com", "whatever1", RoleChair)

	_, err := s.service.Register(s.ctx(), RegisterRequest{
		Name:     "Again",
		Email:    "chair@example.com",
		Password: "password-123",
	})
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestUpdateProfile() {
	user := s.seedUser("chair@example.com", "correct-horse", RoleChair)
	ctx := requestcontext.WithUserID(s.ctx(), user.ID)

	name := "  Renamed Chair  "
	phone := "+254700000001"
	updated, err := s.service.UpdateProfile(ctx, UpdateProfileRequest{Name: &name, Phone: &phone})
	s.Require().NoError(err)
	s.Equal("Renamed Chair", updated.Name)
	s.Equal(phone, updated.Phone)

	stored, err := s.users.FindByID(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Equal("Renamed Chair", stored.Name)
	s.Equal(RoleChair, stored.Role)
}

func (s *ServiceSuite) TestUpdateProfileRejectsEmptyName() {
	user := s.seedUser("chair@example.com", "correct-horse", RoleChair)
	ctx := requestcontext.WithUserID(s.ctx(), user.ID)

	name := "   "
	_, err := s.service.UpdateProfile(ctx, UpdateProfileRequest{Name: &name})
	s.True(dErrors.Is(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestPasswordResetUnavailableWithoutOTP() {
	s.seedUser("chair@example.com", "correct-horse", RoleChair)

	err := s.service.ForgotPassword(s.ctx(), "chair@example.com")
	s.True(dErrors.Is(err, dErrors.CodeUnavailable))

	err = s.service.ResetPasswordWithOTP(s.ctx(), ResetPasswordRequest{
		Email:       "chair@example.com",
		Code:        "123456",
		NewPassword: "new-password-123",
	})
	s.True(dErrors.Is(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestLogoutDeactivatesSession() {
	user := s.seedUser("chair@example.com", "correct-horse", RoleChair)
	result, err := s.service.Login(s.ctx(), LoginRequest{Email: user.Email, Password: "correct-horse"})
	s.Require().NoError(err)

	sessions, err := s.sessions.ListByUser(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)

	ctx := requestcontext.WithUserID(s.ctx(), user.ID)
	ctx = requestcontext.WithSessionID(ctx, sessions[0].ID)
	s.Require().NoError(s.service.Logout(ctx))

	sessions, err = s.sessions.ListByUser(context.Background(), user.ID)
	s.Require().NoError(err)
	s.False(sessions[0].IsActive)
	_ = result
}

func (s *ServiceSuite) TestRevokeSessionRejectsForeignSession() {
	owner := s.seedUser("owner@example.com", "correct-horse", RoleChair)
	other := s.seedUser("other@example.com", "correct-horse", RoleChair)

	_, err := s.service.Login(s.ctx(), LoginRequest{Email: owner.Email, Password: "correct-horse"})
	s.Require().NoError(err)
	ownerSessions, err := s.sessions.ListByUser(context.Background(), owner.ID)
	s.Require().NoError(err)

	ctx := requestcontext.WithUserID(s.ctx(), other.ID)
	err = s.service.RevokeSession(ctx, ownerSessions[0].ID)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestChangePasswordRevokesSessions() {
	user := s.seedUser("chair@example.com", "old-password", RoleChair)
	_, err := s.service.Login(s.ctx(), LoginRequest{Email: user.Email, Password: "old-password"})
	s.Require().NoError(err)

	ctx := requestcontext.WithUserID(s.ctx(), user.ID)
	err = s.service.ChangePassword(ctx, ChangePasswordRequest{
		CurrentPassword: "old-password",
		NewPassword:     "new-password-123",
	})
	s.Require().NoError(err)

	sessions, err := s.sessions.ListByUser(context.Background(), user.ID)
	s.Require().NoError(err)
	for _, sess := range sessions {
		s.False(sess.IsActive)
	}

	_, err = s.service.Login(s.ctx(), LoginRequest{Email: user.Email, Password: "new-password-123"})
	s.NoError(err)
}

func (s *ServiceSuite) TestChangePasswordWrongCurrent() {
	user := s.seedUser("chair@example.com", "old-password", RoleChair)
	ctx := requestcontext.WithUserID(s.ctx(), user.ID)

	err := s.service.ChangePassword(ctx, ChangePasswordRequest{
		CurrentPassword: "not-it",
		NewPassword:     "new-password-123",
	})
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestCreateUserRejectsDuplicateEmail() {
	s.seedUser("chair@example.com", "whatever1", RoleChair)

	_, err := s.service.CreateUser(s.ctx(), CreateUserRequest{
		Name:     "Another",
		Email:    "CHAIR@example.com",
		Role:     RoleChair,
		Password: "password-123",
	})
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestCreateUserValidation() {
	cases := []struct {
		name string
		req  CreateUserRequest
	}{
		{"missing name", CreateUserRequest{Email: "a@b.com", Role: RoleChair, Password: "password-123"}},
		{"bad email", CreateUserRequest{Name: "A", Email: "nope", Role: RoleChair, Password: "password-123"}},
		{"bad role", CreateUserRequest{Name: "A", Email: "a@b.com", Role: "bishop", Password: "password-123"}},
		{"short password", CreateUserRequest{Name: "A", Email: "a@b.com", Role: RoleChair, Password: "short"}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.CreateUser(s.ctx(), tc.req)
			s.True(dErrors.Is(err, dErrors.CodeValidation))
		})
	}
}

func (s *ServiceSuite) TestDeactivateUserRevokesSessions() {
	user := s.seedUser("chair@example.com", "correct-horse", RoleChair)
	_, err := s.service.Login(s.ctx(), LoginRequest{Email: user.Email, Password: "correct-horse"})
	s.Require().NoError(err)

	inactive := false
	_, err = s.service.UpdateUser(s.ctx(), user.ID, UpdateUserRequest{IsActive: &inactive})
	s.Require().NoError(err)

	sessions, err := s.sessions.ListByUser(context.Background(), user.ID)
	s.Require().NoError(err)
	for _, sess := range sessions {
		s.False(sess.IsActive)
	}
}

func (s *ServiceSuite) TestPermissionRequestLifecycle() {
	chair := s.seedUser("chair@example.com", "correct-horse", RoleChair)
	admin := s.seedUser("admin@example.com", "correct-horse", RoleAdmin)

	chairCtx := requestcontext.WithUserID(s.ctx(), chair.ID)
	pr, err := s.service.RequestPermission(chairCtx, RequestPermissionRequest{
		PermissionType: PermissionBulkUpload,
		Reason:         "uploading conference roster",
	})
	s.Require().NoError(err)
	s.Equal(PermissionStatusPending, pr.Status)

	ok, err := s.service.HasActivePermission(chairCtx, chair.ID, PermissionBulkUpload)
	s.Require().NoError(err)
	s.False(ok)

	adminCtx := requestcontext.WithUserID(s.ctx(), admin.ID)
	reviewed, err := s.service.ReviewPermission(adminCtx, pr.ID, ReviewPermissionRequest{Approve: true, ValidForHours: 2})
	s.Require().NoError(err)
	s.Equal(PermissionStatusApproved, reviewed.Status)
	s.Require().NotNil(reviewed.ExpiresAt)
	s.Equal(s.now.Add(2*time.Hour), *reviewed.ExpiresAt)

	ok, err = s.service.HasActivePermission(chairCtx, chair.ID, PermissionBulkUpload)
	s.Require().NoError(err)
	s.True(ok)

	// Past the expiry window the grant no longer applies.
	lateCtx := requestcontext.WithTime(chairCtx, s.now.Add(3*time.Hour))
	ok, err = s.service.HasActivePermission(lateCtx, chair.ID, PermissionBulkUpload)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ServiceSuite) TestReviewPermissionTwiceConflicts() {
	chair := s.seedUser("chair@example.com", "correct-horse", RoleChair)
	chairCtx := requestcontext.WithUserID(s.ctx(), chair.ID)

	pr, err := s.service.RequestPermission(chairCtx, RequestPermissionRequest{PermissionType: PermissionDelegateRegistration})
	s.Require().NoError(err)

	_, err = s.service.ReviewPermission(s.ctx(), pr.ID, ReviewPermissionRequest{Approve: false})
	s.Require().NoError(err)

	_, err = s.service.ReviewPermission(s.ctx(), pr.ID, ReviewPermissionRequest{Approve: true})
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func TestParseUserAgent(t *testing.T) {
	device, browser, os := parseUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	require.Equal(t, "mobile", device)
	require.Contains(t, browser, "Safari")
	require.NotEmpty(t, os)

	device, browser, os = parseUserAgent("")
	require.Empty(t, device)
	require.Empty(t, browser)
	require.Empty(t, os)
}
