package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"golang.org/x/crypto/bcrypt"

	"kayo/internal/audit"
	"kayo/internal/platform/metrics"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

const minPasswordLength = 8

// Service implements login, session management, account administration
// and permission requests.
type Service struct {
	users       UserStore
	sessions    SessionStore
	permissions PermissionRequestStore
	tokens      *TokenIssuer
	otp         *OTPManager
	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       audit.Recorder
}

func NewService(
	users UserStore,
	sessions SessionStore,
	permissions PermissionRequestStore,
	tokens *TokenIssuer,
	otp *OTPManager,
	logger *slog.Logger,
	m *metrics.Metrics,
	recorder audit.Recorder,
) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		users:       users,
		sessions:    sessions,
		permissions: permissions,
		tokens:      tokens,
		otp:         otp,
		logger:      logger,
		metrics:     m,
		audit:       recorder,
	}
}

// Login checks credentials. With OTP enabled it mails a code and returns a
// challenge; otherwise it opens a session immediately.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResult{}, err
	}

	if s.otp != nil {
		if err := s.otp.Send(ctx, user); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{OTPRequired: true}, nil
	}
	return s.openSession(ctx, user)
}

// Register creates an account from the public signup endpoint and logs
// it straight in. The role defaults to chair; only chapter-level roles
// may be claimed.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (LoginResult, error) {
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = RoleChair
	}
	if role != RoleChair && role != RoleYouthMinister {
		return LoginResult{}, dErrors.New(dErrors.CodeValidation, "role must be chair or youth_minister")
	}

	user, err := s.CreateUser(ctx, CreateUserRequest{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Role:         role,
		Password:     req.Password,
		LocalChurch:  req.LocalChurch,
		Parish:       req.Parish,
		Archdeaconry: req.Archdeaconry,
	})
	if err != nil {
		return LoginResult{}, err
	}
	return s.openSession(ctx, user)
}

// VerifyOTP completes a two-step login.
func (s *Service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (LoginResult, error) {
	if s.otp == nil {
		return LoginResult{}, dErrors.New(dErrors.CodeBadRequest, "otp login is not enabled")
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired code")
		}
		return LoginResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	if err := s.otp.Verify(ctx, user.Email, req.Code); err != nil {
		return LoginResult{}, err
	}
	return s.openSession(ctx, user)
}

func (s *Service) authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.recordLoginFailure(ctx, email, "unknown email")
			return User{}, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
		}
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	if !user.IsActive {
		s.recordLoginFailure(ctx, email, "account deactivated")
		return User{}, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.recordLoginFailure(ctx, email, "wrong password")
		return User{}, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}
	return user, nil
}

func (s *Service) recordLoginFailure(ctx context.Context, email, reason string) {
	if s.metrics != nil {
		s.metrics.LoginFailures.Inc()
	}
	s.logger.WarnContext(ctx, "login failed",
		"email", email,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) openSession(ctx context.Context, user User) (LoginResult, error) {
	now := requestcontext.Now(ctx)
	sessionID := id.NewSessionID()

	token, expiresAt, err := s.tokens.Issue(user, sessionID, now)
	if err != nil {
		return LoginResult{}, err
	}

	session := Session{
		ID:           sessionID,
		UserID:       user.ID,
		TokenHash:    HashToken(token),
		IPAddress:    requestcontext.ClientIP(ctx),
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    expiresAt,
	}
	session.Device, session.Browser, session.OS = parseUserAgent(requestcontext.UserAgent(ctx))

	if err := s.sessions.Insert(ctx, session); err != nil {
		return LoginResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "create session")
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:       user.ID,
		UserEmail:    user.Email,
		Action:       audit.ActionLogin,
		ResourceType: "session",
		ResourceID:   sessionID.String(),
	})

	return LoginResult{Token: token, ExpiresAt: expiresAt, User: &user}, nil
}

func parseUserAgent(raw string) (device, browser, os string) {
	if raw == "" {
		return "", "", ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	browser = strings.TrimSpace(name + " " + version)
	os = ua.OS()
	switch {
	case ua.Bot():
		device = "bot"
	case ua.Mobile():
		device = "mobile"
	default:
		device = "desktop"
	}
	return device, browser, os
}

// Logout deactivates the caller's current session.
func (s *Service) Logout(ctx context.Context) error {
	sessionID := requestcontext.SessionID(ctx)
	if sessionID.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "no active session")
	}
	if err := s.sessions.Deactivate(ctx, sessionID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "deactivate session")
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionLogout,
		ResourceType: "session",
		ResourceID:   sessionID.String(),
	})
	return nil
}

// Sessions lists the caller's login sessions, newest activity first.
func (s *Service) Sessions(ctx context.Context) ([]Session, error) {
	userID := requestcontext.UserID(ctx)
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}
	return sessions, nil
}

// RevokeSession deactivates one of the caller's sessions.
func (s *Service) RevokeSession(ctx context.Context, sessionID id.SessionID) error {
	userID := requestcontext.UserID(ctx)
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}
	for _, sess := range sessions {
		if sess.ID == sessionID {
			if err := s.sessions.Deactivate(ctx, sessionID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "deactivate session")
			}
			return nil
		}
	}
	return dErrors.New(dErrors.CodeNotFound, "session not found")
}

// ValidSession reports whether the session behind the claims is still
// active. The token issuer validates signatures; this adds revocation.
func (s *Service) ValidSession(ctx context.Context, userID id.UserID, sessionID id.SessionID, now time.Time) bool {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return false
	}
	for _, sess := range sessions {
		if sess.ID == sessionID {
			return sess.IsActive && now.Before(sess.ExpiresAt)
		}
	}
	return false
}

// ChangePassword rotates the caller's password and revokes their other
// sessions.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if len(req.NewPassword) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	userID := requestcontext.UserID(ctx)
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}
	if err := s.sessions.DeactivateAllForUser(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke sessions")
	}
	s.audit.Record(ctx, audit.Entry{
		UserEmail:    user.Email,
		Action:       audit.ActionUpdate,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		Description:  "password changed",
	})
	return nil
}

// ForgotPassword mails a password-reset code. Unknown or deactivated
// accounts succeed silently so the endpoint cannot be used to probe for
// registered emails.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if s.otp == nil {
		return dErrors.New(dErrors.CodeUnavailable, "password reset by email is not enabled")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	if !user.IsActive {
		return nil
	}
	return s.otp.SendReset(ctx, user)
}

// ResetPasswordWithOTP sets a new password after verifying the emailed
// code, then revokes every session on the account.
func (s *Service) ResetPasswordWithOTP(ctx context.Context, req ResetPasswordRequest) error {
	if s.otp == nil {
		return dErrors.New(dErrors.CodeUnavailable, "password reset by email is not enabled")
	}
	if len(req.NewPassword) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid or expired code")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	if err := s.otp.VerifyReset(ctx, user.Email, req.Code); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}
	if err := s.sessions.DeactivateAllForUser(ctx, user.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke sessions")
	}
	s.audit.Record(ctx, audit.Entry{
		UserEmail:    user.Email,
		Action:       audit.ActionUpdate,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		Description:  "password reset via emailed code",
	})
	return nil
}

// CreateUser provisions an account. Admin only; the handler enforces the
// role, the service enforces the data.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (User, error) {
	if err := validateCreateUser(req); err != nil {
		return User{}, err
	}
	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return User{}, dErrors.New(dErrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	user := User{
		ID:           id.NewUserID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         req.Role,
		PasswordHash: string(hash),
		LocalChurch:  strings.TrimSpace(req.LocalChurch),
		Parish:       strings.TrimSpace(req.Parish),
		Archdeaconry: strings.TrimSpace(req.Archdeaconry),
		IsActive:     true,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert user")
	}

	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		NewValues:    map[string]any{"email": user.Email, "role": user.Role},
	})
	return user, nil
}

func validateCreateUser(req CreateUserRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if !strings.Contains(req.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if !ValidRole(req.Role) {
		return dErrors.New(dErrors.CodeValidation, "unknown role")
	}
	if len(req.Password) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// GetUser fetches one account.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	return user, nil
}

// ListUsers returns all accounts, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list users")
	}
	return users, nil
}

// UpdateProfile applies the caller's own mutable fields.
func (s *Service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (User, error) {
	user, err := s.GetUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		return User{}, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return User{}, dErrors.New(dErrors.CodeValidation, "name cannot be empty")
		}
		user.Name = name
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}
	s.audit.Record(ctx, audit.Entry{
		UserEmail:    user.Email,
		Action:       audit.ActionUpdate,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		Description:  "profile updated",
	})
	return user, nil
}

// UpdateUser applies the non-nil fields. Deactivating an account also
// revokes its sessions.
func (s *Service) UpdateUser(ctx context.Context, userID id.UserID, req UpdateUserRequest) (User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	old := map[string]any{"role": user.Role, "is_active": user.IsActive}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Role != nil {
		if !ValidRole(*req.Role) {
			return User{}, dErrors.New(dErrors.CodeValidation, "unknown role")
		}
		user.Role = *req.Role
	}
	if req.LocalChurch != nil {
		user.LocalChurch = strings.TrimSpace(*req.LocalChurch)
	}
	if req.Parish != nil {
		user.Parish = strings.TrimSpace(*req.Parish)
	}
	if req.Archdeaconry != nil {
		user.Archdeaconry = strings.TrimSpace(*req.Archdeaconry)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}
	if req.IsActive != nil && !*req.IsActive {
		if err := s.sessions.DeactivateAllForUser(ctx, userID); err != nil {
			return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "revoke sessions")
		}
	}

	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		OldValues:    old,
		NewValues:    map[string]any{"role": user.Role, "is_active": user.IsActive},
	})
	return user, nil
}

// ResetPassword sets a new password for another account and revokes its
// sessions. Admin only.
func (s *Service) ResetPassword(ctx context.Context, userID id.UserID, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return dErrors.Newf(dErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}
	if err := s.sessions.DeactivateAllForUser(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke sessions")
	}
	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionUpdate,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		Description:  "password reset by admin",
	})
	return nil
}

// RequestPermission opens a request for an elevated capability.
func (s *Service) RequestPermission(ctx context.Context, req RequestPermissionRequest) (PermissionRequest, error) {
	if !ValidPermissionType(req.PermissionType) {
		return PermissionRequest{}, dErrors.New(dErrors.CodeValidation, "unknown permission type")
	}
	pr := PermissionRequest{
		ID:             id.NewRequestID(),
		UserID:         requestcontext.UserID(ctx),
		PermissionType: req.PermissionType,
		Reason:         strings.TrimSpace(req.Reason),
		Scope:          strings.TrimSpace(req.Scope),
		ScopeValue:     strings.TrimSpace(req.ScopeValue),
		Status:         PermissionStatusPending,
		RequestedAt:    requestcontext.Now(ctx),
	}
	if err := s.permissions.Insert(ctx, pr); err != nil {
		return PermissionRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "insert permission request")
	}
	return pr, nil
}

// ReviewPermission approves or rejects a pending request. Approvals are
// time-boxed; the default window is 24 hours.
func (s *Service) ReviewPermission(ctx context.Context, requestID id.RequestID, req ReviewPermissionRequest) (PermissionRequest, error) {
	pr, err := s.permissions.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PermissionRequest{}, dErrors.New(dErrors.CodeNotFound, "permission request not found")
		}
		return PermissionRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "find permission request")
	}
	if pr.Status != PermissionStatusPending {
		return PermissionRequest{}, dErrors.New(dErrors.CodeConflict, "permission request already reviewed")
	}

	now := requestcontext.Now(ctx)
	pr.ReviewedAt = &now
	pr.ReviewedBy = requestcontext.UserID(ctx)
	pr.ReviewerNotes = strings.TrimSpace(req.Notes)

	action := audit.ActionReject
	if req.Approve {
		pr.Status = PermissionStatusApproved
		hours := req.ValidForHours
		if hours <= 0 {
			hours = 24
		}
		expires := now.Add(time.Duration(hours) * time.Hour)
		pr.ExpiresAt = &expires
		action = audit.ActionApprove
	} else {
		pr.Status = PermissionStatusRejected
	}

	if err := s.permissions.Update(ctx, pr); err != nil {
		return PermissionRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "update permission request")
	}

	s.audit.Record(ctx, audit.Entry{
		Action:       action,
		ResourceType: "permission_request",
		ResourceID:   pr.ID.String(),
		NewValues:    map[string]any{"status": pr.Status, "permission_type": pr.PermissionType},
	})
	return pr, nil
}

// MyPermissionRequests lists the caller's requests.
func (s *Service) MyPermissionRequests(ctx context.Context) ([]PermissionRequest, error) {
	requests, err := s.permissions.ListByUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list permission requests")
	}
	return requests, nil
}

// PendingPermissionRequests lists requests awaiting review.
func (s *Service) PendingPermissionRequests(ctx context.Context) ([]PermissionRequest, error) {
	requests, err := s.permissions.ListByStatus(ctx, PermissionStatusPending)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list permission requests")
	}
	return requests, nil
}

// HasActivePermission reports whether the user holds an approved,
// unexpired grant of the given type.
func (s *Service) HasActivePermission(ctx context.Context, userID id.UserID, permissionType string) (bool, error) {
	_, err := s.permissions.FindActive(ctx, userID, permissionType, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "find active permission")
	}
	return true, nil
}
