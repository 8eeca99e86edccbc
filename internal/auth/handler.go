package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	"kayo/pkg/platform/httputil"
	"kayo/pkg/requestcontext"
)

// UserService is the interface the HTTP layer depends on.
type UserService interface {
	Login(ctx context.Context, req LoginRequest) (LoginResult, error)
	Register(ctx context.Context, req RegisterRequest) (LoginResult, error)
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) (LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPasswordWithOTP(ctx context.Context, req ResetPasswordRequest) error
	Logout(ctx context.Context) error
	Sessions(ctx context.Context) ([]Session, error)
	RevokeSession(ctx context.Context, sessionID id.SessionID) error
	ChangePassword(ctx context.Context, req ChangePasswordRequest) error
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (User, error)

	CreateUser(ctx context.Context, req CreateUserRequest) (User, error)
	GetUser(ctx context.Context, userID id.UserID) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, userID id.UserID, req UpdateUserRequest) (User, error)
	ResetPassword(ctx context.Context, userID id.UserID, newPassword string) error

	RequestPermission(ctx context.Context, req RequestPermissionRequest) (PermissionRequest, error)
	ReviewPermission(ctx context.Context, requestID id.RequestID, req ReviewPermissionRequest) (PermissionRequest, error)
	MyPermissionRequests(ctx context.Context) ([]PermissionRequest, error)
	PendingPermissionRequests(ctx context.Context) ([]PermissionRequest, error)
}

// Handler serves authentication, account and permission endpoints.
type Handler struct {
	logger       *slog.Logger
	service      UserService
	jwtValidator middleware.JWTValidator
}

func NewHandler(service UserService, jwtValidator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, jwtValidator: jwtValidator}
}

// Register mounts the auth routes on a router that already carries the
// platform middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/otp/verify", h.handleVerifyOTP)
	r.Post("/auth/forgot-password", h.handleForgotPassword)
	r.Post("/auth/reset-password", h.handleResetPasswordWithCode)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Post("/auth/logout", h.handleLogout)
		r.Get("/auth/me", h.handleMe)
		r.Put("/auth/me", h.handleUpdateProfile)
		r.Post("/auth/password", h.handleChangePassword)
		r.Get("/auth/sessions", h.handleListSessions)
		r.Delete("/auth/sessions/{sessionID}", h.handleRevokeSession)

		r.Post("/permission-requests", h.handleRequestPermission)
		r.Get("/permission-requests", h.handleMyPermissionRequests)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.logger, RoleAdmin))

			r.Post("/admin/users", h.handleCreateUser)
			r.Get("/admin/users", h.handleListUsers)
			r.Get("/admin/users/{userID}", h.handleGetUser)
			r.Patch("/admin/users/{userID}", h.handleUpdateUser)
			r.Post("/admin/users/{userID}/reset-password", h.handleResetPassword)

			r.Get("/admin/permission-requests", h.handlePendingPermissionRequests)
			r.Post("/admin/permission-requests/{requestID}/review", h.handleReviewPermission)
		})
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Login(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, "login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Register(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, "registration failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		h.writeServiceError(w, r, "failed to start password reset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResetPasswordWithCode(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.ResetPasswordWithOTP(r.Context(), req); err != nil {
		h.writeServiceError(w, r, "password reset failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req VerifyOTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.VerifyOTP(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, "otp verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		h.writeServiceError(w, r, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.service.GetUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.writeServiceError(w, r, "failed to load profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "failed to update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), req); err != nil {
		h.writeServiceError(w, r, "password change failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.Sessions(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.RevokeSession(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, r, "failed to revoke session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "failed to create user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to list users", err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "failed to load user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req UpdateUserRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.UpdateUser(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, "failed to update user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), userID, req.NewPassword); err != nil {
		h.writeServiceError(w, r, "failed to reset password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	var req RequestPermissionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	pr, err := h.service.RequestPermission(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "failed to request permission", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, pr)
}

func (h *Handler) handleMyPermissionRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.MyPermissionRequests(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to list permission requests", err)
		return
	}
	if requests == nil {
		requests = []PermissionRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"permission_requests": requests})
}

func (h *Handler) handlePendingPermissionRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.PendingPermissionRequests(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "failed to list permission requests", err)
		return
	}
	if requests == nil {
		requests = []PermissionRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"permission_requests": requests})
}

func (h *Handler) handleReviewPermission(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req ReviewPermissionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	pr, err := h.service.ReviewPermission(r.Context(), requestID, req)
	if err != nil {
		h.writeServiceError(w, r, "failed to review permission request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pr)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	httputil.WriteServiceError(r.Context(), w, h.logger, msg, err)
}
