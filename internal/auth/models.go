package auth

import (
	"time"

	id "kayo/pkg/domain"
)

// Roles, lowest to highest privilege. super_admin passes every role check.
const (
	RoleChair         = "chair"
	RoleYouthMinister = "youth_minister"
	RoleFinance       = "finance"
	RoleAdmin         = "admin"
	RoleSuperAdmin    = "super_admin"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleChair, RoleYouthMinister, RoleFinance, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User is an account holder: chapter chairs, youth ministers, finance
// officers and administrators.
type User struct {
	ID           id.UserID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	LocalChurch  string    `json:"local_church,omitempty"`
	Parish       string    `json:"parish,omitempty"`
	Archdeaconry string    `json:"archdeaconry,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is one device login. The raw token is never stored, only its
// SHA-256 hash.
type Session struct {
	ID           id.SessionID `json:"id"`
	UserID       id.UserID    `json:"user_id"`
	TokenHash    string       `json:"-"`
	Device       string       `json:"device,omitempty"`
	Browser      string       `json:"browser,omitempty"`
	OS           string       `json:"os,omitempty"`
	IPAddress    string       `json:"ip_address,omitempty"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// Permission request lifecycle.
const (
	PermissionStatusPending  = "pending"
	PermissionStatusApproved = "approved"
	PermissionStatusRejected = "rejected"
)

// Grantable permission types.
const (
	PermissionDelegateRegistration = "delegate_registration"
	PermissionBulkUpload           = "bulk_upload"
	PermissionPaymentConfirmation  = "payment_confirmation"
)

// ValidPermissionType reports whether t is a grantable permission.
func ValidPermissionType(t string) bool {
	switch t {
	case PermissionDelegateRegistration, PermissionBulkUpload, PermissionPaymentConfirmation:
		return true
	}
	return false
}

// PermissionRequest is a chair's time-boxed request for an elevated
// capability, reviewed by an admin.
type PermissionRequest struct {
	ID             id.RequestID `json:"id"`
	UserID         id.UserID    `json:"user_id"`
	PermissionType string       `json:"permission_type"`
	Reason         string       `json:"reason,omitempty"`
	Scope          string       `json:"scope,omitempty"`
	ScopeValue     string       `json:"scope_value,omitempty"`
	Status         string       `json:"status"`
	RequestedAt    time.Time    `json:"requested_at"`
	ReviewedAt     *time.Time   `json:"reviewed_at,omitempty"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
	ReviewedBy     id.UserID    `json:"reviewed_by,omitempty"`
	ReviewerNotes  string       `json:"reviewer_notes,omitempty"`
}

// Active reports whether the request grants its permission at time now.
func (pr PermissionRequest) Active(now time.Time) bool {
	if pr.Status != PermissionStatusApproved {
		return false
	}
	return pr.ExpiresAt == nil || now.Before(*pr.ExpiresAt)
}

// LoginRequest is the credentials payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is either a token or an OTP challenge.
type LoginResult struct {
	OTPRequired bool      `json:"otp_required"`
	Token       string    `json:"token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
	User        *User     `json:"user,omitempty"`
}

// VerifyOTPRequest completes a two-step login.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RegisterRequest is the public self-signup payload. Elevated roles
// cannot be claimed here; admins provision those.
type RegisterRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	LocalChurch  string `json:"local_church"`
	Parish       string `json:"parish"`
	Archdeaconry string `json:"archdeaconry"`
}

// ForgotPasswordRequest starts a self-service password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes a reset with the emailed code.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// UpdateProfileRequest carries the fields a user may change on their own
// account. Nil pointers mean "leave unchanged".
type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// CreateUserRequest is the admin payload for provisioning accounts.
type CreateUserRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`
	Password     string `json:"password"`
	LocalChurch  string `json:"local_church"`
	Parish       string `json:"parish"`
	Archdeaconry string `json:"archdeaconry"`
}

// UpdateUserRequest carries mutable account fields. Nil pointers mean
// "leave unchanged".
type UpdateUserRequest struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	Role         *string `json:"role"`
	LocalChurch  *string `json:"local_church"`
	Parish       *string `json:"parish"`
	Archdeaconry *string `json:"archdeaconry"`
	IsActive     *bool   `json:"is_active"`
}

// ChangePasswordRequest lets a user rotate their own password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// RequestPermissionRequest opens a permission request.
type RequestPermissionRequest struct {
	PermissionType string `json:"permission_type"`
	Reason         string `json:"reason"`
	Scope          string `json:"scope"`
	ScopeValue     string `json:"scope_value"`
}

// ReviewPermissionRequest approves or rejects a pending request.
type ReviewPermissionRequest struct {
	Approve       bool   `json:"approve"`
	ValidForHours int    `json:"valid_for_hours"`
	Notes         string `json:"notes"`
}
