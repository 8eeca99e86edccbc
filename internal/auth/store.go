package auth

import (
	"context"
	"time"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across user, session
// and permission stores.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

type UserStore interface {
	Insert(ctx context.Context, user User) error
	Update(ctx context.Context, user User) error
	FindByID(ctx context.Context, userID id.UserID) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
}

type SessionStore interface {
	Insert(ctx context.Context, session Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]Session, error)
	Touch(ctx context.Context, sessionID id.SessionID, at time.Time) error
	Deactivate(ctx context.Context, sessionID id.SessionID) error
	DeactivateAllForUser(ctx context.Context, userID id.UserID) error
}

type PermissionRequestStore interface {
	Insert(ctx context.Context, request PermissionRequest) error
	Update(ctx context.Context, request PermissionRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (PermissionRequest, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]PermissionRequest, error)
	ListByStatus(ctx context.Context, status string) ([]PermissionRequest, error)
	// FindActive returns the newest approved, unexpired request of the
	// given type for the user, or ErrNotFound.
	FindActive(ctx context.Context, userID id.UserID, permissionType string, now time.Time) (PermissionRequest, error)
}
