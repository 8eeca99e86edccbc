package testutil

import (
	"net/http"
	"time"

	id "kayo/pkg/domain"
	"kayo/pkg/requestcontext"
)

// AsUser stamps the request context the way the auth middleware would for
// an authenticated caller with the given user and role.
func AsUser(req *http.Request, userID id.UserID, role string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// AtTime pins the request time so handlers produce deterministic timestamps.
func AtTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID tags the request context for assertions on audit metadata.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
