package auth

import (
	"context"
	"time"

	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
	"kayo/pkg/requestcontext"
)

// SessionChecker answers whether a session is still live. Satisfied by
// *Service.
type SessionChecker interface {
	ValidSession(ctx context.Context, userID id.UserID, sessionID id.SessionID, now time.Time) bool
}

// SessionValidator validates a bearer token and then checks that the
// session it was issued against has not been revoked. Logout and admin
// revocation take effect immediately instead of at token expiry.
type SessionValidator struct {
	tokens   *TokenIssuer
	sessions SessionChecker
}

func NewSessionValidator(tokens *TokenIssuer, sessions SessionChecker) *SessionValidator {
	return &SessionValidator{tokens: tokens, sessions: sessions}
}

var _ middleware.JWTValidator = (*SessionValidator)(nil)

// ValidateToken implements middleware.JWTValidator.
func (v *SessionValidator) ValidateToken(ctx context.Context, tokenString string) (*middleware.JWTClaims, error) {
	claims, err := v.tokens.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if !v.sessions.ValidSession(ctx, claims.UserID, claims.SessionID, requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session revoked or expired")
	}
	return claims, nil
}
