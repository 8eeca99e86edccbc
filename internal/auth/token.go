package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kayo/internal/platform/middleware"
	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

// TokenIssuer signs and validates access tokens. HS256 with a shared key;
// the claims carry the user, session and role so handlers never need a
// database round trip for authorization.
type TokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewTokenIssuer(signingKey string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{signingKey: []byte(signingKey), ttl: ttl}
}

var _ middleware.JWTValidator = (*TokenIssuer)(nil)

type accessClaims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Issue signs an access token for the user bound to the given session.
func (t *TokenIssuer) Issue(user User, sessionID id.SessionID, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(t.ttl)
	claims := accessClaims{
		Role:      user.Role,
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    "kayo",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}
	return token, expiresAt, nil
}

// ValidateToken implements middleware.JWTValidator. It checks signature
// and expiry only; SessionValidator layers revocation on top.
func (t *TokenIssuer) ValidateToken(_ context.Context, tokenString string) (*middleware.JWTClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return t.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer("kayo"))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token session")
	}
	return &middleware.JWTClaims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      claims.Role,
	}, nil
}

// HashToken produces the stable digest stored next to each session. Raw
// tokens never touch the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
