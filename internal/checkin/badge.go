package checkin

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "kayo/pkg/domain"
	dErrors "kayo/pkg/domain-errors"
)

// BadgeIssuer signs and verifies badge QR payloads. HS256 with its own
// claim kind so an access token can never pass as a badge.
type BadgeIssuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewBadgeIssuer(signingKey string, ttl time.Duration) *BadgeIssuer {
	return &BadgeIssuer{signingKey: []byte(signingKey), ttl: ttl}
}

type badgeClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

const badgeKind = "badge"

// Issue signs a badge token for the delegate.
func (b *BadgeIssuer) Issue(delegateID id.DelegateID, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(b.ttl)
	claims := badgeClaims{
		Kind: badgeKind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   delegateID.String(),
			Issuer:    "kayo",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign badge")
	}
	return token, expiresAt, nil
}

// Verify checks a scanned payload and returns the delegate it names.
func (b *BadgeIssuer) Verify(token string) (id.DelegateID, error) {
	var claims badgeClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return b.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer("kayo"))
	if err != nil {
		return id.DelegateID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid badge")
	}
	if claims.Kind != badgeKind {
		return id.DelegateID{}, dErrors.New(dErrors.CodeInvalidInput, "not a badge token")
	}
	delegateID, err := id.ParseDelegateID(claims.Subject)
	if err != nil {
		return id.DelegateID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid badge subject")
	}
	return delegateID, nil
}
