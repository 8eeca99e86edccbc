package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	id "kayo/pkg/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("signing-key", time.Hour)
	user := User{ID: id.NewUserID(), Role: RoleFinance}
	sessionID := id.NewSessionID()

	token, expiresAt, err := issuer.Issue(user, sessionID, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := issuer.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, sessionID, claims.SessionID)
	require.Equal(t, RoleFinance, claims.Role)
}

func TestTokenRejectsWrongKey(t *testing.T) {
	issuer := NewTokenIssuer("signing-key", time.Hour)
	other := NewTokenIssuer("different-key", time.Hour)

	token, _, err := issuer.Issue(User{ID: id.NewUserID(), Role: RoleChair}, id.NewSessionID(), time.Now())
	require.NoError(t, err)

	_, err = other.ValidateToken(context.Background(), token)
	require.Error(t, err)
}

func TestTokenRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("signing-key", time.Hour)

	token, _, err := issuer.Issue(User{ID: id.NewUserID(), Role: RoleChair}, id.NewSessionID(), time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = issuer.ValidateToken(context.Background(), token)
	require.Error(t, err)
}

func TestHashTokenStable(t *testing.T) {
	require.Equal(t, HashToken("abc"), HashToken("abc"))
	require.NotEqual(t, HashToken("abc"), HashToken("abd"))
	require.Len(t, HashToken("abc"), 64)
}
