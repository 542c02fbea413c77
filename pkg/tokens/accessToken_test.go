package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestAccessClaimsRoundTrip(t *testing.T) {
	tok, err := NewAccessToken(RoleAdmin, "8d7e2c9a-0000-4000-8000-000000000001", time.Now().Add(time.Minute), secret)
	require.NoError(t, err)

	claims, err := AccessClaimsFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "8d7e2c9a-0000-4000-8000-000000000001", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestAccessClaimsRejects(t *testing.T) {
	expired, err := NewAccessToken("user", "u", time.Now().Add(-time.Minute), secret)
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	valid, err := NewAccessToken("user", "u", time.Now().Add(time.Minute), secret)
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(valid, []byte("other"))
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{Role: "user"})
	s, err := none.SignedString(secret)
	require.NoError(t, err)
	_, err = AccessClaimsFromToken(s, secret)
	assert.Error(t, err)
}
