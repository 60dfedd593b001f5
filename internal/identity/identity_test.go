package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdeck/insightdeck/internal/apperr"
)

func signedToken(t *testing.T, secret, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWT_ResolvesSubject(t *testing.T) {
	r := NewJWT("secret")
	uid, err := r.Resolve("Bearer " + signedToken(t, "secret", "user-42"))
	require.NoError(t, err)
	assert.Equal(t, "user-42", uid)
}

func TestJWT_MissingHeader(t *testing.T) {
	r := NewJWT("secret")
	_, err := r.Resolve("")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestJWT_WrongSecret(t *testing.T) {
	r := NewJWT("secret")
	_, err := r.Resolve("Bearer " + signedToken(t, "other-secret", "user-42"))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestJWT_ExpiredToken(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	r := NewJWT("secret")
	_, err = r.Resolve("Bearer " + s)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestStatic_FixedIdentity(t *testing.T) {
	r := NewStatic("prototype-user")
	uid, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "prototype-user", uid)
}
