package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewTokenService("secret", time.Hour)

	token, err := s.Issue("ops@example.com", "admin")
	require.NoError(t, err)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims["sub"])
	assert.Equal(t, "admin", claims["role"])
}

func TestTokenExpired(t *testing.T) {
	s := NewTokenService("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issued }

	token, err := s.Issue("ops", "admin")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenService("one", time.Hour).Issue("ops", "admin")
	require.NoError(t, err)

	_, err = NewTokenService("two", time.Hour).Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "ops"})
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenService("secret", time.Hour).Validate(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWithoutSecret(t *testing.T) {
	s := NewTokenService("", time.Hour)

	_, err := s.Issue("ops", "admin")
	require.Error(t, err)
	_, err = s.Validate("anything")
	require.ErrorIs(t, err, ErrInvalidToken)
}
