package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessions("secret", time.Hour)

	token, err := s.GenerateJWT("ada@example.com")
	require.NoError(t, err)

	sub, err := s.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sub)
}

func TestSessionRejectsForeignSecret(t *testing.T) {
	token, err := NewSessions("one", time.Hour).GenerateJWT("u")
	require.NoError(t, err)

	_, err = NewSessions("two", time.Hour).ValidateJWT(token)
	assert.Error(t, err)
}

func TestSessionRejectsExpired(t *testing.T) {
	s := NewSessions("secret", time.Minute)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := s.GenerateJWT("u")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ValidateJWT(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSessionRejectsMissingSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewSessions("secret", 0).ValidateJWT(token)
	assert.Error(t, err)
}
