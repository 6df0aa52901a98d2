package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestJWTRoundTrip(t *testing.T) {
	s := NewJWTService("secret")
	userID := uuid.New()

	tok, err := s.GenerateToken(userID)
	require.NoError(t, err)

	got, err := s.ExtractUserID(tok)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestJWTRejects(t *testing.T) {
	s := NewJWTService("secret")
	valid := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"пустой", ""},
		{"мусор", "not.a.token"},
		{"чужой ключ", sign(t, "other", jwt.MapClaims{"user_id": uuid.NewString(), "exp": valid})},
		{"просрочен", sign(t, "secret", jwt.MapClaims{"user_id": uuid.NewString(), "exp": time.Now().Add(-time.Minute).Unix()})},
		{"без exp", sign(t, "secret", jwt.MapClaims{"user_id": uuid.NewString()})},
		{"без user_id", sign(t, "secret", jwt.MapClaims{"exp": valid})},
		{"user_id не uuid", sign(t, "secret", jwt.MapClaims{"user_id": "42", "exp": valid})},
		{"нулевой uuid", sign(t, "secret", jwt.MapClaims{"user_id": uuid.Nil.String(), "exp": valid})},
		{"числовой user_id", sign(t, "secret", jwt.MapClaims{"user_id": 42, "exp": valid})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ExtractUserID(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTRejectsUnsignedToken(t *testing.T) {
	s := NewJWTService("secret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.ExtractUserID(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
