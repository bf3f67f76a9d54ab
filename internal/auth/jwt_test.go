package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "trekmap", "trekmap", time.Hour)

	signed, err := a.GenerateToken(42, "admin")
	require.NoError(t, err)

	token, err := a.ValidateAccessToken(signed)
	require.NoError(t, err)

	id, err := UserID(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "trekmap", "trekmap", time.Hour)

	other := NewJWTAuthenticator("different", "trekmap", "trekmap", time.Hour)
	signed, err := other.GenerateToken(1, "")
	require.NoError(t, err)
	_, err = a.ValidateAccessToken(signed)
	assert.Error(t, err)

	wrongAud := NewJWTAuthenticator("s3cret", "someone-else", "trekmap", time.Hour)
	signed, err = wrongAud.GenerateToken(1, "")
	require.NoError(t, err)
	_, err = a.ValidateAccessToken(signed)
	assert.Error(t, err)

	expired := NewJWTAuthenticator("s3cret", "trekmap", "trekmap", -time.Minute)
	signed, err = expired.GenerateToken(1, "")
	require.NoError(t, err)
	_, err = a.ValidateAccessToken(signed)
	assert.Error(t, err)
}

func TestUserIDRejectsBadSubjects(t *testing.T) {
	for _, sub := range []any{"42", 0.0, -3.0, 1.5, nil} {
		_, err := UserID(&jwt.Token{Claims: jwt.MapClaims{"sub": sub}})
		assert.ErrorIs(t, err, ErrInvalidSubject)
	}
}
