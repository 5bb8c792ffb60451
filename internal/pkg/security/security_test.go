package security

import (
	"Keepsake/internal/api/config"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer() *TokenIssuer {
	return NewTokenIssuer(config.JWTConfig{Secret: "test-secret", Issuer: "Keepsake", ExpireHours: 1})
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := newIssuer()
	token, exp, err := issuer.GenerateToken(7, 3)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), claims.UserID)
	assert.Equal(t, uint64(3), claims.CoupleID)
}

func TestTokenExpired(t *testing.T) {
	issuer := newIssuer()
	token, _, err := issuer.GenerateToken(1, 0)
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenWrongSecret(t *testing.T) {
	token, _, err := newIssuer().GenerateToken(1, 0)
	require.NoError(t, err)

	other := NewTokenIssuer(config.JWTConfig{Secret: "other", Issuer: "Keepsake", ExpireHours: 1})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestExtractSignature(t *testing.T) {
	sig, err := ExtractSignature("a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "c", sig)

	_, err = ExtractSignature("a.b")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NoError(t, CheckPasswordHash("s3cret", hash))
	assert.ErrorIs(t, CheckPasswordHash("wrong", hash), ErrInvalidCredentials)

	_, err = HashPassword("")
	assert.Error(t, err)
}
