package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issue(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("backend-only-secret"))
	require.NoError(t, err)
	return signed
}

func TestInspect(t *testing.T) {
	iat := time.Unix(1700000000, 0)
	exp := iat.Add(15 * time.Minute)

	token := issue(t, Claims{
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "demo@example.com",
			Issuer:    "Nimbus API",
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	info, err := Inspect(token)
	require.NoError(t, err)

	assert.Equal(t, "demo@example.com", info.Subject)
	assert.Equal(t, "access", info.Type)
	assert.Equal(t, "Nimbus API", info.Issuer)
	assert.Equal(t, "HS256", info.Algorithm)
	require.NotNil(t, info.ExpiresAt)
	assert.True(t, exp.Equal(*info.ExpiresAt))

	assert.False(t, info.Expired(iat))
	assert.Equal(t, 15*time.Minute, info.ExpiresIn(iat))
	assert.True(t, info.Expired(exp))
	assert.Zero(t, info.ExpiresIn(exp.Add(time.Minute)))
}

func TestInspect_ExpiredTokenStillDecodes(t *testing.T) {
	token := issue(t, Claims{
		Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	info, err := Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, "refresh", info.Type)
	assert.True(t, info.Expired(time.Now()))
}

func TestInspect_NoExpiry(t *testing.T) {
	info, err := Inspect(issue(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}))
	require.NoError(t, err)
	assert.False(t, info.Expired(time.Now()))
	assert.Zero(t, info.ExpiresIn(time.Now()))
}

func TestInspect_Malformed(t *testing.T) {
	_, err := Inspect("not-a-jwt")
	assert.ErrorIs(t, err, ErrMalformedToken)
}
