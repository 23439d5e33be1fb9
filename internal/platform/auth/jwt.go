package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedToken = errors.New("malformed token")

// Claims mirrors what the backend puts into its access and refresh tokens.
type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenInfo is the display form of a token the backend issued.
type TokenInfo struct {
	Subject   string     `json:"subject"`
	Type      string     `json:"type,omitempty"`
	Issuer    string     `json:"issuer,omitempty"`
	Algorithm string     `json:"algorithm"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Inspect decodes token without checking its signature. The playground never
// holds the backend's signing key, so the result is informational only and
// must not be used to make authorization decisions.
func Inspect(tokenString string) (*TokenInfo, error) {
	claims := &Claims{}
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, errors.Join(ErrMalformedToken, err)
	}

	info := &TokenInfo{
		Subject:   claims.Subject,
		Type:      claims.Type,
		Issuer:    claims.Issuer,
		Algorithm: token.Method.Alg(),
	}
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		info.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		info.ExpiresAt = &t
	}
	return info, nil
}

// Expired reports whether the token carried an expiry that is not after now.
func (i *TokenInfo) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// ExpiresIn is the remaining lifetime, zero when expired or unknown.
func (i *TokenInfo) ExpiresIn(now time.Time) time.Duration {
	if i.ExpiresAt == nil || i.Expired(now) {
		return 0
	}
	return i.ExpiresAt.Sub(now).Truncate(time.Second)
}
