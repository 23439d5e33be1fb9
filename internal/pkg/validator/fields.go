package validator

import "strings"

// Error is a validation failure whose text is shown to the user verbatim.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrCredentialsRequired Error = "Email and password required"
	ErrAPIKeyRequired      Error = "API key ID and secret required for HMAC"
	ErrEventFieldsRequired Error = "All fields required"
	ErrTokenRequired       Error = "Login first to get JWT"
	ErrRefreshRequired     Error = "No refresh token; login first"
)

// Credentials checks the login/register form. Only presence is enforced;
// the backend owns the actual rules for what an account looks like.
func Credentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return ErrCredentialsRequired
	}
	return nil
}

func APIKey(id, secret string) error {
	if strings.TrimSpace(id) == "" || secret == "" {
		return ErrAPIKeyRequired
	}
	return nil
}

func Event(name, ts, page string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(ts) == "" || strings.TrimSpace(page) == "" {
		return ErrEventFieldsRequired
	}
	return nil
}

func Token(token string) error {
	if token == "" {
		return ErrTokenRequired
	}
	return nil
}

func RefreshToken(token string) error {
	if token == "" {
		return ErrRefreshRequired
	}
	return nil
}
