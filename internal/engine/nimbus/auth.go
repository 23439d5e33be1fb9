package nimbus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	pathRegister = "/v1/auth/register"
	pathLogin    = "/v1/auth/login"
	pathRefresh  = "/v1/auth/refresh"
)

// Register creates an account. Any 2xx counts as success; the body is not
// interpreted.
func (c *Client) Register(ctx context.Context, creds Credentials) (*Response, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("register: encode body: %w", err)
	}
	resp, err := c.do(ctx, request{op: "register", method: http.MethodPost, path: pathRegister, body: body})
	if err != nil {
		return resp, err
	}
	c.finish("register", resp, nil)
	return resp, nil
}

// Login exchanges credentials for tokens. A 2xx response without an
// access_token is reported as an *APIError wrapping ErrNoAccessToken.
func (c *Client) Login(ctx context.Context, creds Credentials) (*TokenPair, *Response, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, nil, fmt.Errorf("login: encode body: %w", err)
	}
	resp, err := c.do(ctx, request{op: "login", method: http.MethodPost, path: pathLogin, body: body})
	if err != nil {
		return nil, resp, err
	}
	return c.tokens("login", resp)
}

// Refresh trades a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, *Response, error) {
	resp, err := c.do(ctx, request{
		op:      "refresh",
		method:  http.MethodPost,
		path:    pathRefresh,
		prepare: bearer(refreshToken),
	})
	if err != nil {
		return nil, resp, err
	}
	return c.tokens("refresh", resp)
}

func (c *Client) tokens(op string, resp *Response) (*TokenPair, *Response, error) {
	pair := &TokenPair{
		AccessToken:  resp.String("access_token"),
		RefreshToken: resp.String("refresh_token"),
		TokenType:    resp.String("token_type"),
	}
	if pair.AccessToken == "" {
		err := &APIError{Op: op, StatusCode: resp.StatusCode, Detail: resp.Detail(), Response: resp, cause: ErrNoAccessToken}
		c.finish(op, resp, err)
		return nil, resp, err
	}
	c.finish(op, resp, nil)
	return pair, resp, nil
}
