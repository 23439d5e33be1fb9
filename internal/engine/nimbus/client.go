// Package nimbus is a thin client for the Nimbus auth and event-ingestion API.
//
// Calls are made once; there is no retry. A failure to get any response is
// reported as an error wrapping ErrNetwork, a non-2xx response as *APIError.
package nimbus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"playground/internal/engine/signing"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	HeaderRequestID = "X-Request-Id"

	maxBodyBytes = 1 << 20
)

// Observer is told about every finished call.
type Observer interface {
	Observe(op string, status int, elapsed time.Duration, err error)
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	signer     *signing.Signer
	userAgent  string
	observer   Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithSigner(s *signing.Signer) Option {
	return func(c *Client) { c.signer = s }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		signer:     signing.NewSigner(),
		userAgent:  "nimbus-playground",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   []byte
	// prepare runs after the default headers are set; it sees the final URL.
	prepare func(req *http.Request)
}

func (c *Client) endpoint(path string, query url.Values) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u
}

func (c *Client) do(ctx context.Context, r request) (*Response, error) {
	u := c.endpoint(r.path, r.query)

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", r.op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(HeaderRequestID, requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prepare != nil {
		r.prepare(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		log.Warn().Err(err).
			Str("op", r.op).
			Str("request_id", requestID).
			Str("url", u.Redacted()).
			Msg("api request failed")
		err = fmt.Errorf("%s: %w: %w", r.op, ErrNetwork, err)
		c.observe(r.op, 0, elapsed, err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	elapsed := time.Since(start)
	if err != nil {
		err = fmt.Errorf("%s: read body: %w: %w", r.op, ErrNetwork, err)
		c.observe(r.op, 0, elapsed, err)
		return nil, err
	}

	if len(raw) > maxBodyBytes {
		out := &Response{StatusCode: resp.StatusCode, Body: map[string]interface{}{}, Raw: raw[:maxBodyBytes], RequestID: requestID, Elapsed: elapsed}
		log.Warn().
			Str("op", r.op).
			Str("request_id", requestID).
			Int("status", resp.StatusCode).
			Int("limit_bytes", maxBodyBytes).
			Msg("api response body too large")
		err := &APIError{Op: r.op, StatusCode: resp.StatusCode, Detail: "Response too large", Response: out, cause: ErrBodyTooLarge}
		c.observe(r.op, resp.StatusCode, elapsed, err)
		return out, err
	}

	out := newResponse(resp.StatusCode, raw)
	out.RequestID = requestID
	out.Elapsed = elapsed

	log.Debug().
		Str("op", r.op).
		Str("request_id", requestID).
		Str("method", r.method).
		Str("url", u.Redacted()).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("api request")

	if !out.OK() {
		err := &APIError{Op: r.op, StatusCode: out.StatusCode, Detail: out.Detail(), Response: out}
		c.observe(r.op, out.StatusCode, elapsed, err)
		return out, err
	}
	return out, nil
}

// finish reports a call whose HTTP exchange succeeded but whose body the
// operation then judged. It must be called exactly once for such calls.
func (c *Client) finish(op string, resp *Response, err error) {
	c.observe(op, resp.StatusCode, resp.Elapsed, err)
}

func (c *Client) observe(op string, status int, elapsed time.Duration, err error) {
	if c.observer != nil {
		c.observer.Observe(op, status, elapsed, err)
	}
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
