package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"playground/internal/engine/nimbus"
	"playground/internal/engine/signing"
	"playground/internal/platform/auth"
	"playground/internal/pkg/validator"
)

type signOutput struct {
	Canonical  string            `json:"canonical"`
	BodySHA256 string            `json:"body_sha256"`
	Headers    map[string]string `json:"headers"`
}

func signCmd(fs *pflag.FlagSet) func(context.Context, *env) error {
	method := fs.String("method", "POST", "HTTP method")
	path := fs.String("path", "/v1/events", "request path")
	body := fs.String("body", "", "request body")
	bodyFile := fs.String("body-file", "", "read the body from a file, - for stdin")
	ts := fs.Int64("timestamp", 0, "Unix seconds to sign at (default now)")

	return func(ctx context.Context, e *env) error {
		raw, err := readBody(e, *body, *bodyFile)
		if err != nil {
			return err
		}

		stamp := *ts
		if stamp == 0 {
			stamp = time.Now().Unix()
		}
		h := signing.SignAt(stamp, *method, *path, raw, e.cfg.HMAC.Secret)

		headers := map[string]string{
			signing.HeaderTimestamp: h.Timestamp,
			signing.HeaderSignature: h.Signature,
		}
		if e.cfg.HMAC.KeyID != "" {
			headers[signing.HeaderKeyID] = e.cfg.HMAC.KeyID
		}
		return e.print(signOutput{
			Canonical:  signing.CanonicalString(h.Timestamp, *method, *path, raw),
			BodySHA256: signing.BodyHash(raw),
			Headers:    headers,
		})
	}
}

type verifyOutput struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func verifyCmd(fs *pflag.FlagSet) func(context.Context, *env) error {
	method := fs.String("method", "POST", "HTTP method")
	path := fs.String("path", "/v1/events", "request path")
	body := fs.String("body", "", "request body")
	bodyFile := fs.String("body-file", "", "read the body from a file, - for stdin")
	ts := fs.String("timestamp", "", "value of "+signing.HeaderTimestamp)
	sig := fs.String("signature", "", "value of "+signing.HeaderSignature)
	maxSkew := fs.Duration("max-skew", -1, "allowed clock drift, 0 disables (default from config)")

	return func(ctx context.Context, e *env) error {
		raw, err := readBody(e, *body, *bodyFile)
		if err != nil {
			return err
		}
		skew := *maxSkew
		if skew < 0 {
			skew = e.cfg.HMAC.MaxSkew
		}

		err = signing.Verify(*method, *path, raw, e.cfg.HMAC.Secret,
			signing.SignedHeaders{Timestamp: *ts, Signature: *sig}, time.Now(), skew)
		if err != nil {
			if perr := e.print(verifyOutput{Valid: false, Error: err.Error()}); perr != nil {
				return perr
			}
			return fmt.Errorf("%w: %w", errInvalid, err)
		}
		return e.print(verifyOutput{Valid: true})
	}
}

func credentialFlags(fs *pflag.FlagSet) (email, password *string) {
	return fs.String("email", "", "account email"), fs.String("password", "", "account password")
}

func registerCmd(fs *pflag.FlagSet) func(context.Context, *env) error {
	email, password := credentialFlags(fs)

	return func(ctx context.Context, e *env) error {
		if err := validator.Credentials(*email, *password); err != nil {
			return err
		}
		c, err := e.client()
		if err != nil {
			return err
		}
		return e.report(c.Register(ctx, nimbus.Credentials{Email: *email, Password: *password}))
	}
}

func loginCmd(fs *pflag.FlagSet) func(context.Context, *env) error {
	email, password := credentialFlags(fs)

	return func(ctx context.Context, e *env) error {
		if err := validator.Credentials(*email, *password); err != nil {
			return err
		}
		c, err := e.client()
		if err != nil {
			return err
		}
		_, resp, err := c.Login(ctx, nimbus.Credentials{Email: *email, Password: *password})
		return e.report(resp, err)
	}
}

func refreshCmd(fs *pflag.FlagSet) func(context.Context, *env) error {
	token := fs.String("refresh-token", "", "refresh token from login")

	return func(ctx context.Context, e *env) error {
		if err := validator.RefreshToken(*token); err != nil {
			return err
		}
		c, err := e.client()
		if err != nil {
			return err
		}
		_, resp, err := c.Refresh(ctx, *token)
		return e.report(resp, err)
	}
}

func sendCmd(fs *pflag.FlagSet) func(context.Context, *env) error {
	name := fs.String("name", "page_view", "event name")
	ts := fs.String("ts", "", "event timestamp (default now)")
	page := fs.String("page", "/demo", "page property")
	mode := fs.String("mode", "hmac", "authentication: hmac or jwt")
	token := fs.String("token", "", "access token for --mode jwt")

	return func(ctx context.Context, e *env) error {
		stamp := *ts
		if stamp == "" {
			stamp = nowStamp()
		}
		if err := validator.Event(*name, stamp, *page); err != nil {
			return err
		}

		in := nimbus.IngestRequest{
			ProjectID: e.cfg.Backend.ProjectID,
			Events:    []nimbus.EventPayload{{Name: *name, TS: stamp, Props: nimbus.EventProps{Page: *page}}},
		}

		c, err := e.client()
		if err != nil {
			return err
		}
		switch *mode {
		case "jwt":
			if err := validator.Token(*token); err != nil {
				return err
			}
			return e.report(c.IngestWithToken(ctx, *token, in))
		case "hmac":
			if err := validator.APIKey(e.cfg.HMAC.KeyID, e.cfg.HMAC.Secret); err != nil {
				return err
			}
			key := nimbus.APIKey{ID: e.cfg.HMAC.KeyID, Secret: e.cfg.HMAC.Secret}
			return e.report(c.IngestSigned(ctx, key, in))
		default:
			return fmt.Errorf("unknown --mode %q", *mode)
		}
	}
}

func listCmd(fs *pflag.FlagSet) func(context.Context, *env) error {
	token := fs.String("token", "", "access token")
	limit := fs.Int("limit", 0, "maximum events (default from config)")
	offset := fs.Int("offset", 0, "events to skip")
	names := fs.StringSlice("name", nil, "only events with this name (repeatable)")

	return func(ctx context.Context, e *env) error {
		if err := validator.Token(*token); err != nil {
			return err
		}
		q := nimbus.ListQuery{
			ProjectID: e.cfg.Backend.ProjectID,
			Limit:     *limit,
			Offset:    *offset,
			Names:     *names,
		}
		if q.Limit == 0 {
			q.Limit = e.cfg.Backend.ListLimit
		}

		c, err := e.client()
		if err != nil {
			return err
		}
		_, resp, err := c.ListEvents(ctx, *token, q)
		return e.report(resp, err)
	}
}

type inspectOutput struct {
	*auth.TokenInfo
	Expired   bool   `json:"expired"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

func inspectCmd(fs *pflag.FlagSet) func(context.Context, *env) error {
	token := fs.String("token", "", "JWT to decode (or pass it as the only argument)")

	return func(ctx context.Context, e *env) error {
		raw := *token
		if raw == "" && fs.NArg() == 1 {
			raw = fs.Arg(0)
		}
		if raw == "" {
			return errors.New("no token given")
		}

		info, err := auth.Inspect(raw)
		if err != nil {
			return err
		}
		now := time.Now()
		out := inspectOutput{TokenInfo: info, Expired: info.Expired(now)}
		if d := info.ExpiresIn(now); d > 0 {
			out.ExpiresIn = d.String()
		}
		return e.print(out)
	}
}

func healthCmd(fs *pflag.FlagSet) func(context.Context, *env) error {
	return func(ctx context.Context, e *env) error {
		c, err := e.client()
		if err != nil {
			return err
		}
		return e.report(c.Health(ctx))
	}
}
