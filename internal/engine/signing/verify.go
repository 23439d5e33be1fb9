package signing

import (
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// DefaultMaxSkew matches the ingest endpoint's tolerance for clock drift.
const DefaultMaxSkew = 300 * time.Second

var (
	ErrMissingHeaders = errors.New("missing HMAC headers")
	ErrBadTimestamp   = errors.New("bad timestamp")
	ErrStaleTimestamp = errors.New("stale timestamp")
	ErrBadSignature   = errors.New("bad signature")
)

// Verify recomputes the signature the way the backend does and compares it
// in constant time. A non-positive maxSkew disables the freshness check.
func Verify(method, path string, body []byte, secret string, h SignedHeaders, now time.Time, maxSkew time.Duration) error {
	if h.Timestamp == "" || h.Signature == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}
	if maxSkew > 0 {
		// Compared in whole seconds; |now - ts| can exceed what a Duration holds.
		limit := int64(maxSkew / time.Second)
		unix := now.Unix()
		if ts > unix+limit || ts < unix-limit {
			return ErrStaleTimestamp
		}
	}

	provided, err := hex.DecodeString(h.Signature)
	if err != nil {
		return ErrBadSignature
	}
	expected, _ := hex.DecodeString(signCanonical(CanonicalString(h.Timestamp, method, path, body), secret))
	if !hmac.Equal(provided, expected) {
		return ErrBadSignature
	}
	return nil
}

// FromRequest reads the signature headers off r.
func FromRequest(r *http.Request) (keyID string, h SignedHeaders) {
	return r.Header.Get(HeaderKeyID), SignedHeaders{
		Timestamp: r.Header.Get(HeaderTimestamp),
		Signature: r.Header.Get(HeaderSignature),
	}
}
