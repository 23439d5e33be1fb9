package signing

import (
	"bytes"
	"net/http"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexSignature = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestSignAt_KnownVector(t *testing.T) {
	body := []byte(`{"a":1}`)

	// Calculated with: printf '%s' "$canonical" | openssl dgst -sha256 -hmac topsecret
	wantHash := "015abd7f5cc57a2dd94b7590f04ad8084273905ee33ec5cebeae62276a97f862"
	wantCanonical := "1700000000.POST./v1/events." + wantHash
	wantSig := "40594243407de9cb0682589b9bee7e6354bdb2ea67ef0fe0286f7807acd6940e"

	assert.Equal(t, wantHash, BodyHash(body))
	assert.Equal(t, wantCanonical, CanonicalString("1700000000", "POST", "/v1/events", body))

	got := SignAt(1700000000, "POST", "/v1/events", body, "topsecret")
	assert.Equal(t, "1700000000", got.Timestamp)
	assert.Equal(t, wantSig, got.Signature)
}

func TestSignAt_EmptySecretIsDeterministic(t *testing.T) {
	first := SignAt(1700000000, "POST", "/v1/events", nil, "")
	second := SignAt(1700000000, "POST", "/v1/events", []byte{}, "")

	assert.Equal(t, first, second)
	assert.Equal(t, "5740e2505e4665df102c3107d8b18906ad299f1c078bdc58e40c114d1375b84a", first.Signature)
}

func TestSignAt_Deterministic(t *testing.T) {
	body := []byte(`{"project_id":"p","events":[]}`)
	for i := 0; i < 5; i++ {
		assert.Equal(t,
			SignAt(1700000123, "POST", "/v1/events", body, "s3cret"),
			SignAt(1700000123, "POST", "/v1/events", body, "s3cret"))
	}
}

func TestSignAt_EachFieldChangesSignature(t *testing.T) {
	const ts = 1700000000
	body := []byte(`{"a":1}`)
	base := SignAt(ts, "POST", "/v1/events", body, "topsecret").Signature

	variants := map[string]string{
		"method":    SignAt(ts, "PUT", "/v1/events", body, "topsecret").Signature,
		"path":      SignAt(ts, "POST", "/v1/event", body, "topsecret").Signature,
		"body":      SignAt(ts, "POST", "/v1/events", []byte(`{"a":2}`), "topsecret").Signature,
		"secret":    SignAt(ts, "POST", "/v1/events", body, "topsecreT").Signature,
		"timestamp": SignAt(ts+1, "POST", "/v1/events", body, "topsecret").Signature,
	}
	for field, sig := range variants {
		assert.NotEqual(t, base, sig, "changing %s must change the signature", field)
		assert.Regexp(t, hexSignature, sig)
	}
}

func TestSignAt_NormalizesMethodAndPath(t *testing.T) {
	body := []byte(`{}`)
	want := SignAt(1, "POST", "/v1/events", body, "k")

	assert.Equal(t, want, SignAt(1, "post", "/v1/events", body, "k"))
	assert.Equal(t, want, SignAt(1, "POST", "/v1/events?project_id=x", body, "k"))
}

func TestSignAt_DoesNotMutateBody(t *testing.T) {
	body := []byte(`{"a":1}`)
	snapshot := append([]byte(nil), body...)

	SignAt(1700000000, "POST", "/v1/events", body, "topsecret")
	assert.True(t, bytes.Equal(snapshot, body))
}

func TestSigner_UsesClock(t *testing.T) {
	s := &Signer{Now: func() time.Time { return time.Unix(1700000000, 999_000_000) }}

	got := s.Sign("POST", "/v1/events", []byte(`{"a":1}`), "topsecret")
	assert.Equal(t, "1700000000", got.Timestamp, "timestamp is truncated to whole seconds")
	assert.Equal(t, "40594243407de9cb0682589b9bee7e6354bdb2ea67ef0fe0286f7807acd6940e", got.Signature)
}

func TestSign_WallClock(t *testing.T) {
	before := time.Now().Unix()
	got := Sign("POST", "/v1/events", []byte(`{}`), "k")
	after := time.Now().Unix()

	require.NotEmpty(t, got.Timestamp)
	assert.Regexp(t, hexSignature, got.Signature)

	require.NoError(t, Verify("POST", "/v1/events", []byte(`{}`), "k", got, time.Now(), DefaultMaxSkew))
	ts, err := strconv.ParseInt(got.Timestamp, 10, 64)
	require.NoError(t, err)
	assert.True(t, ts >= before && ts <= after)
}

func TestApply(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "http://localhost/v1/events", nil)
	require.NoError(t, err)

	Apply(req, "kid-1", SignedHeaders{Timestamp: "1700000000", Signature: "abc"})

	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "kid-1", req.Header.Get("X-Api-Key-Id"))
	assert.Equal(t, "1700000000", req.Header.Get("X-Api-Timestamp"))
	assert.Equal(t, "abc", req.Header.Get("X-Api-Signature"))

	kid, h := FromRequest(req)
	assert.Equal(t, "kid-1", kid)
	assert.Equal(t, "abc", h.Signature)
}
