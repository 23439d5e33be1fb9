package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Observe(t *testing.T) {
	r := NewRegistry()

	r.Observe("login", 200, 10*time.Millisecond, nil)
	r.Observe("login", 200, 10*time.Millisecond, nil)
	r.Observe("login", 401, time.Millisecond, errors.New("unauthorized"))
	r.Observe("ingest", 0, time.Millisecond, errors.New("dial tcp: refused"))
	r.Observe("ingest", 503, time.Millisecond, errors.New("unavailable"))
	// 2xx with an unusable body still counts as a client-visible failure
	r.Observe("list", 200, time.Millisecond, errors.New("no events"))

	assert.EqualValues(t, 2, r.Count("login", "ok"))
	assert.EqualValues(t, 1, r.Count("login", "client_error"))
	assert.EqualValues(t, 1, r.Count("ingest", "network_error"))
	assert.EqualValues(t, 1, r.Count("ingest", "server_error"))
	assert.EqualValues(t, 1, r.Count("list", "client_error"))
	assert.EqualValues(t, 0, r.Count("register", "ok"))
}

func TestRegistry_WriteText(t *testing.T) {
	r := NewRegistry()
	r.Observe("login", 200, 1500*time.Microsecond, nil)

	var sb strings.Builder
	require.NoError(t, r.WriteText(&sb))
	out := sb.String()

	assert.Contains(t, out, "playground_up 1\n")
	assert.Contains(t, out, `playground_api_calls_total{op="login",outcome="ok"} 1`)
	assert.Contains(t, out, `playground_api_call_seconds_sum{op="login"} 0.001500`)
}
