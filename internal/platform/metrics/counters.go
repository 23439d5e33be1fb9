package metrics

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Registry counts outbound API calls by operation and outcome.
type Registry struct {
	calls   sync.Map // map[callKey]*atomic.Int64
	latency sync.Map // map[string]*atomic.Int64, microseconds summed per op
	started time.Time
}

type callKey struct {
	Op      string
	Outcome string
}

func NewRegistry() *Registry {
	return &Registry{started: time.Now()}
}

// Observe records one finished call. status is 0 when no response arrived.
func (r *Registry) Observe(op string, status int, elapsed time.Duration, err error) {
	outcome := outcomeOf(status, err)
	r.counter(&r.calls, callKey{Op: op, Outcome: outcome}).Add(1)
	r.counter(&r.latency, op).Add(elapsed.Microseconds())
}

func (r *Registry) Count(op, outcome string) int64 {
	v, ok := r.calls.Load(callKey{Op: op, Outcome: outcome})
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// WriteText renders the counters in the Prometheus text exposition format.
func (r *Registry) WriteText(w io.Writer) error {
	type row struct {
		key   callKey
		value int64
	}
	var rows []row
	r.calls.Range(func(k, v interface{}) bool {
		rows = append(rows, row{key: k.(callKey), value: v.(*atomic.Int64).Load()})
		return true
	})
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].key.Op != rows[j].key.Op {
			return rows[i].key.Op < rows[j].key.Op
		}
		return rows[i].key.Outcome < rows[j].key.Outcome
	})

	if _, err := fmt.Fprintf(w, "# HELP playground_up Is the playground up\n# TYPE playground_up gauge\nplayground_up 1\n"); err != nil {
		return err
	}
	fmt.Fprintf(w, "# HELP playground_uptime_seconds Seconds since start\n# TYPE playground_uptime_seconds gauge\nplayground_uptime_seconds %d\n",
		int64(time.Since(r.started).Seconds()))

	fmt.Fprintf(w, "# HELP playground_api_calls_total Outbound API calls by operation and outcome\n# TYPE playground_api_calls_total counter\n")
	for _, row := range rows {
		fmt.Fprintf(w, "playground_api_calls_total{op=%s,outcome=%s} %d\n",
			strconv.Quote(row.key.Op), strconv.Quote(row.key.Outcome), row.value)
	}

	var ops []string
	r.latency.Range(func(k, _ interface{}) bool {
		ops = append(ops, k.(string))
		return true
	})
	sort.Strings(ops)
	fmt.Fprintf(w, "# HELP playground_api_call_seconds_sum Total time spent in outbound API calls\n# TYPE playground_api_call_seconds_sum counter\n")
	for _, op := range ops {
		v, _ := r.latency.Load(op)
		fmt.Fprintf(w, "playground_api_call_seconds_sum{op=%s} %.6f\n", strconv.Quote(op), float64(v.(*atomic.Int64).Load())/1e6)
	}
	return nil
}

func (r *Registry) counter(m *sync.Map, key interface{}) *atomic.Int64 {
	v, _ := m.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}

func outcomeOf(status int, err error) string {
	switch {
	case status == 0 && err != nil:
		return "network_error"
	case status >= 200 && status < 300 && err == nil:
		return "ok"
	case status >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}
