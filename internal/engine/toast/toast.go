package toast

import (
	"sync"
	"time"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

type Toast struct {
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

func (t Toast) Visible() bool { return t.Message != "" }

// Notifier holds at most one toast and clears it after a delay. Showing a new
// toast cancels the pending dismissal of the previous one; a dismissal that
// already fired for an older toast is ignored via the generation counter.
type Notifier struct {
	mu       sync.Mutex
	current  Toast
	timer    *time.Timer
	gen      uint64
	duration time.Duration
}

func NewNotifier(duration time.Duration) *Notifier {
	return &Notifier{duration: duration}
}

func (n *Notifier) Show(message string, kind Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.cancelLocked()
	n.gen++
	n.current = Toast{Message: message, Kind: kind}

	if n.duration <= 0 {
		return
	}
	gen := n.gen
	n.timer = time.AfterFunc(n.duration, func() { n.expire(gen) })
}

func (n *Notifier) Success(message string) { n.Show(message, Success) }

func (n *Notifier) Error(message string) { n.Show(message, Error) }

func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.cancelLocked()
	n.gen++
	n.current = Toast{Kind: n.current.Kind}
}

func (n *Notifier) Current() Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.current.Visible() {
		return Toast{}
	}
	return n.current
}

// Stop cancels any pending dismissal without touching the current toast.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelLocked()
}

func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return
	}
	n.current = Toast{Kind: n.current.Kind}
	n.timer = nil
}

func (n *Notifier) cancelLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
