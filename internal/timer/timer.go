package timer

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Kind distinguishes the timer classes a session may arm.
type Kind int

const (
	Regular Kind = iota
	// Redirect is armed when an incoming call interrupts another activity.
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Handler is called from the timer goroutine when an armed timer expires.
// epoch is the value Epoch returned right after the timer was started.
type Handler func(kind Kind, epoch uint64)

// Timer is a single-shot timer with at most one outstanding expiry. Every
// start and stop advances an epoch; an expiry carrying an older epoch is
// discarded, so a fire racing a stop is harmless.
type Timer struct {
	mu      sync.Mutex
	handler Handler
	pending *time.Timer
	epoch   uint64
	kind    Kind
	armed   bool
}

// New creates an idle timer.
func New() *Timer {
	return &Timer{}
}

// RegisterHandler sets the function invoked on expiry.
func (t *Timer) RegisterHandler(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// StartTimer arms a regular timeout, replacing any outstanding one.
func (t *Timer) StartTimer(d time.Duration) {
	t.start(Regular, d)
}

// StartRedirectTimer arms a redirect timeout, replacing any outstanding one.
func (t *Timer) StartRedirectTimer(d time.Duration) {
	t.start(Redirect, d)
}

// StopTimer cancels the outstanding timeout, if any.
func (t *Timer) StopTimer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Epoch returns the tag of the most recent start or stop.
func (t *Timer) Epoch() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch
}

// Armed reports whether a timeout is outstanding.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

func (t *Timer) start(kind Kind, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.epoch++
	t.kind = kind
	t.armed = true

	epoch := t.epoch
	t.pending = time.AfterFunc(d, func() { t.fire(epoch) })
}

func (t *Timer) stopLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.armed = false
	t.epoch++
}

func (t *Timer) fire(epoch uint64) {
	t.mu.Lock()
	if !t.armed || epoch != t.epoch {
		t.mu.Unlock()
		log.WithField("epoch", epoch).Debug("Discarding stale timer expiry")
		return
	}
	t.armed = false
	t.pending = nil
	kind := t.kind
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		h(kind, epoch)
	}
}
