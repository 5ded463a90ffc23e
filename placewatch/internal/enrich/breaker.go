package enrich

import (
	"sync"
	"time"
)

// breakerState is the circuit breaker state.
type breakerState int

const (
	breakerClosed   breakerState = iota // requests pass through
	breakerOpen                         // requests short-circuit to Unavailable
	breakerHalfOpen                     // one trial request allowed
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// breaker guards the scoring endpoint. A dead endpoint costs one request
// per reset window instead of one per place change.
type breaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	threshold    int
	resetTimeout time.Duration
	lastFailure  time.Time
	probing      bool
	now          func() time.Time
}

func newBreaker(threshold int, resetTimeout time.Duration, now func() time.Time) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &breaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          now,
	}
}

// allow reports whether a request may be sent. In half-open state only one
// trial request is let through until it reports back.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen && b.now().Sub(b.lastFailure) >= b.resetTimeout {
		b.state = breakerHalfOpen
		b.probing = false
	}
	switch b.state {
	case breakerOpen:
		return false
	case breakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = 0
	b.probing = false
}

// release frees an unanswered half-open trial slot without judging the
// endpoint. The next allow lets another trial request through.
func (b *breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = b.now()
	b.probing = false
	switch b.state {
	case breakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = breakerOpen
		}
	case breakerHalfOpen:
		b.state = breakerOpen
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
