// Package breaker implements a three-state circuit breaker shared by the
// dispatcher across requests. State transitions happen under a single
// mutex held only across the transition itself; listener callbacks run
// outside any downstream completion so ordering is: state change first,
// then the triggering call finishes.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the breaker position.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// ErrCircuitOpen is the fast-fail returned while the breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// WindowKind selects how failures are counted.
type WindowKind string

const (
	// WindowNone counts consecutive failures.
	WindowNone WindowKind = ""
	// WindowCount keeps the last N outcomes.
	WindowCount WindowKind = "count"
	// WindowTime keeps outcomes from the last W milliseconds.
	WindowTime WindowKind = "time"
)

// Config tunes one breaker.
type Config struct {
	Name                     string
	FailureThreshold         int
	Cooldown                 time.Duration
	HalfOpenSuccessThreshold int
	Timeout                  time.Duration
	// IsFailure decides whether an error counts against the breaker.
	// nil means every non-nil error counts.
	IsFailure func(error) bool
	Window    WindowKind
	// WindowSize is N outcomes for count windows, W milliseconds for time
	// windows.
	WindowSize int
	Now        func() time.Time
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenSuccessThreshold <= 0 {
		c.HalfOpenSuccessThreshold = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Metrics is a live counter snapshot.
type Metrics struct {
	Total      uint64        `json:"total"`
	Successful uint64        `json:"successful"`
	Failed     uint64        `json:"failed"`
	Rejected   uint64        `json:"rejected"`
	TimeClosed time.Duration `json:"timeClosed"`
	TimeOpen   time.Duration `json:"timeOpen"`
	TimeHalf   time.Duration `json:"timeHalfOpen"`
}

// StateChange is delivered to listeners on every transition.
type StateChange struct {
	Name string
	From State
	To   State
	At   time.Time
}

type outcome struct {
	failed bool
	at     time.Time
}

// Breaker is safe for concurrent use.
type Breaker struct {
	cfg Config

	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	openedAt     time.Time
	stateSince   time.Time
	window       []outcome
	seq          int64
	metrics      Metrics
	listeners    []func(StateChange)
}

// New builds a breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{cfg: cfg, state: Closed, stateSince: cfg.Now()}
}

// Name returns the breaker's identity.
func (b *Breaker) Name() string { return b.cfg.Name }

// OnStateChange registers a listener. Listener panics are swallowed so one
// bad listener cannot corrupt breaker state.
func (b *Breaker) OnStateChange(fn func(StateChange)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// State reports the current state, applying the cooldown transition so a
// read after the cooldown observes HALF_OPEN.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state
}

// Metrics returns a snapshot including per-state time up to now.
func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.metrics
	b.addStateTime(&m, b.cfg.Now().Sub(b.stateSince))
	return m
}

func (b *Breaker) addStateTime(m *Metrics, d time.Duration) {
	switch b.state {
	case Closed:
		m.TimeClosed += d
	case Open:
		m.TimeOpen += d
	case HalfOpen:
		m.TimeHalf += d
	}
}

// Allow reports whether a call may proceed, counting a rejection when not.
// Callers must pair a true return with a later Record call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	if b.state == Open {
		b.metrics.Rejected++
		return fmt.Errorf("%s: %w", b.cfg.Name, ErrCircuitOpen)
	}
	return nil
}

// Record feeds one call outcome into the breaker.
func (b *Breaker) Record(err error) {
	failed := err != nil
	if failed && b.cfg.IsFailure != nil {
		failed = b.cfg.IsFailure(err)
	}
	var changes []StateChange

	b.mu.Lock()
	b.metrics.Total++
	if failed {
		b.metrics.Failed++
	} else {
		b.metrics.Successful++
	}

	switch b.state {
	case Closed:
		if b.observeLocked(failed) >= b.cfg.FailureThreshold {
			changes = append(changes, b.transitionLocked(Open))
			b.openedAt = b.cfg.Now()
		}
	case HalfOpen:
		if failed {
			changes = append(changes, b.transitionLocked(Open))
			b.openedAt = b.cfg.Now()
		} else {
			b.successes++
			if b.successes >= b.cfg.HalfOpenSuccessThreshold {
				changes = append(changes, b.transitionLocked(Closed))
			}
		}
	case Open:
		// a call that slipped through during transition: treat as probe
		if !failed {
			changes = append(changes, b.transitionLocked(HalfOpen))
		}
	}
	b.mu.Unlock()

	// listeners fire after the state word is settled but before the
	// caller's call completes (Record is invoked before returning results
	// downstream)
	for _, ch := range changes {
		b.notify(ch)
	}
}

// Execute wraps fn with the breaker, honoring the configured timeout.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	var err error
	if b.cfg.Timeout > 0 {
		done := make(chan error, 1)
		go func() { done <- fn() }()
		select {
		case err = <-done:
		case <-time.After(b.cfg.Timeout):
			err = fmt.Errorf("%s: call timed out after %s", b.cfg.Name, b.cfg.Timeout)
		}
	} else {
		err = fn()
	}
	b.Record(err)
	return err
}

// observeLocked adds an outcome and returns the current failure count under
// the configured window discipline.
func (b *Breaker) observeLocked(failed bool) int {
	now := b.cfg.Now()
	switch b.cfg.Window {
	case WindowCount:
		b.window = append(b.window, outcome{failed: failed, at: now})
		if len(b.window) > b.cfg.WindowSize {
			b.window = b.window[len(b.window)-b.cfg.WindowSize:]
		}
		return b.countWindowFailures()
	case WindowTime:
		// sub-ms calls land on the same clock reading; the seq offset keeps
		// them monotonically distinguishable inside the window
		b.seq++
		stamped := now.Add(time.Duration(b.seq) * time.Nanosecond)
		b.window = append(b.window, outcome{failed: failed, at: stamped})
		b.pruneTimeWindowLocked(now)
		return b.countWindowFailures()
	default:
		if failed {
			b.failures++
		} else {
			b.failures = 0
		}
		return b.failures
	}
}

func (b *Breaker) pruneTimeWindowLocked(now time.Time) {
	cutoff := now.Add(-time.Duration(b.cfg.WindowSize) * time.Millisecond)
	i := 0
	for i < len(b.window) && b.window[i].at.Before(cutoff) {
		i++
	}
	b.window = b.window[i:]
}

func (b *Breaker) countWindowFailures() int {
	n := 0
	for _, o := range b.window {
		if o.failed {
			n++
		}
	}
	return n
}

// maybeHalfOpenLocked applies OPEN → HALF_OPEN once the cooldown elapses.
// The mutex is released while listeners run and re-acquired before return.
func (b *Breaker) maybeHalfOpenLocked() {
	if b.state != Open {
		return
	}
	if b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		ch := b.transitionLocked(HalfOpen)
		b.mu.Unlock()
		b.notify(ch)
		b.mu.Lock()
	}
}

func (b *Breaker) transitionLocked(to State) StateChange {
	ch := StateChange{Name: b.cfg.Name, From: b.state, To: to, At: b.cfg.Now()}
	b.addStateTime(&b.metrics, ch.At.Sub(b.stateSince))
	b.state = to
	b.stateSince = ch.At
	switch to {
	case Closed:
		b.failures = 0
		b.successes = 0
		b.window = nil
	case HalfOpen:
		b.successes = 0
	case Open:
		b.failures = 0
		b.window = nil
	}
	return ch
}

func (b *Breaker) notify(ch StateChange) {
	b.mu.Lock()
	listeners := append([]func(StateChange){}, b.listeners...)
	b.mu.Unlock()
	for _, fn := range listeners {
		func() {
			defer func() { _ = recover() }()
			fn(ch)
		}()
	}
}

// Snapshot is the exportable state of a breaker.
type Snapshot struct {
	Name         string    `json:"name"`
	State        State     `json:"state"`
	FailureCount int       `json:"failureCount"`
	SuccessCount int       `json:"successCount"`
	OpenedAt     time.Time `json:"openedAt"`
	Metrics      Metrics   `json:"metrics"`
}

// Export captures the breaker state for persistence.
func (b *Breaker) Export() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:         b.cfg.Name,
		State:        b.state,
		FailureCount: b.failures,
		SuccessCount: b.successes,
		OpenedAt:     b.openedAt,
		Metrics:      b.metrics,
	}
}

// Import restores a previously exported snapshot. The snapshot must belong
// to this breaker.
func (b *Breaker) Import(s Snapshot) error {
	if s.Name != b.cfg.Name {
		return fmt.Errorf("snapshot name %q does not match breaker %q", s.Name, b.cfg.Name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s.State
	b.failures = s.FailureCount
	b.successes = s.SuccessCount
	b.openedAt = s.OpenedAt
	b.metrics = s.Metrics
	b.stateSince = b.cfg.Now()
	return nil
}
