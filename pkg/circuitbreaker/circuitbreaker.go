package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("too many requests")
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = map[State]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Settings configures a breaker. MaxRequests is the number of probe calls let
// through while half-open and the number of successes needed to close again.
// Zero values fall back to one probe, a 60s counting window and a 60s open period.
type Settings struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	ReadyToTrip   func(counts Counts) bool
	OnStateChange func(name string, from State, to State)
	IsSuccessful  func(err error) bool
}

// Counts covers the current window: the closed interval or one half-open phase.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) record(success bool) {
	if success {
		c.TotalSuccesses++
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
		return
	}
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

type CircuitBreaker struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	window   uint64
	deadline time.Time
}

func New(st Settings) *CircuitBreaker {
	if st.MaxRequests == 0 {
		st.MaxRequests = 1
	}
	if st.Interval <= 0 {
		st.Interval = 60 * time.Second
	}
	if st.Timeout <= 0 {
		st.Timeout = 60 * time.Second
	}
	if st.ReadyToTrip == nil {
		st.ReadyToTrip = ConsecutiveFailures(6)
	}
	if st.IsSuccessful == nil {
		st.IsSuccessful = func(err error) bool {
			return err == nil || IsCallerError(err)
		}
	}

	cb := &CircuitBreaker{settings: st, now: time.Now}
	cb.resetWindow(cb.now())
	return cb
}

// ConsecutiveFailures trips the breaker after n failures in a row.
func ConsecutiveFailures(n uint32) func(Counts) bool {
	return func(counts Counts) bool {
		return counts.ConsecutiveFailures >= n
	}
}

// IsCallerError lets callers exclude errors that say nothing about the
// remote side, such as a cancelled request.
func IsCallerError(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Execute runs req unless the breaker is open. A cancelled ctx is reported
// without touching the counts.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	window, err := cb.admit()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			cb.report(window, false)
			panic(p)
		}
	}()

	err = req(ctx)
	cb.report(window, cb.settings.IsSuccessful(err))
	return err
}

// Do is Execute for calls that produce a value.
func Do[T any](ctx context.Context, cb *CircuitBreaker, req func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = req(ctx)
		return err
	})
	return result, err
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.observe(cb.now()) {
	case StateOpen:
		return cb.window, ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.counts.Requests >= cb.settings.MaxRequests {
			return cb.window, ErrTooManyRequests
		}
	}
	cb.counts.Requests++
	return cb.window, nil
}

// report ignores outcomes of calls admitted in an earlier window.
func (cb *CircuitBreaker) report(window uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	state := cb.observe(now)
	if window != cb.window {
		return
	}

	cb.counts.record(success)
	switch {
	case state == StateHalfOpen && !success:
		cb.transition(StateOpen, now)
	case state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.settings.MaxRequests:
		cb.transition(StateClosed, now)
	case state == StateClosed && !success && cb.settings.ReadyToTrip(cb.counts):
		cb.transition(StateOpen, now)
	}
}

// observe applies time-based transitions and returns the resulting state.
func (cb *CircuitBreaker) observe(now time.Time) State {
	if cb.deadline.IsZero() || now.Before(cb.deadline) {
		return cb.state
	}
	switch cb.state {
	case StateClosed:
		cb.resetWindow(now)
	case StateOpen:
		cb.transition(StateHalfOpen, now)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State, now time.Time) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.resetWindow(now)

	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}

func (cb *CircuitBreaker) resetWindow(now time.Time) {
	cb.window++
	cb.counts = Counts{}

	switch cb.state {
	case StateClosed:
		cb.deadline = now.Add(cb.settings.Interval)
	case StateOpen:
		cb.deadline = now.Add(cb.settings.Timeout)
	default:
		cb.deadline = time.Time{}
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.settings.Name
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.observe(cb.now())
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}
