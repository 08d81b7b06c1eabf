package fallback

import (
	"context"
	"sync"
	"time"
)

// Source tells where the value handed out by Get came from.
type Source int

const (
	SourceDefault Source = iota
	SourceLastKnownGood
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceLastKnownGood:
		return "last_known_good"
	default:
		return "unknown"
	}
}

// Value holds the last successfully fetched T and serves a default until the
// first success. A failed refresh never replaces a good value.
type Value[T any] struct {
	mutex      sync.RWMutex
	def        T
	current    T
	hasValue   bool
	updatedAt  time.Time
	attempted  bool
	lastErr    error
	lastTryAt  time.Time
	validateFn func(T) error
}

type Option[T any] func(*Value[T])

// WithValidation rejects fetched values before they are stored.
func WithValidation[T any](fn func(T) error) Option[T] {
	return func(v *Value[T]) {
		v.validateFn = fn
	}
}

func NewValue[T any](def T, opts ...Option[T]) *Value[T] {
	v := &Value[T]{def: def}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Value[T]) Get() (T, Source) {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	if v.hasValue {
		return v.current, SourceLastKnownGood
	}
	return v.def, SourceDefault
}

// Refresh calls fetch and stores its result. On error the held value is kept and
// the error is returned for the caller to report.
func (v *Value[T]) Refresh(ctx context.Context, fetch func(ctx context.Context) (T, error)) error {
	val, err := fetch(ctx)
	if err == nil && v.validateFn != nil {
		err = v.validateFn(val)
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.attempted = true
	v.lastTryAt = time.Now()
	v.lastErr = err
	if err != nil {
		return err
	}

	v.current = val
	v.hasValue = true
	v.updatedAt = v.lastTryAt
	return nil
}

// Restore seeds the value from an earlier run, e.g. a cache snapshot. It does not
// count as a refresh attempt and never overwrites a newer value.
func (v *Value[T]) Restore(val T, at time.Time) bool {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if v.hasValue && !at.After(v.updatedAt) {
		return false
	}
	if v.validateFn != nil && v.validateFn(val) != nil {
		return false
	}
	v.current = val
	v.hasValue = true
	v.updatedAt = at
	return true
}

func (v *Value[T]) Attempted() bool {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return v.attempted
}

type Status struct {
	Source      string    `json:"source"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

func (v *Value[T]) Status() Status {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	st := Status{
		Source:      SourceDefault.String(),
		UpdatedAt:   v.updatedAt,
		LastAttempt: v.lastTryAt,
	}
	if v.hasValue {
		st.Source = SourceLastKnownGood.String()
	}
	if v.lastErr != nil {
		st.LastError = v.lastErr.Error()
	}
	return st
}
