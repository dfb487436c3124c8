// Package throttle rate-limits vault unlock attempts.
//
// The throttle is a persisted {attempts, lockUntil} record shared by every
// vault opened on this device. MaxAttempts consecutive failures lock further
// attempts for LockDuration. Expiry is lazy: there is no timer, the next
// check or failure observes that the lock is over and starts from zero.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// MaxAttempts is the number of consecutive failures that triggers a lock.
	MaxAttempts = 5

	// LockDuration is how long attempts stay blocked once locked.
	LockDuration = 5 * time.Minute
)

// ErrThrottleLocked indicates an attempt was rejected because too many
// recent attempts failed.
var ErrThrottleLocked = errors.New("throttle: too many attempts")

// LockedError is returned while the throttle is locked. It carries the
// remaining wait rounded up to the minute.
type LockedError struct {
	Minutes int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %d minutes", e.Minutes)
}

// Unwrap allows errors.Is(err, ErrThrottleLocked).
func (e *LockedError) Unwrap() error { return ErrThrottleLocked }

// State is the persisted throttle record. LockUntil is a Unix timestamp in
// milliseconds, 0 meaning not locked.
type State struct {
	Attempts  int   `json:"attempts"`
	LockUntil int64 `json:"lockUntil"`
}

// Sanitize replaces out-of-range values with the zero state. A lock ending
// later than now+LockDuration cannot have been written by Fail and is
// treated as malformed.
func (s State) Sanitize(now time.Time) State {
	if s.Attempts < 0 || s.Attempts >= MaxAttempts || s.LockUntil < 0 {
		return State{}
	}
	if s.LockUntil > now.Add(LockDuration).UnixMilli() {
		return State{}
	}
	return s
}

// Expire returns the zero state when a lock has run out, and s otherwise.
func (s State) Expire(now time.Time) State {
	if s.LockUntil != 0 && now.UnixMilli() >= s.LockUntil {
		return State{}
	}
	return s
}

// Locked reports whether attempts are blocked at now.
func (s State) Locked(now time.Time) bool {
	return s.LockUntil != 0 && now.UnixMilli() < s.LockUntil
}

// RemainingMinutes returns the lock time left at now, rounded up to the
// minute, or 0 when not locked.
func (s State) RemainingMinutes(now time.Time) int {
	if !s.Locked(now) {
		return 0
	}
	remaining := time.Duration(s.LockUntil-now.UnixMilli()) * time.Millisecond
	return int((remaining + time.Minute - 1) / time.Minute)
}

// Fail applies one failed attempt at now. Reaching MaxAttempts resets the
// counter and locks until now+LockDuration.
func (s State) Fail(now time.Time) State {
	s = s.Expire(now)
	s.Attempts++
	if s.Attempts >= MaxAttempts {
		return State{Attempts: 0, LockUntil: now.Add(LockDuration).UnixMilli()}
	}
	return s
}

// Store persists the throttle record. Load on an empty store returns the
// zero state and no error.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Throttle gates unlock attempts against a Store.
type Throttle struct {
	store  Store
	now    func() time.Time
	logger *log.Logger
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) { t.now = now }
}

// WithLogger sets the logger used for absorbed persistence failures.
func WithLogger(l *log.Logger) Option {
	return func(t *Throttle) { t.logger = l }
}

// New creates a Throttle backed by store.
func New(store Store, opts ...Option) *Throttle {
	t := &Throttle{
		store:  store,
		now:    time.Now,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// load never fails: an unreadable or malformed record means the zero state.
func (t *Throttle) load(ctx context.Context) State {
	state, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn("throttle: failed to load state, resetting", "err", err)
		return State{}
	}
	return state.Sanitize(t.now())
}

func (t *Throttle) save(ctx context.Context, state State) {
	if err := t.store.Save(ctx, state); err != nil {
		t.logger.Warn("throttle: failed to persist state", "err", err)
	}
}

// Status returns the current state with lazy expiry applied.
func (t *Throttle) Status(ctx context.Context) State {
	return t.load(ctx).Expire(t.now())
}

// MayAttempt reports whether an attempt is allowed. When it is not, the
// remaining lock time in minutes is returned as well.
func (t *Throttle) MayAttempt(ctx context.Context) (bool, int) {
	now := t.now()
	state := t.load(ctx).Expire(now)
	if state.Locked(now) {
		return false, state.RemainingMinutes(now)
	}
	return true, 0
}

// Check is MayAttempt in error form: it returns a *LockedError while locked.
func (t *Throttle) Check(ctx context.Context) error {
	if ok, minutes := t.MayAttempt(ctx); !ok {
		return &LockedError{Minutes: minutes}
	}
	return nil
}

// RecordFailure counts a failed attempt, locking once MaxAttempts is
// reached, and persists the result.
func (t *Throttle) RecordFailure(ctx context.Context) State {
	state := t.load(ctx).Fail(t.now())
	t.save(ctx, state)
	if state.Attempts == 0 && state.LockUntil != 0 {
		t.logger.Warn("throttle: too many failed attempts, locking", "duration", LockDuration)
	}
	return state
}

// RecordSuccess resets the throttle.
func (t *Throttle) RecordSuccess(ctx context.Context) {
	t.save(ctx, State{})
}
