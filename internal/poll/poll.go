// Package poll runs an operation until it succeeds, with a bounded number
// of attempts at a fixed or growing interval.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrGaveUp is returned once the attempt budget is spent.
var ErrGaveUp = errors.New("gave up")

// State is the position of a Poller in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateGaveUp
	StateCanceled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateGaveUp:
		return "gave_up"
	case StateCanceled:
		return "canceled"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Policy bounds the retries.
type Policy struct {
	Interval    time.Duration // wait before the second attempt
	MaxInterval time.Duration // when above Interval, the wait doubles up to this cap
	MaxAttempts int           // 0 means unlimited (bounded by the context)
}

// permanentError stops a Run without further attempts.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Attempt describes a failed attempt, passed to the retry hook.
type Attempt struct {
	Number int
	Err    error
	Next   time.Duration
}

// Poller is a single-use retry state machine.
type Poller struct {
	policy  Policy
	onRetry func(Attempt)

	mu       sync.Mutex
	state    State
	attempts int
	lastErr  error
}

// New creates an idle poller.
func New(p Policy) *Poller {
	if p.Interval <= 0 {
		p.Interval = 100 * time.Millisecond
	}
	return &Poller{policy: p}
}

// OnRetry registers a hook called after each failed attempt that will be
// retried.
func (p *Poller) OnRetry(fn func(Attempt)) *Poller {
	p.onRetry = fn
	return p
}

// State returns the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Attempts returns how many attempts ran.
func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// LastErr returns the error of the last failed attempt.
func (p *Poller) LastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Poller) set(s State, attempts int, err error) {
	p.mu.Lock()
	p.state, p.attempts, p.lastErr = s, attempts, err
	p.mu.Unlock()
}

// Run calls fn until it returns nil, the attempt budget is spent or ctx is
// done. A poller runs once; later calls fail.
func (p *Poller) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return fmt.Errorf("poller already %s", p.state)
	}
	p.state = StateRunning
	p.mu.Unlock()

	wait := p.policy.Interval
	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			p.set(StateSucceeded, attempt, nil)
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			p.set(StateFailed, attempt, perm.err)
			return perm.err
		}

		if p.policy.MaxAttempts > 0 && attempt >= p.policy.MaxAttempts {
			p.set(StateGaveUp, attempt, err)
			return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, attempt, err)
		}
		p.set(StateRunning, attempt, err)

		if p.onRetry != nil {
			p.onRetry(Attempt{Number: attempt, Err: err, Next: wait})
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.set(StateCanceled, attempt, err)
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}

		if p.policy.MaxInterval > p.policy.Interval {
			wait *= 2
			if wait > p.policy.MaxInterval {
				wait = p.policy.MaxInterval
			}
		}
	}
}

// TimeLeft returns the time remaining before the context deadline.
func TimeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
