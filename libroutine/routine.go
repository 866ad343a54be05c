// Package libroutine provides a circuit breaker and managed background
// loops keyed by name. Loops run an operation at an interval and stop
// calling it while the breaker is open.
package libroutine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

var ErrCircuitOpen = errors.New("libroutine: circuit open")

// Routine is a circuit breaker around an operation. After threshold
// consecutive failures the circuit opens; after resetTimeout a single
// probe call is let through (half-open) and success closes it again.
type Routine struct {
	mu           sync.Mutex
	state        State
	failures     int
	threshold    int
	resetTimeout time.Duration
	openedAt     time.Time
	probing      bool
}

func NewRoutine(threshold int, resetTimeout time.Duration) *Routine {
	return &Routine{
		state:        Closed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// Allow reports whether a call may proceed right now. In half-open state
// only one probe call is allowed at a time.
func (r *Routine) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case Closed:
		return true
	case Open:
		if time.Since(r.openedAt) >= r.resetTimeout {
			r.state = HalfOpen
			r.probing = true
			return true
		}
		return false
	case HalfOpen:
		if r.probing {
			return false
		}
		r.probing = true
		return true
	}
	return false
}

// Execute runs fn when the breaker allows it and records the outcome.
func (r *Routine) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.Allow() {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	r.record(err)
	return err
}

// ExecuteWithRetry runs fn up to maxAttempts times, sleeping between
// attempts. The breaker still gates every attempt.
func (r *Routine) ExecuteWithRetry(ctx context.Context, sleep time.Duration, maxAttempts int, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		}
		err = r.Execute(ctx, fn)
		if err == nil {
			return nil
		}
	}
	return err
}

// Loop runs fn every interval until ctx is done. A send on triggerChan
// forces an immediate run. Errors are passed to onErr; the breaker decides
// whether the next tick actually calls fn.
func (r *Routine) Loop(ctx context.Context, interval time.Duration, triggerChan chan struct{}, fn func(ctx context.Context) error, onErr func(error)) {
	run := func() {
		if err := r.Execute(ctx, fn); err != nil && !errors.Is(err, ErrCircuitOpen) {
			if onErr != nil {
				onErr(err)
			}
		}
	}
	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		case <-triggerChan:
			run()
		}
	}
}

func (r *Routine) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.state = Closed
		r.failures = 0
		r.probing = false
		return
	}
	r.probing = false
	r.failures++
	if r.state == HalfOpen || r.failures >= r.threshold {
		r.state = Open
		r.openedAt = time.Now()
		r.failures = 0
	}
}

func (r *Routine) GetState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Open && time.Since(r.openedAt) >= r.resetTimeout {
		return HalfOpen
	}
	return r.state
}

func (r *Routine) GetThreshold() int { return r.threshold }

func (r *Routine) GetResetTimeout() time.Duration { return r.resetTimeout }

// ForceOpen trips the breaker regardless of failure count.
func (r *Routine) ForceOpen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Open
	r.openedAt = time.Now()
}

// ForceClose resets the breaker to closed with a clean failure count.
func (r *Routine) ForceClose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Closed
	r.failures = 0
	r.probing = false
}
