package libroutine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hoofbeat/stableops/libroutine"
)

func TestCircuitBreaker_ClosedState_AllowsExecution(t *testing.T) {
	rm := libroutine.NewRoutine(3, time.Second)

	if !rm.Allow() {
		t.Errorf("expected Allow to return true in closed state")
	}

	err := rm.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("expected Execute to succeed, got error: %v", err)
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	rm := libroutine.NewRoutine(1, 500*time.Millisecond)

	err := rm.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("test error")
	})
	if err == nil {
		t.Errorf("expected Execute to return an error")
	}

	if rm.Allow() {
		t.Errorf("expected Allow to return false after failure threshold exceeded")
	}
	if rm.GetState() != libroutine.Open {
		t.Errorf("expected state Open, got %v", rm.GetState())
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	rm := libroutine.NewRoutine(1, 200*time.Millisecond)

	_ = rm.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("test error")
	})

	deadline := time.Now().Add(400 * time.Millisecond)
	allowed := false
	for time.Now().Before(deadline) {
		if rm.Allow() {
			allowed = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !allowed {
		t.Fatalf("expected Allow to return true after reset timeout")
	}

	// Second call while the probe is in flight must be blocked.
	if rm.Allow() {
		t.Errorf("expected Allow to return false while half-open probe is in progress")
	}
}

func TestCircuitBreaker_RecoversFromHalfOpenOnSuccess(t *testing.T) {
	rm := libroutine.NewRoutine(1, 200*time.Millisecond)

	_ = rm.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("test error")
	})

	time.Sleep(250 * time.Millisecond)

	err := rm.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("expected Execute to succeed in half-open state, got error: %v", err)
	}
	if !rm.Allow() {
		t.Errorf("expected Allow to return true after recovering from half-open state")
	}
}

func TestCircuitBreaker_ExecuteWithRetry(t *testing.T) {
	rm := libroutine.NewRoutine(5, time.Minute)

	calls := 0
	fn := func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	err := rm.ExecuteWithRetry(context.Background(), 10*time.Millisecond, 3, fn)
	if err != nil {
		t.Fatalf("expected retry to eventually succeed, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestCircuitBreaker_ForceOpenForceClose(t *testing.T) {
	rm := libroutine.NewRoutine(3, 2*time.Second)

	if rm.GetState() != libroutine.Closed {
		t.Errorf("expected initial state to be Closed, got %v", rm.GetState())
	}
	rm.ForceOpen()
	if rm.GetState() != libroutine.Open {
		t.Errorf("expected state to be Open after ForceOpen, got %v", rm.GetState())
	}
	rm.ForceClose()
	if rm.GetState() != libroutine.Closed {
		t.Errorf("expected state to be Closed after ForceClose, got %v", rm.GetState())
	}
	if rm.GetThreshold() != 3 {
		t.Errorf("expected threshold to be 3, got %d", rm.GetThreshold())
	}
	if rm.GetResetTimeout() != 2*time.Second {
		t.Errorf("expected reset timeout to be 2 seconds, got %v", rm.GetResetTimeout())
	}
}

func TestUnit_PoolSingleton(t *testing.T) {
	group1 := libroutine.GetGroup()
	group2 := libroutine.GetGroup()
	if group1 != group2 {
		t.Error("expected pool to be a singleton, got different instances")
	}
}

func TestUnit_PoolStartLoopAndForceUpdate(t *testing.T) {
	group := libroutine.GetGroup()
	ctx := t.Context()

	key := "pool-loop-test"
	var mu sync.Mutex
	var callCount int

	group.StartLoop(ctx, &libroutine.LoopConfig{
		Key:          key,
		Threshold:    2,
		ResetTimeout: 100 * time.Millisecond,
		Interval:     10 * time.Millisecond,
		Operation: func(ctx context.Context) error {
			mu.Lock()
			callCount++
			mu.Unlock()
			return nil
		},
	})

	time.Sleep(25 * time.Millisecond)

	mu.Lock()
	if callCount < 1 {
		t.Errorf("expected at least 1 call, got %d", callCount)
	}
	before := callCount
	mu.Unlock()

	if !group.IsLoopActive(key) {
		t.Error("loop should be tracked as active")
	}

	group.ForceUpdate(key)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	if callCount <= before {
		t.Errorf("expected ForceUpdate to trigger a run, calls stayed at %d", callCount)
	}
	mu.Unlock()
}
