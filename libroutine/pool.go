package libroutine

import (
	"context"
	"sync"
	"time"
)

// LoopConfig describes one managed loop.
type LoopConfig struct {
	Key          string
	Threshold    int
	ResetTimeout time.Duration
	Interval     time.Duration
	Operation    func(ctx context.Context) error
	// OnError, when set, receives operation errors. Nil means drop them.
	OnError func(error)
}

// Pool manages breaker-guarded loops keyed by name. Starting a loop for a
// key that already has one is a no-op.
type Pool struct {
	mu       sync.Mutex
	managers map[string]*Routine
	triggers map[string]chan struct{}
	active   map[string]bool
}

var (
	poolInstance *Pool
	poolOnce     sync.Once
)

// GetGroup returns the process-wide loop pool.
func GetGroup() *Pool {
	poolOnce.Do(func() {
		poolInstance = &Pool{
			managers: make(map[string]*Routine),
			triggers: make(map[string]chan struct{}),
			active:   make(map[string]bool),
		}
	})
	return poolInstance
}

// StartLoop starts a managed loop for cfg.Key unless one is already
// running. The loop ends when ctx is done.
func (p *Pool) StartLoop(ctx context.Context, cfg *LoopConfig) {
	p.mu.Lock()
	if p.active[cfg.Key] {
		p.mu.Unlock()
		return
	}
	manager, ok := p.managers[cfg.Key]
	if !ok {
		manager = NewRoutine(cfg.Threshold, cfg.ResetTimeout)
		p.managers[cfg.Key] = manager
	}
	trigger, ok := p.triggers[cfg.Key]
	if !ok {
		trigger = make(chan struct{}, 1)
		p.triggers[cfg.Key] = trigger
	}
	p.active[cfg.Key] = true
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.active[cfg.Key] = false
			p.mu.Unlock()
		}()
		manager.Loop(ctx, cfg.Interval, trigger, cfg.Operation, cfg.OnError)
	}()
}

// ForceUpdate triggers an immediate run of the keyed loop when it exists.
func (p *Pool) ForceUpdate(key string) {
	p.mu.Lock()
	trigger := p.triggers[key]
	p.mu.Unlock()
	if trigger == nil {
		return
	}
	select {
	case trigger <- struct{}{}:
	default: // a trigger is already pending
	}
}

// IsLoopActive reports whether a loop for key is currently running.
func (p *Pool) IsLoopActive(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[key]
}

// GetManager exposes the breaker behind a keyed loop, mainly for tests.
func (p *Pool) GetManager(key string) *Routine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.managers[key]
}
