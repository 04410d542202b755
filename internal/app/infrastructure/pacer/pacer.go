package pacer

import (
	"fmt"
	"ircrelay/internal/app/infrastructure/timers"
	"ircrelay/pkg/logger"
	"sync"
	"time"
)

// Pacer runs queued actions in FIFO order with at least Delay between the
// start of one action and the start of the next. The first action enqueued
// on an idle pacer runs immediately in the caller's goroutine.
type Pacer struct {
	log   logger.Logger
	sched timers.Scheduler

	mu    sync.Mutex
	queue []func()
	delay time.Duration
	busy  bool        // an action is running or cooling down
	timer timers.Task // cooldown in progress
	gen   uint64      // bumped by Clear to orphan in-flight cooldowns

	onDepth func(n int)
}

type Option func(*Pacer)

// WithDepthObserver reports the queue length every time it changes.
func WithDepthObserver(fn func(n int)) Option {
	return func(p *Pacer) {
		p.onDepth = fn
	}
}

func New(log logger.Logger, sched timers.Scheduler, delay time.Duration, opts ...Option) *Pacer {
	p := &Pacer{
		log:   log,
		sched: sched,
		delay: delay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pacer) Enqueue(action func()) {
	if action == nil {
		return
	}

	p.mu.Lock()
	p.queue = append(p.queue, action)
	p.depthChangedLocked()
	p.mu.Unlock()

	p.process()
}

// Pending is the number of queued actions that have not started yet.
func (p *Pacer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.queue)
}

func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.delay
}

// SetDelay applies to cooldowns armed after the call.
func (p *Pacer) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.delay = d
}

// Clear drops every queued action and cancels the active cooldown.
func (p *Pacer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	dropped := len(p.queue)
	p.queue = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.busy = false
	p.gen++
	p.depthChangedLocked()

	if dropped > 0 {
		p.log.Debug(fmt.Sprintf("Flood queue cleared, %d actions dropped", dropped))
	}
}

func (p *Pacer) process() {
	p.mu.Lock()
	if p.busy || len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}

	action := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.depthChangedLocked()
	p.busy = true
	gen := p.gen
	p.mu.Unlock()

	p.run(action)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		return
	}
	p.timer = p.sched.AfterFunc(p.delay, func() {
		p.cooldown(gen)
	})
}

func (p *Pacer) cooldown(gen uint64) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.busy = false
	p.mu.Unlock()

	p.process()
}

func (p *Pacer) depthChangedLocked() {
	if p.onDepth != nil {
		p.onDepth(len(p.queue))
	}
}

// run isolates a failing action so the queue keeps draining.
func (p *Pacer) run(action func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Paced action panicked", fmt.Errorf("%v", r))
		}
	}()

	action()
}
