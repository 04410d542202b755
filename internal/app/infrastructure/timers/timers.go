package timers

import (
	"errors"
	"sync"
	"time"
)

var ErrStopped = errors.New("loop is stopped")

// Task is a pending delayed call. Stop reports whether it prevented the call.
type Task interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

// Loop runs submitted functions one at a time on a single goroutine.
// Delayed functions are submitted to the same queue when they come due,
// so every callback scheduled through a Loop is serialized.
type Loop struct {
	tasks    chan func()
	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func NewLoop(queueSize int) *Loop {
	l := &Loop{
		tasks:    make(chan func(), queueSize),
		shutdown: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.worker()

	return l
}

func (l *Loop) Submit(task func()) error {
	select {
	case <-l.shutdown:
		return ErrStopped
	default:
	}

	select {
	case l.tasks <- task:
		return nil
	case <-l.shutdown:
		return ErrStopped
	}
}

func (l *Loop) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, func() {
		_ = l.Submit(f)
	})
}

func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.shutdown)
	})
	l.wg.Wait()
}

func (l *Loop) worker() {
	defer l.wg.Done()

	for {
		select {
		case task := <-l.tasks:
			task()
		case <-l.shutdown:
			return
		}
	}
}
