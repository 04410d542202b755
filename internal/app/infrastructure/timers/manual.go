package timers

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by Advance instead of the wall clock.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	m   *Manual
	at  time.Duration
	seq uint64
	f   func()
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTask{m: m, at: m.now + d, seq: m.seq, f: f}
	m.tasks = append(m.tasks, t)

	return t
}

// Now is the time elapsed since the Manual was created.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

// Pending is the number of scheduled calls that have not fired or been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.tasks)
}

// Advance moves the clock forward by d, firing due calls in order. Calls
// scheduled by a firing callback run too when they come due within d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := -1
		for i, t := range m.tasks {
			if t.at > target {
				continue
			}
			if next == -1 || t.at < m.tasks[next].at || (t.at == m.tasks[next].at && t.seq < m.tasks[next].seq) {
				next = i
			}
		}

		if next == -1 {
			m.now = target
			m.mu.Unlock()
			return
		}

		t := m.tasks[next]
		m.tasks = append(m.tasks[:next], m.tasks[next+1:]...)
		m.now = t.at
		m.mu.Unlock()

		t.f()
	}
}

func (t *manualTask) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	for i, other := range t.m.tasks {
		if other == t {
			t.m.tasks = append(t.m.tasks[:i], t.m.tasks[i+1:]...)
			return true
		}
	}
	return false
}
