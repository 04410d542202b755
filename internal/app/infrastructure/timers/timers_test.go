package timers

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

func TestManual_Advance(t *testing.T) {
	m := NewManual()

	var order []string
	m.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })
	m.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	m.AfterFunc(100*time.Millisecond, func() { order = append(order, "a2") })
	stopped := m.AfterFunc(150*time.Millisecond, func() { order = append(order, "never") })

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	m.Advance(99 * time.Millisecond)
	assert.Empty(t, order)

	m.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "a2"}, order)

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "a2", "b"}, order)
	assert.Equal(t, 1100*time.Millisecond, m.Now())
	assert.Zero(t, m.Pending())
}

func TestManual_ChainedCallbacks(t *testing.T) {
	m := NewManual()

	fired := 0
	var tick func()
	tick = func() {
		fired++
		if fired < 5 {
			m.AfterFunc(10*time.Millisecond, tick)
		}
	}
	m.AfterFunc(10*time.Millisecond, tick)

	m.Advance(35 * time.Millisecond)
	assert.Equal(t, 3, fired)

	m.Advance(time.Second)
	assert.Equal(t, 5, fired)
}

func TestLoop_SerializesTasks(t *testing.T) {
	l := NewLoop(16)
	defer l.Stop()

	var running, overlaps atomic.Int32
	done := make(chan struct{}, 10)

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Submit(func() {
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			done <- struct{}{}
		}))
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task did not run")
		}
	}
	assert.Zero(t, overlaps.Load())
}

func TestLoop_AfterFunc(t *testing.T) {
	l := NewLoop(1)
	defer l.Stop()

	fired := make(chan struct{})
	l.AfterFunc(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task did not fire")
	}

	cancelled := l.AfterFunc(time.Hour, func() {})
	assert.True(t, cancelled.Stop())
}

func TestLoop_SubmitAfterStop(t *testing.T) {
	l := NewLoop(1)
	l.Stop()
	l.Stop()

	assert.ErrorIs(t, l.Submit(func() {}), ErrStopped)
}
