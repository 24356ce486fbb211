package app

import (
	"sync"
	"time"
)

// FakeTimer is an armed autosave timer under a FakeClock.
type FakeTimer struct {
	D       time.Duration
	fn      func()
	stopped bool
}

func (t *FakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// Stopped reports whether the timer was stopped before firing.
func (t *FakeTimer) Stopped() bool { return t.stopped }

// FakeClock replaces time.AfterFunc in a NoteController.
type FakeClock struct {
	mu     sync.Mutex
	timers []*FakeTimer
}

func (c *FakeClock) afterFunc(d time.Duration, fn func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &FakeTimer{D: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Armed returns every timer armed so far.
func (c *FakeClock) Armed() []*FakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FakeTimer(nil), c.timers...)
}

// Fire runs the most recent timer if it is still armed and reports whether
// it ran.
func (c *FakeClock) Fire() bool {
	c.mu.Lock()
	if len(c.timers) == 0 {
		c.mu.Unlock()
		return false
	}
	t := c.timers[len(c.timers)-1]
	c.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.fn()
	return true
}

// UseFakeClock makes the controller arm FakeTimers instead of real ones.
func (c *NoteController) UseFakeClock() *FakeClock {
	fc := &FakeClock{}
	c.mu.Lock()
	c.afterFunc = fc.afterFunc
	c.mu.Unlock()
	return fc
}
