package tracker

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// WallClock schedules on real time.
var WallClock Scheduler = wallClock{}

// VirtualClock is a Scheduler whose time only moves when Advance is called.
// Callbacks run on the goroutine calling Advance, in due order.
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*virtualTimer
}

type virtualTimer struct {
	clock *VirtualClock
	at    time.Duration
	seq   int
	f     func()
	done  bool
}

// NewVirtualClock returns a clock at elapsed time zero.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Now is the elapsed virtual time.
func (c *VirtualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending is the number of timers not yet fired or stopped.
func (c *VirtualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *VirtualClock) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &virtualTimer{clock: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d, firing every timer that falls due,
// including timers scheduled by callbacks within the window.
func (c *VirtualClock) Advance(d time.Duration) {
	c.AdvanceTo(c.Now() + d)
}

// AdvanceTo moves time forward to the absolute elapsed time at. Moving
// backwards is a no-op.
func (c *VirtualClock) AdvanceTo(at time.Duration) {
	for {
		c.mu.Lock()
		if at < c.now {
			c.mu.Unlock()
			return
		}
		sort.Slice(c.timers, func(i, j int) bool {
			if c.timers[i].at == c.timers[j].at {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at < c.timers[j].at
		})
		if len(c.timers) == 0 || c.timers[0].at > at {
			c.now = at
			c.mu.Unlock()
			return
		}
		next := c.timers[0]
		c.timers = c.timers[1:]
		next.done = true
		c.now = next.at
		c.mu.Unlock()

		next.f()
	}
}

func (t *virtualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			break
		}
	}
	return true
}
