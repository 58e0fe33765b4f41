package progress

import (
	"sync"
	"time"
)

// Clock is what the simulated source waits on between progress steps.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// ImmediateClock fires at once. Simulations run back to back.
type ImmediateClock struct{}

func (ImmediateClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// ManualClock fires only when Tick is called, so tests can stop a simulation
// between steps and inspect the state.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []chan time.Time
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) After(time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.waiters = append(c.waiters, ch)
	return ch
}

// Tick releases every pending waiter and returns how many there were.
func (c *ManualClock) Tick() int {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.now = c.now.Add(time.Second)
	now := c.now
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- now
	}
	return len(waiters)
}

// Pending reports how many goroutines are waiting on the clock.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
