// internal/sched/tickclock.go

package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is the periodic interrupt source: Arm configures it to invoke
// handler once per period until stopped.
type Timer interface {
	Arm(period time.Duration, handler func()) error
}

// TickClock emits ticks and counts them atomically.
type TickClock struct {
	count    atomic.Int64
	once     sync.Once
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewTickClock creates a clock but does not arm it.
func NewTickClock() *TickClock {
	return &TickClock{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Arm begins invoking handler at the given interval. A clock can be armed once.
func (c *TickClock) Arm(interval time.Duration, handler func()) error {
	armed := false
	c.once.Do(func() {
		armed = true
		ticker := time.NewTicker(interval)
		go func() {
			defer close(c.done)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.count.Add(1)
					handler()
				case <-c.stop:
					return
				}
			}
		}()
	})
	if !armed {
		return ErrAlreadyStarted
	}
	return nil
}

// Stop signals the clock to stop ticking and waits for the last handler.
// It must not be called from the handler.
func (c *TickClock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	// never armed: nothing to wait for
	c.once.Do(func() { close(c.done) })
	<-c.done
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}

// ManualTimer records the armed period and lets the caller fire ticks.
// It stands in for the hardware timer when ticks are driven by hand.
type ManualTimer struct {
	Period  time.Duration
	handler func()
}

// Arm records period and handler; a ManualTimer can be armed once.
func (m *ManualTimer) Arm(period time.Duration, handler func()) error {
	if m.handler != nil {
		return ErrAlreadyStarted
	}
	m.Period = period
	m.handler = handler
	return nil
}

// Fire invokes the handler n times; it does nothing before Arm.
func (m *ManualTimer) Fire(n int) {
	for i := 0; i < n && m.handler != nil; i++ {
		m.handler()
	}
}
