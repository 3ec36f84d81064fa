// Package timer provides countdown primitives for session and question deadlines.
package timer

import (
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is the wall-clock decrement applied on every tick.
const DefaultInterval = time.Second

// Countdown is one restartable countdown instance. The session and question
// deadlines each own an independent Countdown; stopping one never affects the
// other.
type Countdown struct {
	interval time.Duration
	onTick   func(time.Duration)

	mu        sync.Mutex
	remaining time.Duration
	active    bool
	gen       uint64
	cancel    chan struct{}
}

// New constructs a countdown ticking at DefaultInterval.
func New(onTick func(time.Duration)) *Countdown {
	return NewWithInterval(DefaultInterval, onTick)
}

// NewWithInterval constructs a countdown with a custom tick interval.
// onTick may be nil; when set it receives the remaining time after each tick.
func NewWithInterval(interval time.Duration, onTick func(time.Duration)) *Countdown {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Countdown{interval: interval, onTick: onTick}
}

// Start begins decrementing from duration and calls onExpire exactly once when
// the countdown reaches zero. Starting an already-active countdown restarts it.
func (c *Countdown) Start(duration time.Duration, onExpire func()) {
	c.mu.Lock()
	if c.active {
		close(c.cancel)
	}
	c.gen++
	gen := c.gen
	c.remaining = duration
	c.active = true
	c.cancel = make(chan struct{})
	cancel := c.cancel
	c.mu.Unlock()

	go c.run(gen, cancel, onExpire)
}

// Stop halts the countdown. Safe to call when already stopped.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.active = false
	close(c.cancel)
}

// Remaining returns the time left on the countdown.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Active reports whether the countdown is currently decrementing.
func (c *Countdown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// run owns one started generation until expiry, restart, or stop.
func (c *Countdown) run(gen uint64, cancel chan struct{}, onExpire func()) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			c.mu.Lock()
			if !c.active || c.gen != gen {
				c.mu.Unlock()
				return
			}
			c.remaining -= c.interval
			if c.remaining <= 0 {
				c.remaining = 0
				c.active = false
				c.mu.Unlock()
				c.notifyTick(0)
				if onExpire != nil {
					onExpire()
				}
				return
			}
			rem := c.remaining
			c.mu.Unlock()
			c.notifyTick(rem)
		}
	}
}

func (c *Countdown) notifyTick(remaining time.Duration) {
	if c.onTick != nil {
		c.onTick(remaining)
	}
}

// Severity classifies remaining time for display styling.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityDanger
)

// Classify maps remaining time onto display severity thresholds.
func Classify(remaining, warning, danger time.Duration) Severity {
	switch {
	case remaining <= danger:
		return SeverityDanger
	case remaining <= warning:
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// FormatClock renders a duration as MM:SS, rounding partial seconds up.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}
