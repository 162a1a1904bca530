package core

import (
	"sync"
	"time"
)

// Clock is the scheduler's notion of time.  The core doesn't care
// whether the clock follows the wall or a simulation.
type Clock interface {
	// Now is the time since the epoch.
	Now() time.Duration

	// Period is the nominal tick period.
	Period() time.Duration

	// Epoch is the wall-clock time corresponding to Now() == 0.
	Epoch() time.Time
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	sync.Mutex

	now    time.Duration
	period time.Duration
	epoch  time.Time
}

// NewManualClock makes a ManualClock at zero with the given period.
func NewManualClock(period time.Duration) *ManualClock {
	return &ManualClock{
		period: period,
		epoch:  time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (c *ManualClock) Now() time.Duration {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *ManualClock) Period() time.Duration {
	return c.period
}

func (c *ManualClock) Epoch() time.Time {
	return c.epoch
}

// Set moves the clock to the given time.
func (c *ManualClock) Set(t time.Duration) {
	c.Lock()
	c.now = t
	c.Unlock()
}

// Advance moves the clock forward by one period and returns the new
// time.
func (c *ManualClock) Advance() time.Duration {
	c.Lock()
	defer c.Unlock()
	c.now += c.period
	return c.now
}

// WallClock follows time.Now from the moment it was created.
type WallClock struct {
	start  time.Time
	period time.Duration
}

func NewWallClock(period time.Duration) *WallClock {
	return &WallClock{
		start:  time.Now(),
		period: period,
	}
}

func (c *WallClock) Now() time.Duration {
	return time.Since(c.start)
}

func (c *WallClock) Period() time.Duration {
	return c.period
}

func (c *WallClock) Epoch() time.Time {
	return c.start
}

// seconds converts a Duration to float seconds, the unit for rates.
func seconds(d time.Duration) float64 {
	return d.Seconds()
}

// millis converts a number of milliseconds, the unit for durations in
// expressions, to a Duration.
func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
