// Package clock implements the Tick Clock: a monotonic pair of active/idle
// tick counters advanced by Workers and an idle-sampler.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/csopesy/schedcore/pkg/sched/logging"
)

// CoreSlots is the minimal view of the dispatcher's core slot array that the
// idle-sampler needs: how many cores there are and whether a given one is
// currently available (i.e. idle).
type CoreSlots interface {
	NumCores() int
	Available(coreID int) bool
}

// DefaultSamplePeriod is the idle-sampler's fixed period (spec.md §4.4
// design default).
const DefaultSamplePeriod = 10 * time.Millisecond

// Clock is the Tick Clock. Both counters are monotonically non-decreasing
// and read under a single lock (spec.md §5: "Tick Clock: one mutex;
// read-mostly").
type Clock struct {
	mu     sync.Mutex
	active uint64
	idle   uint64
}

// New creates a zeroed Clock.
func New() *Clock {
	return &Clock{}
}

// IncrementActive advances the active counter by n. Workers call this once
// per executed instruction (n=1).
func (c *Clock) IncrementActive(n uint64) {
	c.mu.Lock()
	c.active += n
	c.mu.Unlock()
}

// incrementIdle advances the idle counter by n.
func (c *Clock) incrementIdle(n uint64) {
	c.mu.Lock()
	c.idle += n
	c.mu.Unlock()
}

// Snapshot returns both counters consistently.
func (c *Clock) Snapshot() (active, idle uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.idle
}

// Utilization returns active/(active+idle) as a percentage, or 0 if no ticks
// have been recorded yet.
func (c *Clock) Utilization() float64 {
	active, idle := c.Snapshot()
	total := active + idle
	if total == 0 {
		return 0
	}
	return float64(active) / float64(total) * 100
}

// RunIdleSampler runs the idle-sampler loop until ctx is cancelled: at a
// fixed period it samples every core slot and increments idle once per
// currently-available core (spec.md §4.4, and §9's note that idle ticks can
// advance by up to numCores per sample when every core is idle).
func RunIdleSampler(ctx context.Context, log logging.Logger, c *Clock, cores CoreSlots, period time.Duration) {
	if period <= 0 {
		period = DefaultSamplePeriod
	}
	log = logging.WithComponent(log, "idle-sampler")
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("idle sampler stopping")
			return
		case <-ticker.C:
			var n uint64
			for i := 0; i < cores.NumCores(); i++ {
				if cores.Available(i) {
					n++
				}
			}
			if n > 0 {
				c.incrementIdle(n)
			}
		}
	}
}
