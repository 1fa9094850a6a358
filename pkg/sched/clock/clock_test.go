package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csopesy/schedcore/pkg/sched/logging"
)

func TestIncrementActiveAndSnapshot(t *testing.T) {
	c := New()
	c.IncrementActive(3)
	c.IncrementActive(2)

	active, idle := c.Snapshot()
	require.Equal(t, uint64(5), active)
	require.Equal(t, uint64(0), idle)
}

func TestUtilizationWithNoTicksIsZero(t *testing.T) {
	c := New()
	require.Equal(t, 0.0, c.Utilization())
}

func TestUtilizationComputesPercentage(t *testing.T) {
	c := New()
	c.IncrementActive(3)
	c.incrementIdle(1)
	require.InDelta(t, 75.0, c.Utilization(), 0.001)
}

type fakeCores struct {
	n         int
	available map[int]bool
}

func (f fakeCores) NumCores() int            { return f.n }
func (f fakeCores) Available(id int) bool    { return f.available[id] }

func TestRunIdleSamplerCountsAvailableCores(t *testing.T) {
	c := New()
	cores := fakeCores{n: 3, available: map[int]bool{0: true, 2: true}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	RunIdleSampler(ctx, logging.Discard(), c, cores, 5*time.Millisecond)

	_, idle := c.Snapshot()
	require.Greater(t, idle, uint64(0))
	require.Zero(t, idle%2)
}

func TestMonotoneNonDecreasing(t *testing.T) {
	c := New()
	var lastActive, lastIdle uint64
	for i := 0; i < 5; i++ {
		c.IncrementActive(1)
		c.incrementIdle(1)
		active, idle := c.Snapshot()
		require.GreaterOrEqual(t, active, lastActive)
		require.GreaterOrEqual(t, idle, lastIdle)
		lastActive, lastIdle = active, idle
	}
}
