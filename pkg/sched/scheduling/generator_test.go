package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/process"
)

type collectingEnqueuer struct {
	mu    sync.Mutex
	procs []*process.Process
}

func (c *collectingEnqueuer) Enqueue(p *process.Process) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.procs = append(c.procs, p)
}

func (c *collectingEnqueuer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.procs)
}

// TestGeneratorCadence covers end-to-end scenario 5: batch-process-freq=3,
// delay-per-exec scaled down for test speed; over several ticks the
// Generator enqueues BatchFreq processes per tick.
func TestGeneratorCadence(t *testing.T) {
	enq := &collectingEnqueuer{}
	var pid int
	nextPID := func() int { pid++; return 1000 + pid }

	g := NewGenerator(logging.Discard(), enq, nextPID, GeneratorConfig{
		BatchFreq:       3,
		MinInstructions: 1,
		MaxInstructions: 5,
		MinMemory:       64,
		MaxMemory:       64,
		Delay:           20 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()
	g.Run(ctx)

	// At least two ticks should have fired within the window (one at
	// startup, one after ~20ms); each contributes BatchFreq processes.
	require.GreaterOrEqual(t, enq.count(), 6)
	require.Zero(t, enq.count()%3)
}

func TestGeneratorProcessShape(t *testing.T) {
	enq := &collectingEnqueuer{}
	nextPID := func() int { return 42 }

	g := NewGenerator(logging.Discard(), enq, nextPID, GeneratorConfig{
		BatchFreq:       1,
		MinInstructions: 10,
		MaxInstructions: 10,
		MinMemory:       64,
		MaxMemory:       64,
		Delay:           time.Second,
	})

	p := g.spawnOne()
	require.Equal(t, 42, p.PID())
	require.Equal(t, "p42", p.Name())
	require.Equal(t, 10, p.TotalInstructions())
	require.Equal(t, uint64(64), p.MemorySize())
}
