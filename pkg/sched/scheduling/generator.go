package scheduling

import (
	"context"
	"fmt"
	"math/bits"
	"math/rand/v2"
	"time"

	"github.com/csopesy/schedcore/pkg/internal/utils"
	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/process"
)

// Enqueuer is the narrow interface the Process Generator needs from the
// Dispatcher: just the ability to add a freshly created process to the
// Ready Queue.
type Enqueuer interface {
	Enqueue(p *process.Process)
}

// GeneratorConfig configures the Process Generator's cadence and the
// randomized shape of the processes it creates, per spec.md §4.7.
type GeneratorConfig struct {
	// BatchFreq processes are created every tick.
	BatchFreq int
	// MinInstructions and MaxInstructions bound each process's instruction
	// count (L), inclusive.
	MinInstructions, MaxInstructions int
	// MinMemory and MaxMemory bound each process's memory footprint, a
	// power of two in [MinMemory, MaxMemory], inclusive.
	MinMemory, MaxMemory uint64
	// Delay is the pause between generation ticks.
	Delay time.Duration
}

// Generator is the Process Generator: on a fixed cadence it creates a batch
// of synthetic processes with randomized instruction counts and memory
// footprints and hands each straight to the Ready Queue.
//
// Grounded on the teacher's loader.run ticker loop
// (pkg/inference/scheduling/loader.go), generalized from a single
// reconciliation pass to open-ended synthetic workload creation.
type Generator struct {
	log     logging.Logger
	enqueue Enqueuer
	nextPID func() int
	cfg     GeneratorConfig
}

// NewGenerator creates a Generator. nextPID must return a fresh, unique pid
// on every call; per spec.md §9 this allocator is owned by the Scheduler
// Facade, not the Generator itself, to avoid a pid-allocation dependency
// cycle between Generator and Dispatcher.
func NewGenerator(log logging.Logger, enqueue Enqueuer, nextPID func() int, cfg GeneratorConfig) *Generator {
	return &Generator{
		log:     logging.WithComponent(log, "generator"),
		enqueue: enqueue,
		nextPID: nextPID,
		cfg:     cfg,
	}
}

// Run creates BatchFreq processes, enqueues them, sleeps Delay, and repeats
// until ctx is cancelled. It checks ctx only between ticks: a tick in
// progress always completes (spec.md §5's cooperative-stop note for the
// Generator).
func (g *Generator) Run(ctx context.Context) {
	g.log.Info("generator started")
	defer g.log.Info("generator stopped")

	for {
		for i := 0; i < g.cfg.BatchFreq; i++ {
			p := g.spawnOne()
			g.log.Debugf("generated pid %d (%s): L=%d M=%d", p.PID(), utils.SanitizeForLog(p.Name()), p.TotalInstructions(), p.MemorySize())
			g.enqueue.Enqueue(p)
		}

		select {
		case <-time.After(g.cfg.Delay):
		case <-ctx.Done():
			return
		}
	}
}

func (g *Generator) spawnOne() *process.Process {
	pid := g.nextPID()
	name := fmt.Sprintf("p%d", pid)

	span := g.cfg.MaxInstructions - g.cfg.MinInstructions
	total := g.cfg.MinInstructions
	if span > 0 {
		total += rand.IntN(span + 1)
	}

	minK := bits.Len64(g.cfg.MinMemory) - 1
	maxK := bits.Len64(g.cfg.MaxMemory) - 1
	k := minK
	if maxK > minK {
		k += rand.IntN(maxK - minK + 1)
	}
	mem := uint64(1) << uint(k)

	return process.New(pid, name, total, mem)
}
