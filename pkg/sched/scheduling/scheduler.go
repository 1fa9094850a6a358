package scheduling

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/csopesy/schedcore/pkg/sched/clock"
	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/memory"
	"github.com/csopesy/schedcore/pkg/sched/schederr"
	"github.com/csopesy/schedcore/pkg/sched/store"
	"golang.org/x/sync/errgroup"
)

// Config is the full configuration for one Scheduler Facade instance,
// assembled from the flat config file described in spec.md §6.
type Config struct {
	NumCores        int
	Policy          Policy
	TimeSlice       int
	DelayPerExec    time.Duration
	BatchFreq       int
	MinInstructions int
	MaxInstructions int
	MinMemory        uint64
	MaxMemory        uint64
	Memory           memory.Config
	BackingStorePath string
	IdleSamplePeriod time.Duration
	// Snapshotter, if non-nil, persists a memory-map snapshot file at every
	// RR time-slice boundary (spec.md §6). Left nil for FCFS configurations.
	Snapshotter SliceSnapshotter
}

// Scheduler is the Scheduler Facade (spec.md §4.8): it owns every other
// component and is the only thing cmd/schedulerctl talks to. Its start/stop
// sequencing is grounded on the teacher's Scheduler.Run
// (pkg/inference/scheduling/scheduler.go), which joins multiple
// long-running tasks with golang.org/x/sync/errgroup.
type Scheduler struct {
	log logging.Logger
	cfg Config

	store      *store.Store
	mem        *memory.Manager
	clk        *clock.Clock
	dispatcher *Dispatcher
	generator  *Generator

	pidCounter atomic.Int64

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	group     *errgroup.Group
	groupCtx  context.Context
	genCancel context.CancelFunc
}

// New assembles a Scheduler from cfg, opening the Backing Store file. The
// Scheduler is not started until Start is called.
func New(log logging.Logger, cfg Config) (*Scheduler, error) {
	log = logging.WithComponent(log, "scheduler")

	bs, err := store.New(log, cfg.BackingStorePath)
	if err != nil {
		return nil, schederr.Wrap(schederr.ConfigError, "open backing store", err)
	}

	clk := clock.New()
	mem := memory.New(log, cfg.Memory, bs)
	dispatcher := NewDispatcher(log, mem, clk, DispatcherConfig{
		NumCores:    cfg.NumCores,
		Policy:      cfg.Policy,
		TimeSlice:   cfg.TimeSlice,
		Delay:       cfg.DelayPerExec,
		Snapshotter: cfg.Snapshotter,
	})

	s := &Scheduler{
		log:        log,
		cfg:        cfg,
		store:      bs,
		mem:        mem,
		clk:        clk,
		dispatcher: dispatcher,
	}
	s.pidCounter.Store(1000)

	s.generator = NewGenerator(log, dispatcher, s.NextPID, GeneratorConfig{
		BatchFreq:       cfg.BatchFreq,
		MinInstructions: cfg.MinInstructions,
		MaxInstructions: cfg.MaxInstructions,
		MinMemory:       cfg.MinMemory,
		MaxMemory:       cfg.MaxMemory,
		Delay:           cfg.DelayPerExec,
	})

	return s, nil
}

// NextPID hands out the next unique pid, starting at 1001. It is owned by
// the Scheduler Facade rather than the Generator so nothing in the
// Generator/Dispatcher dependency graph needs to reach back into it
// (spec.md §9).
func (s *Scheduler) NextPID() int {
	return int(s.pidCounter.Add(1))
}

// Start launches the Dispatcher and idle-sampler tasks. It does not start
// the Process Generator; call BeginGeneration for that.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		s.dispatcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		clock.RunIdleSampler(gctx, s.log, s.clk, s.dispatcher, s.cfg.IdleSamplePeriod)
		return nil
	})

	s.cancel = cancel
	s.group = g
	s.groupCtx = gctx
	s.started = true
	s.log.Info("scheduler started")
	return nil
}

// BeginGeneration launches the Process Generator, if it is not already
// running. Idempotent.
func (s *Scheduler) BeginGeneration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return schederr.New(schederr.NotInitialized, "scheduler not started")
	}
	if s.genCancel != nil {
		return nil
	}

	genCtx, cancel := context.WithCancel(s.groupCtx)
	s.genCancel = cancel
	s.group.Go(func() error {
		s.generator.Run(genCtx)
		return nil
	})
	s.log.Info("process generation started")
	return nil
}

// StopGeneration stops the Process Generator without touching the
// Dispatcher or idle-sampler. Idempotent; a no-op if generation isn't
// running.
func (s *Scheduler) StopGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.genCancel == nil {
		return
	}
	s.genCancel()
	s.genCancel = nil
	s.log.Info("process generation stopped")
}

// Stop stops generation, signals the Dispatcher and idle-sampler to exit,
// waits for every in-flight Worker to finish naturally (Workers are never
// cancelled), and joins every task. Safe to call once; calling it before
// Start is a no-op.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	g := s.group
	s.mu.Unlock()

	s.StopGeneration()
	cancel()
	// Join the Dispatcher first so no Worker can be spawned after
	// WaitForWorkers has returned.
	err := g.Wait()
	s.dispatcher.WaitForWorkers()

	if cerr := s.store.Close(); cerr != nil {
		s.log.Warnf("close backing store: %v", cerr)
	}
	s.log.Info("scheduler stopped")
	return err
}

// Memory, Clock, and Dispatcher expose the underlying components for
// reporting (process-smi/vmstat/report-util all read from these, never
// mutate them).
func (s *Scheduler) Memory() *memory.Manager    { return s.mem }
func (s *Scheduler) Clock() *clock.Clock        { return s.clk }
func (s *Scheduler) Dispatcher() *Dispatcher    { return s.dispatcher }
func (s *Scheduler) BackingStore() *store.Store { return s.store }
