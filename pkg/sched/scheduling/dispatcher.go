// Package scheduling implements the scheduling-visible half of the engine:
// the Ready Queue and core slot array (combined into the Dispatcher, per
// spec.md §5's single-mutex pairing of the two), the Worker execution unit,
// and the Process Generator.
//
// The Dispatcher's condition-variable-style waits are grounded on the
// teacher's loader (pkg/inference/scheduling/loader.go), which uses a
// waiters set of channels plus a broadcast helper to let multiple blocked
// callers re-check a composite predicate after any state change, instead of
// sync.Cond.
package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/csopesy/schedcore/pkg/sched/clock"
	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/memory"
	"github.com/csopesy/schedcore/pkg/sched/process"
)

// Policy selects the Dispatcher's scheduling discipline.
type Policy int

const (
	FCFS Policy = iota
	RR
)

func (p Policy) String() string {
	switch p {
	case FCFS:
		return "fcfs"
	case RR:
		return "rr"
	default:
		return "unknown"
	}
}

// coreSlot is one entry in the core slot array.
type coreSlot struct {
	available bool
	proc      *process.Process
}

// CoreStatus is a point-in-time view of one core, for reporting.
type CoreStatus struct {
	CoreID    int
	Available bool
	PID       int
	Name      string
}

// Dispatcher owns the Ready Queue and the core slot array behind one mutex,
// per spec.md §5's lock-order rule: "(Ready-Queue mutex) -> (Memory Manager
// mutex); no component acquires these in reverse." Admit is always called
// while already holding the Dispatcher's mutex.
type Dispatcher struct {
	log         logging.Logger
	mem         *memory.Manager
	clk         *clock.Clock
	policy      Policy
	timeSlice   int
	delay       time.Duration
	snapshotter SliceSnapshotter

	mu      sync.Mutex
	queue   []*process.Process
	queued  map[int]bool
	cores   []coreSlot
	waiters map[chan struct{}]struct{}

	wg sync.WaitGroup
}

// DispatcherConfig configures a new Dispatcher.
type DispatcherConfig struct {
	NumCores  int
	Policy    Policy
	TimeSlice int // Round-Robin quantum; ignored for FCFS
	Delay     time.Duration
	// Snapshotter, if non-nil, is invoked by every RR Worker at its
	// time-slice boundary to persist a memory-map snapshot file.
	Snapshotter SliceSnapshotter
}

// NewDispatcher creates a Dispatcher with all cores initially available and
// an empty Ready Queue.
func NewDispatcher(log logging.Logger, mem *memory.Manager, clk *clock.Clock, cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		log:         logging.WithComponent(log, "dispatcher"),
		mem:         mem,
		clk:         clk,
		policy:      cfg.Policy,
		timeSlice:   cfg.TimeSlice,
		delay:       cfg.Delay,
		snapshotter: cfg.Snapshotter,
		queued:      make(map[int]bool),
		cores:       make([]coreSlot, cfg.NumCores),
		waiters:     make(map[chan struct{}]struct{}),
	}
	for i := range d.cores {
		d.cores[i].available = true
	}
	return d
}

// NumCores implements clock.CoreSlots.
func (d *Dispatcher) NumCores() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cores)
}

// Available implements clock.CoreSlots.
func (d *Dispatcher) Available(coreID int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cores[coreID].available
}

// Enqueue appends p to the Ready Queue. A pid already present in the queue
// is not re-added, enforcing the "appears at most once" invariant of
// spec.md §8.
func (d *Dispatcher) Enqueue(p *process.Process) {
	d.mu.Lock()
	if d.queued[p.PID()] {
		d.mu.Unlock()
		return
	}
	d.queued[p.PID()] = true
	d.queue = append(d.queue, p)
	d.broadcastLocked()
	d.mu.Unlock()
}

// ReleaseCore marks coreID available again and wakes any blocked dispatch
// attempt.
func (d *Dispatcher) ReleaseCore(coreID int) {
	d.mu.Lock()
	d.cores[coreID].available = true
	d.cores[coreID].proc = nil
	d.broadcastLocked()
	d.mu.Unlock()
}

// broadcastLocked wakes every waiter. Callers must hold mu.
func (d *Dispatcher) broadcastLocked() {
	for ch := range d.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// waitUntil blocks until pred() is true (re-checked under the lock after
// every wake) or ctx is done, whichever comes first. pred is called with mu
// held and must not itself lock.
func (d *Dispatcher) waitUntil(ctx context.Context, pred func() bool) bool {
	d.mu.Lock()
	for !pred() {
		ch := make(chan struct{}, 1)
		d.waiters[ch] = struct{}{}
		d.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			d.mu.Lock()
			delete(d.waiters, ch)
			d.mu.Unlock()
			return false
		}

		d.mu.Lock()
		delete(d.waiters, ch)
	}
	d.mu.Unlock()
	return true
}

func (d *Dispatcher) queueNonEmptyLocked() bool {
	return len(d.queue) > 0
}

func (d *Dispatcher) anyCoreAvailableLocked() bool {
	for _, c := range d.cores {
		if c.available {
			return true
		}
	}
	return false
}

// Run is the Dispatcher's main loop (spec.md §4.6): block until the Ready
// Queue is non-empty; find the first available core; admit the head
// process — Admit is idempotent for an already-Running resident and
// reactivates an Idle one, so it is always called, not just for processes
// that have never been resident; on success, claim the core and spawn a
// Worker; on rejection, rotate the head to the back and block until some
// core becomes available. When no core is available the queue is left as it
// is (no rotation) and the loop blocks until a core frees up. It returns
// when ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("dispatcher started")
	defer d.log.Info("dispatcher stopped")

	for {
		if !d.waitUntil(ctx, d.queueNonEmptyLocked) {
			return
		}

		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			continue
		}
		p := d.queue[0]

		coreID := -1
		for i, c := range d.cores {
			if c.available {
				coreID = i
				break
			}
		}
		if coreID == -1 {
			d.mu.Unlock()
			if !d.waitUntil(ctx, d.anyCoreAvailableLocked) {
				return
			}
			continue
		}

		// Always go through Admit, even for an already-resident process: a
		// process returning to the head of the queue after a prior
		// Round-Robin slice is still resident but Idle (it was never
		// evicted), and Admit is the only place that flips its Resident
		// Entry back to Running. Skipping Admit for residents left the
		// Memory Manager thinking a process bound to a core was still Idle
		// and therefore eligible for eviction out from under it.
		result, err := d.mem.Admit(ctx, p)
		if err != nil {
			d.log.Warnf("admit pid %d: %v", p.PID(), err)
		}
		if result == memory.Rejected {
			d.queue = append(d.queue[1:], p)
			d.mu.Unlock()
			if !d.waitUntil(ctx, d.anyCoreAvailableLocked) {
				return
			}
			continue
		}

		d.cores[coreID].available = false
		d.cores[coreID].proc = p
		d.queue = d.queue[1:]
		delete(d.queued, p.PID())
		d.mu.Unlock()

		p.SetCore(coreID)
		p.SetState(process.Running)
		p.SetStartTime()
		d.spawnWorker(coreID, p)
	}
}

func (d *Dispatcher) spawnWorker(coreID int, p *process.Process) {
	var w *Worker
	switch d.policy {
	case RR:
		w = NewRRWorker(d.log, d.mem, d.clk, d, d.snapshotter, d.delay, d.timeSlice, coreID, p)
	default:
		w = NewFCFSWorker(d.log, d.mem, d.clk, d, d.delay, coreID, p)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		w.Run()
	}()
}

// WaitForWorkers blocks until every spawned Worker has exited naturally.
// Used during shutdown: since Workers are never cancelled, a clean shutdown
// must wait for them rather than force them closed.
func (d *Dispatcher) WaitForWorkers() {
	d.wg.Wait()
}

// CoreStatuses returns a point-in-time view of every core slot, for
// process-smi/vmstat-style reporting.
func (d *Dispatcher) CoreStatuses() []CoreStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CoreStatus, len(d.cores))
	for i, c := range d.cores {
		out[i] = CoreStatus{CoreID: i, Available: c.available}
		if c.proc != nil {
			out[i].PID = c.proc.PID()
			out[i].Name = c.proc.Name()
		}
	}
	return out
}

// QueueLen reports the current Ready Queue length, for reporting.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
