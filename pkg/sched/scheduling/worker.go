package scheduling

import (
	"time"

	"github.com/csopesy/schedcore/pkg/internal/utils"
	"github.com/csopesy/schedcore/pkg/sched/clock"
	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/memory"
	"github.com/csopesy/schedcore/pkg/sched/process"
)

// minInstructionDelay is the floor applied to a configured zero (or
// near-zero) delaysPerExec, per spec.md §8's boundary behavior note: tests
// must not assume zero inter-instruction delay, since the idle-sampler needs
// a meaningful sampling window.
const minInstructionDelay = 50 * time.Millisecond

// Notifier is how a Worker reports back to the Dispatcher on exit: it
// releases its core and, for a Round-Robin slice expiry, re-enqueues the
// process it was running.
type Notifier interface {
	ReleaseCore(coreID int)
	Enqueue(p *process.Process)
}

// SliceSnapshotter persists a memory-map snapshot at a Round-Robin
// time-slice boundary, per spec.md §6's memory/memory_stamp_<n>.txt file. A
// concrete implementation lives in pkg/sched/report; Worker only depends on
// this narrow interface to avoid importing report from scheduling.
type SliceSnapshotter interface {
	WriteMemorySnapshot(n uint64, snap memory.Snapshot) error
}

// Worker is a transient execution unit bound to a (core, process) pair for
// one dispatch, per spec.md §4.5. A zero timeSlice selects FCFS behavior
// (run until Finished); a positive timeSlice selects Round-Robin behavior
// (run up to timeSlice instructions per dispatch).
//
// Workers are never cancelled (spec.md §5: "Workers to not be cancelled —
// they run their current slice to completion and then observe stop"), so
// Run takes no context and is grounded on the teacher's runner lifecycle
// (runner.go) only insofar as it reports back through a narrow interface on
// exit, not in its cancellation behavior.
type Worker struct {
	log         logging.Logger
	mem         *memory.Manager
	clk         *clock.Clock
	notify      Notifier
	snapshotter SliceSnapshotter
	delay       time.Duration
	timeSlice   int
	coreID      int
	proc        *process.Process
}

func newWorker(log logging.Logger, mem *memory.Manager, clk *clock.Clock, notify Notifier, snapshotter SliceSnapshotter, delay time.Duration, timeSlice, coreID int, proc *process.Process) *Worker {
	if delay < minInstructionDelay {
		delay = minInstructionDelay
	}
	return &Worker{
		log:         log,
		mem:         mem,
		clk:         clk,
		notify:      notify,
		snapshotter: snapshotter,
		delay:       delay,
		timeSlice:   timeSlice,
		coreID:      coreID,
		proc:        proc,
	}
}

// NewFCFSWorker creates a Worker that runs its process to completion.
func NewFCFSWorker(log logging.Logger, mem *memory.Manager, clk *clock.Clock, notify Notifier, delay time.Duration, coreID int, proc *process.Process) *Worker {
	return newWorker(log, mem, clk, notify, nil, delay, 0, coreID, proc)
}

// NewRRWorker creates a Worker that runs up to timeSlice instructions. A nil
// snapshotter disables memory-map snapshot writing.
func NewRRWorker(log logging.Logger, mem *memory.Manager, clk *clock.Clock, notify Notifier, snapshotter SliceSnapshotter, delay time.Duration, timeSlice, coreID int, proc *process.Process) *Worker {
	return newWorker(log, mem, clk, notify, snapshotter, delay, timeSlice, coreID, proc)
}

// Run executes the worker's dispatch: FCFS runs until Finished, RR runs up
// to timeSlice instructions. It always ends by reporting back to the
// Dispatcher via finish().
func (w *Worker) Run() {
	defer w.finish()

	executed := 0
	for {
		if err := w.proc.ExecuteOne(w.coreID); err != nil {
			// Already finished by the time we got here; nothing to do.
			return
		}
		w.clk.IncrementActive(1)
		executed++

		if w.proc.IsFinished() {
			return
		}
		if w.timeSlice > 0 && executed >= w.timeSlice {
			return
		}
		time.Sleep(w.delay)
	}
}

// finish reports the worker's exit back to the memory manager, the process
// itself, and the Dispatcher, per the per-policy contract in spec.md §4.5.
func (w *Worker) finish() {
	pid := w.proc.PID()

	if w.timeSlice == 0 {
		// FCFS: always release on exit, regardless of whether the process
		// reached Finished.
		w.mem.Release(pid)
	} else if w.proc.IsFinished() {
		w.mem.Release(pid)
	} else {
		w.mem.SetStatus(pid, memory.StatusIdle)
		w.proc.SetState(process.Waiting)
		w.proc.SetCore(-1)
		w.notify.Enqueue(w.proc)
	}

	if w.timeSlice > 0 && w.snapshotter != nil {
		active, _ := w.clk.Snapshot()
		n := active / uint64(w.timeSlice)
		if err := w.snapshotter.WriteMemorySnapshot(n, w.mem.Snapshot()); err != nil {
			w.log.Warnf("write memory snapshot: %v", err)
		}
	}

	w.notify.ReleaseCore(w.coreID)
	w.log.Debugf("worker for pid %d (%s) on core %d exited (finished=%v)",
		pid, utils.SanitizeForLog(w.proc.Name()), w.coreID, w.proc.IsFinished())
}
