// Package process implements the Process record: one synthetic job's
// identity, program counter, memory footprint, lifecycle state, and
// timestamps.
package process

import (
	"sync"
	"time"

	"github.com/csopesy/schedcore/pkg/sched/schederr"
)

// State is a Process's lifecycle state.
type State int

const (
	Ready State = iota
	Running
	Waiting
	Finished
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Waiting:
		return "Waiting"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// timestampLayout matches the original emulator's backing-store and
// process listing format exactly.
const timestampLayout = "01/02/2006 03:04:05 PM"

// Debug controls whether AlreadyFinished is a fatal assertion (true) or a
// tolerated no-op (false, the release default described in spec.md §4.1 and
// §9's tolerant-setStatus note).
var Debug = false

// Clock is a seam over time.Now so tests can supply deterministic instants.
var Clock = time.Now

// Process is one synthetic job.
type Process struct {
	mu sync.Mutex

	pid     int
	name    string
	total   int // L: total instruction count
	counter int // C: command counter, 0 <= counter <= total
	memSize uint64

	state  State
	coreID int // -1 if unassigned

	created time.Time
	started time.Time
	ended   time.Time
}

// New creates a Ready process with the given pid, name, instruction count and
// memory footprint. coreID starts at -1.
func New(pid int, name string, total int, memSize uint64) *Process {
	return &Process{
		pid:     pid,
		name:    name,
		total:   total,
		memSize: memSize,
		state:   Ready,
		coreID:  -1,
		created: Clock(),
	}
}

func (p *Process) PID() int { return p.pid }

func (p *Process) Name() string { return p.name }

func (p *Process) TotalInstructions() int { return p.total }

func (p *Process) MemorySize() uint64 { return p.memSize }

func (p *Process) CommandCounter() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counter
}

func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState mutates the lifecycle state. Called by the Dispatcher and the
// process's current Worker only, per spec.md's ownership rules.
func (p *Process) SetState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *Process) CoreID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.coreID
}

// SetCore assigns (or clears, with -1) the core a Worker is running this
// process on.
func (p *Process) SetCore(coreID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coreID = coreID
}

// SetStartTime stamps the process's first dispatch, if not already stamped.
func (p *Process) SetStartTime() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.IsZero() {
		p.started = Clock()
	}
}

func (p *Process) StartedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *Process) EndedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

func (p *Process) CreatedAt() time.Time {
	return p.created
}

// FormatTimestamp renders t the way the emulator's reports and backing-store
// entries do: MM/DD/YYYY hh:mm:ss AM/PM.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}

// IsFinished reports whether the process has completed all its instructions.
func (p *Process) IsFinished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == Finished
}

// ExecuteOne advances the command counter by one if the process is Running.
// On reaching the total instruction count it transitions to Finished and
// records the end timestamp. Calling it after the process is already
// Finished is a no-op that returns schederr.AlreadyFinished; when Debug is
// true it panics with schederr.AlreadyFinished instead.
func (p *Process) ExecuteOne(coreID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Finished {
		if Debug {
			panic(schederr.AlreadyFinished)
		}
		return schederr.AlreadyFinished
	}
	if p.state != Running {
		return nil
	}

	p.coreID = coreID
	p.counter++
	if p.counter >= p.total {
		p.counter = p.total
		p.state = Finished
		p.ended = Clock()
	}
	return nil
}
