// Package memory implements the Memory Manager: admission and eviction of
// processes into main memory under either a flat or a fixed-frame paging
// discipline.
//
// Its locking shape is grounded on the teacher's loader
// (pkg/inference/scheduling/loader.go): a buffered channel of size 1 acts as
// a pollable mutex so admit/release/snapshot can all serialize against each
// other atomically, per spec.md §4.3's failure-semantics requirement.
// Unlike the teacher's loader, Admit never blocks waiting for space to free
// up — spec.md §4.6 makes the Dispatcher responsible for retrying via
// rotation, so a failed admission simply returns Rejected immediately.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/process"
	"github.com/csopesy/schedcore/pkg/sched/store"
)

// Status is a Resident Entry's residency status.
type Status int

const (
	StatusRunning Status = iota
	StatusIdle
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusIdle:
		return "Idle"
	case StatusRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// AdmitResult is the outcome of an Admit call.
type AdmitResult int

const (
	// Admitted indicates a fresh allocation succeeded, or an idempotent call
	// for an already-Running resident.
	Admitted AdmitResult = iota
	// AdmittedRewarm indicates an Idle resident was reactivated to Running
	// without consuming fresh space.
	AdmittedRewarm
	// Rejected indicates no space could be found, even after evicting every
	// eligible Idle resident.
	Rejected
)

func (r AdmitResult) String() string {
	switch r {
	case Admitted:
		return "Admitted"
	case AdmittedRewarm:
		return "AdmittedRewarm"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Config configures the Memory Manager. Mode is implicit: flat iff
// MaxMemory == FrameSize.
type Config struct {
	MaxMemory     uint64
	FrameSize     uint64
	MinMemPerProc uint64
	MaxMemPerProc uint64
}

// Flat reports whether the configuration selects flat mode.
func (c Config) Flat() bool {
	return c.MaxMemory == c.FrameSize
}

// residentEntry is one Resident Entry.
type residentEntry struct {
	proc   *process.Process
	pid    int
	size   uint64
	status Status
	age    uint64
	frames []int // frame indices held, paging mode only
}

// Snapshot is a point-in-time view of the Memory Manager, safe to read
// concurrently with Admit/Release (spec.md §4.3: "snapshot() ... must be
// safe to call concurrently with scheduling").
type Snapshot struct {
	Used              uint64
	Free              uint64
	MaxMemory         uint64
	UtilizationPct    float64
	FragmentationKB   float64
	PagedIn, PagedOut uint64
	Residents         []ResidentInfo
	// Frames is a copy of the frame-owner table (pid per frame, 0 == free),
	// nil in flat mode. Used to render the memory-map snapshot file.
	Frames []int
	// FrameSize is the configured frame size, needed to convert frame
	// indices to addresses when rendering a memory-map snapshot.
	FrameSize uint64
}

// ResidentInfo describes one resident process for reporting.
type ResidentInfo struct {
	PID    int
	Name   string
	Size   uint64
	Status Status
	Age    uint64
}

// Manager is the Memory Manager.
type Manager struct {
	log   logging.Logger
	cfg   Config
	store *store.Store

	guard chan struct{}

	availableMemory uint64
	pagedIn         uint64
	pagedOut        uint64

	// frames holds frame owner pids in paging mode (0 == free); nil in flat
	// mode, where admission is purely a size check against availableMemory.
	frames []int

	residents map[int]*residentEntry
}

// New creates a Memory Manager with the given configuration. bs is used to
// archive evicted residents.
func New(log logging.Logger, cfg Config, bs *store.Store) *Manager {
	m := &Manager{
		log:             logging.WithComponent(log, "memory-manager"),
		cfg:             cfg,
		store:           bs,
		guard:           make(chan struct{}, 1),
		availableMemory: cfg.MaxMemory,
		residents:       make(map[int]*residentEntry),
	}
	if !cfg.Flat() {
		m.frames = make([]int, cfg.MaxMemory/cfg.FrameSize)
	}
	m.guard <- struct{}{}
	return m
}

func (m *Manager) lock() {
	<-m.guard
}

func (m *Manager) unlock() {
	m.guard <- struct{}{}
}

// Admit attempts to admit p to main memory. See AdmitResult for the possible
// outcomes.
func (m *Manager) Admit(ctx context.Context, p *process.Process) (AdmitResult, error) {
	m.lock()
	defer m.unlock()

	// Age accounting: every admit call ages Running residents by one tick of
	// service, before attempting allocation (spec.md §4.3 "Age accounting").
	for _, r := range m.residents {
		if r.status == StatusRunning {
			r.age++
		}
	}

	if r, ok := m.residents[p.PID()]; ok {
		switch r.status {
		case StatusRunning:
			return Admitted, nil
		case StatusIdle:
			r.status = StatusRunning
			return AdmittedRewarm, nil
		}
	}

	size := p.MemorySize()

	// Bounded eviction retry loop: at most len(residents)+1 attempts; each
	// failed attempt evicts one Idle resident, and the loop returns Rejected
	// as soon as no Idle resident is left to evict.
	maxAttempts := len(m.residents) + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ok, frames := m.tryAllocate(size); ok {
			m.commitAllocation(p, size, frames)
			return Admitted, nil
		}
		if !m.evictOldestIdle() {
			return Rejected, nil
		}
	}
	return Rejected, nil
}

// tryAllocate checks whether size bytes can be allocated right now, without
// mutating state (except computing which frames would be used in paging
// mode, returned for the caller to commit).
func (m *Manager) tryAllocate(size uint64) (bool, []int) {
	if m.cfg.Flat() {
		return m.availableMemory >= size, nil
	}

	required := int((size + m.cfg.FrameSize - 1) / m.cfg.FrameSize)
	if m.availableMemory < size {
		return false, nil
	}
	frames := make([]int, 0, required)
	for i, owner := range m.frames {
		if owner == 0 {
			frames = append(frames, i)
			if len(frames) == required {
				return true, frames
			}
		}
	}
	return false, nil
}

func (m *Manager) commitAllocation(p *process.Process, size uint64, frames []int) {
	for _, idx := range frames {
		m.frames[idx] = p.PID()
	}
	m.availableMemory -= size
	m.pagedIn += uint64(max(1, len(frames)))
	m.residents[p.PID()] = &residentEntry{
		proc:   p,
		pid:    p.PID(),
		size:   size,
		status: StatusRunning,
		age:    0,
		frames: frames,
	}
}

// evictOldestIdle evicts the Idle resident with the largest age (ties broken
// by lowest pid), archiving it via the Backing Store and freeing its space.
// The caller must hold the lock. Returns false if no Idle resident exists.
func (m *Manager) evictOldestIdle() bool {
	var victim *residentEntry
	for _, r := range m.residents {
		if r.status != StatusIdle {
			continue
		}
		if victim == nil || r.age > victim.age || (r.age == victim.age && r.pid < victim.pid) {
			victim = r
		}
	}
	if victim == nil {
		return false
	}

	if m.store != nil {
		if err := m.store.Archive(victim.proc); err != nil {
			m.log.Warnf("failed to archive evicted pid %d: %v", victim.pid, err)
		}
	}
	m.releaseLocked(victim.pid)
	return true
}

// Release frees pid's frames (paging) or accounting slot (flat) and marks
// its Resident Entry Removed.
func (m *Manager) Release(pid int) {
	m.lock()
	defer m.unlock()
	m.releaseLocked(pid)
}

func (m *Manager) releaseLocked(pid int) {
	r, ok := m.residents[pid]
	if !ok {
		return
	}
	if m.cfg.Flat() {
		m.pagedOut++
	} else {
		for _, idx := range r.frames {
			m.frames[idx] = 0
		}
		m.pagedOut += uint64(max(1, len(r.frames)))
	}
	m.availableMemory += r.size
	r.status = StatusRemoved
	delete(m.residents, pid)
}

// SetStatus updates a resident's status between Running and Idle, called by
// Workers on slice boundaries. Calling it for a pid that is not resident
// (e.g. already finished and released) is a tolerated no-op, per spec.md
// §9's note on setStatus(pid, idle) after deallocation.
func (m *Manager) SetStatus(pid int, status Status) {
	m.lock()
	defer m.unlock()
	r, ok := m.residents[pid]
	if !ok {
		return
	}
	if status == StatusRunning || status == StatusIdle {
		r.status = status
	}
}

// IsResident reports whether pid currently occupies memory (Running or
// Idle).
func (m *Manager) IsResident(pid int) bool {
	m.lock()
	defer m.unlock()
	_, ok := m.residents[pid]
	return ok
}

// Snapshot returns a consistent view of memory usage and residents, for
// process-smi/vmstat-style reporting.
func (m *Manager) Snapshot() Snapshot {
	m.lock()
	defer m.unlock()

	residents := make([]ResidentInfo, 0, len(m.residents))
	for _, r := range m.residents {
		residents = append(residents, ResidentInfo{
			PID:    r.pid,
			Name:   r.proc.Name(),
			Size:   r.size,
			Status: r.status,
			Age:    r.age,
		})
	}
	sort.Slice(residents, func(i, j int) bool { return residents[i].PID < residents[j].PID })

	used := m.cfg.MaxMemory - m.availableMemory
	util := 0.0
	if m.cfg.MaxMemory > 0 {
		util = float64(used) / float64(m.cfg.MaxMemory) * 100
	}

	var frames []int
	if m.frames != nil {
		frames = make([]int, len(m.frames))
		copy(frames, m.frames)
	}

	return Snapshot{
		Used:            used,
		Free:            m.availableMemory,
		MaxMemory:       m.cfg.MaxMemory,
		UtilizationPct:  util,
		FragmentationKB: m.fragmentationKBLocked(),
		PagedIn:         m.pagedIn,
		PagedOut:        m.pagedOut,
		Residents:       residents,
		Frames:          frames,
		FrameSize:       m.cfg.FrameSize,
	}
}

// fragmentationKBLocked resolves the Open Question in spec.md §9: flat mode
// reports maxMemory minus the sum of resident sizes (which, since flat
// admission is a single accounting slot per resident, is just the available
// memory); paging mode reports the free-frame total minus the largest
// contiguous free run, both converted to KB. The caller must hold the lock.
func (m *Manager) fragmentationKBLocked() float64 {
	var frag uint64
	if m.cfg.Flat() {
		frag = m.availableMemory
	} else {
		var totalFree, longestRun, currentRun uint64
		for _, owner := range m.frames {
			if owner == 0 {
				totalFree++
				currentRun++
				if currentRun > longestRun {
					longestRun = currentRun
				}
			} else {
				currentRun = 0
			}
		}
		if totalFree > longestRun {
			frag = (totalFree - longestRun) * m.cfg.FrameSize
		}
	}
	return float64(frag) / 1024
}
