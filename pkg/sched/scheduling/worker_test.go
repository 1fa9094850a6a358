package scheduling

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csopesy/schedcore/pkg/sched/clock"
	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/memory"
	"github.com/csopesy/schedcore/pkg/sched/process"
	"github.com/csopesy/schedcore/pkg/sched/store"
)

// recordingNotifier captures ReleaseCore/Enqueue calls for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	released []int
	enqueued []*process.Process
}

func (r *recordingNotifier) ReleaseCore(coreID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, coreID)
}

func (r *recordingNotifier) Enqueue(p *process.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued = append(r.enqueued, p)
}

func newTestMemForWorker(t *testing.T) *memory.Manager {
	t.Helper()
	s, err := store.New(logging.Discard(), filepath.Join(t.TempDir(), "bs.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	cfg := memory.Config{MaxMemory: 1024, FrameSize: 1024, MinMemPerProc: 64, MaxMemPerProc: 64}
	return memory.New(logging.Discard(), cfg, s)
}

func TestFCFSWorkerRunsToCompletionAndReleases(t *testing.T) {
	mem := newTestMemForWorker(t)
	clk := clock.New()
	notify := &recordingNotifier{}

	p := process.New(1, "p1", 3, 64)
	_, err := mem.Admit(context.Background(), p)
	require.NoError(t, err)
	p.SetState(process.Running)

	w := NewFCFSWorker(logging.Discard(), mem, clk, notify, time.Millisecond, 0, p)
	w.Run()

	require.True(t, p.IsFinished())
	require.False(t, mem.IsResident(1))
	require.Equal(t, []int{0}, notify.released)
	require.Empty(t, notify.enqueued)

	active, _ := clk.Snapshot()
	require.Equal(t, uint64(3), active)
}

func TestRRWorkerIdlesAndReenqueuesOnSliceExpiry(t *testing.T) {
	mem := newTestMemForWorker(t)
	clk := clock.New()
	notify := &recordingNotifier{}

	p := process.New(1, "p1", 5, 64)
	_, err := mem.Admit(context.Background(), p)
	require.NoError(t, err)
	p.SetState(process.Running)

	w := NewRRWorker(logging.Discard(), mem, clk, notify, nil, time.Millisecond, 2, 0, p)
	w.Run()

	require.Equal(t, process.Waiting, p.State())
	require.Equal(t, 2, p.CommandCounter())
	require.True(t, mem.IsResident(1))
	require.Equal(t, []int{0}, notify.released)
	require.Len(t, notify.enqueued, 1)
	require.Equal(t, -1, p.CoreID())
}

func TestRRWorkerReleasesWhenProcessFinishesMidSlice(t *testing.T) {
	mem := newTestMemForWorker(t)
	clk := clock.New()
	notify := &recordingNotifier{}

	p := process.New(1, "p1", 1, 64)
	_, err := mem.Admit(context.Background(), p)
	require.NoError(t, err)
	p.SetState(process.Running)

	w := NewRRWorker(logging.Discard(), mem, clk, notify, nil, time.Millisecond, 4, 0, p)
	w.Run()

	require.True(t, p.IsFinished())
	require.False(t, mem.IsResident(1))
	require.Empty(t, notify.enqueued)
}

type countingSnapshotter struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSnapshotter) WriteMemorySnapshot(n uint64, snap memory.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func TestRRWorkerWritesSnapshotAtSliceBoundary(t *testing.T) {
	mem := newTestMemForWorker(t)
	clk := clock.New()
	notify := &recordingNotifier{}
	snapshotter := &countingSnapshotter{}

	p := process.New(1, "p1", 5, 64)
	_, err := mem.Admit(context.Background(), p)
	require.NoError(t, err)
	p.SetState(process.Running)

	w := NewRRWorker(logging.Discard(), mem, clk, notify, snapshotter, time.Millisecond, 2, 0, p)
	w.Run()

	require.Equal(t, 1, snapshotter.calls)
}
