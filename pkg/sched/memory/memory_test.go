package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/process"
	"github.com/csopesy/schedcore/pkg/sched/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(logging.Discard(), filepath.Join(t.TempDir(), "bs.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFlatModeAdmitAndRelease(t *testing.T) {
	cfg := Config{MaxMemory: 1024, FrameSize: 1024, MinMemPerProc: 64, MaxMemPerProc: 256}
	m := New(logging.Discard(), cfg, newTestStore(t))
	require.True(t, cfg.Flat())

	p := process.New(1, "p1", 5, 256)
	result, err := m.Admit(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, Admitted, result)
	require.True(t, m.IsResident(1))

	snap := m.Snapshot()
	require.Equal(t, uint64(256), snap.Used)

	m.Release(1)
	require.False(t, m.IsResident(1))
	snap = m.Snapshot()
	require.Equal(t, uint64(0), snap.Used)
	require.Equal(t, snap.PagedIn, snap.PagedOut)
}

func TestAdmitIdempotentOnRunningResident(t *testing.T) {
	cfg := Config{MaxMemory: 1024, FrameSize: 1024, MinMemPerProc: 64, MaxMemPerProc: 256}
	m := New(logging.Discard(), cfg, newTestStore(t))

	p := process.New(1, "p1", 5, 256)
	_, err := m.Admit(context.Background(), p)
	require.NoError(t, err)

	before := m.Snapshot().Free
	result, err := m.Admit(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, Admitted, result)
	require.Equal(t, before, m.Snapshot().Free)
}

func TestAdmitRewarmsIdleWithoutConsumingSpace(t *testing.T) {
	cfg := Config{MaxMemory: 1024, FrameSize: 1024, MinMemPerProc: 64, MaxMemPerProc: 256}
	m := New(logging.Discard(), cfg, newTestStore(t))

	p := process.New(1, "p1", 5, 256)
	_, err := m.Admit(context.Background(), p)
	require.NoError(t, err)
	m.SetStatus(1, StatusIdle)

	before := m.Snapshot().Free
	result, err := m.Admit(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, AdmittedRewarm, result)
	require.Equal(t, before, m.Snapshot().Free)
}

func TestPagingModeAllocatesFramesAndRejectsOversize(t *testing.T) {
	cfg := Config{MaxMemory: 64, FrameSize: 16, MinMemPerProc: 16, MaxMemPerProc: 64}
	m := New(logging.Discard(), cfg, newTestStore(t))
	require.False(t, cfg.Flat())

	p := process.New(1, "p1", 1, 32)
	result, err := m.Admit(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, Admitted, result)

	oversized := process.New(2, "p2", 1, 1<<20)
	result, err = m.Admit(context.Background(), oversized)
	require.NoError(t, err)
	require.Equal(t, Rejected, result)
}

func TestEvictOldestIdleOnContention(t *testing.T) {
	cfg := Config{MaxMemory: 32, FrameSize: 16, MinMemPerProc: 16, MaxMemPerProc: 16}
	bs := newTestStore(t)
	m := New(logging.Discard(), cfg, bs)

	p1 := process.New(1, "p1", 5, 16)
	p2 := process.New(2, "p2", 5, 16)
	p3 := process.New(3, "p3", 5, 16)

	_, err := m.Admit(context.Background(), p1)
	require.NoError(t, err)
	_, err = m.Admit(context.Background(), p2)
	require.NoError(t, err)

	// p1 ages first (admit ages Running residents before the new admission),
	// so it accumulates more age than p2 and is evicted first.
	m.SetStatus(1, StatusIdle)
	m.SetStatus(2, StatusIdle)

	result, err := m.Admit(context.Background(), p3)
	require.NoError(t, err)
	require.Equal(t, Admitted, result)
	require.False(t, m.IsResident(1))
	require.True(t, m.IsResident(2))
	require.True(t, m.IsResident(3))

	_, ok := bs.Lookup(1)
	require.True(t, ok)
}

func TestSetStatusOnNonResidentIsNoOp(t *testing.T) {
	cfg := Config{MaxMemory: 1024, FrameSize: 1024, MinMemPerProc: 64, MaxMemPerProc: 256}
	m := New(logging.Discard(), cfg, newTestStore(t))
	require.NotPanics(t, func() { m.SetStatus(999, StatusIdle) })
}

func TestSnapshotSortedByPID(t *testing.T) {
	cfg := Config{MaxMemory: 1024, FrameSize: 1024, MinMemPerProc: 64, MaxMemPerProc: 256}
	m := New(logging.Discard(), cfg, newTestStore(t))

	for _, pid := range []int{3, 1, 2} {
		_, err := m.Admit(context.Background(), process.New(pid, "p", 1, 64))
		require.NoError(t, err)
	}

	snap := m.Snapshot()
	require.Len(t, snap.Residents, 3)
	require.Equal(t, 1, snap.Residents[0].PID)
	require.Equal(t, 2, snap.Residents[1].PID)
	require.Equal(t, 3, snap.Residents[2].PID)
}
