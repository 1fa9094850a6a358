package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/process"
)

func TestArchiveWritesLineAndIndexesIt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backing-store.txt")

	s, err := New(logging.Discard(), path)
	require.NoError(t, err)
	defer s.Close()

	p := process.New(42, "p42", 10, 1024)
	p.SetState(process.Running)
	require.NoError(t, p.ExecuteOne(0))
	require.NoError(t, p.ExecuteOne(0))

	require.NoError(t, s.Archive(p))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "p42 42 2 / 10 (")

	got, ok := s.Lookup(42)
	require.True(t, ok)
	require.Equal(t, p, got)
}

func TestLookupMissReturnsFalse(t *testing.T) {
	s, err := New(logging.Discard(), filepath.Join(t.TempDir(), "bs.txt"))
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Lookup(999)
	require.False(t, ok)
}

func TestRemoveDropsIndexEntry(t *testing.T) {
	s, err := New(logging.Discard(), filepath.Join(t.TempDir(), "bs.txt"))
	require.NoError(t, err)
	defer s.Close()

	p := process.New(1, "p1", 1, 16)
	require.NoError(t, s.Archive(p))
	s.Remove(1)

	_, ok := s.Lookup(1)
	require.False(t, ok)
}

func TestTailCapsAtSixtyFour(t *testing.T) {
	s, err := New(logging.Discard(), filepath.Join(t.TempDir(), "bs.txt"))
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < tailCapacity+10; i++ {
		require.NoError(t, s.Archive(process.New(i, "p", 1, 16)))
	}

	tail := s.Tail()
	require.Len(t, tail, tailCapacity)
}
