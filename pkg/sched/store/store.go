// Package store implements the Backing Store: it archives evicted resident
// processes to an append-only file and retains an in-memory index so an
// evicted process can be reconstituted without re-reading the file.
//
// The archive line format and timestamp layout are grounded exactly on
// original_source/BackingStore.cpp and Process.cpp:
//
//	<name> <pid> <C> / <L> (<timestamp>)
package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/process"
)

// DefaultPath is the default backing-store file name.
const DefaultPath = "backing-store.txt"

// tailCapacity bounds the in-memory record of recent archive lines kept for
// quick inspection without reopening the file.
const tailCapacity = 64

// entry is the in-memory record of an archived process, sufficient to
// reconstitute it on re-admission without reading the file back.
type entry struct {
	process *process.Process
	name    string
	pid     int
	counter int
	total   int
}

// Store is the Backing Store. archive calls serialize with respect to both
// the file and the in-memory index (spec.md §5: "Backing Store file:
// Mutators: Memory Manager; discipline: file-level lock").
type Store struct {
	log  logging.Logger
	path string

	mu     sync.Mutex
	file   *os.File
	index  map[int]entry
	tail   []string
	tailAt int
}

// New opens (creating if necessary) the backing-store file at path for
// appending.
func New(log logging.Logger, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open backing store %q: %w", path, err)
	}
	return &Store{
		log:   logging.WithComponent(log, "backing-store"),
		path:  path,
		file:  f,
		index: make(map[int]entry),
	}, nil
}

// Archive appends a record for p's current state and retains it in the
// in-memory index for Lookup.
func (s *Store) Archive(p *process.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{
		process: p,
		name:    p.Name(),
		pid:     p.PID(),
		counter: p.CommandCounter(),
		total:   p.TotalInstructions(),
	}
	line := fmt.Sprintf("%s %d %d / %d (%s)\n",
		e.name, e.pid, e.counter, e.total, process.FormatTimestamp(process.Clock()))

	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("archive pid %d: %w", e.pid, err)
	}

	s.index[e.pid] = e
	s.appendTail(line)
	s.log.Infof("archived pid %d (%s): %d/%d instructions", e.pid, e.name, e.counter, e.total)
	return nil
}

func (s *Store) appendTail(line string) {
	if len(s.tail) < tailCapacity {
		s.tail = append(s.tail, line)
		return
	}
	s.tail[s.tailAt] = line
	s.tailAt = (s.tailAt + 1) % tailCapacity
}

// Lookup returns the archived process for pid, and true if it was found. The
// emulator's simplification (per spec.md §4.2) is that reconstitution
// restores the in-memory record directly rather than re-parsing the file.
func (s *Store) Lookup(pid int) (*process.Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[pid]
	if !ok {
		return nil, false
	}
	return e.process, true
}

// Remove drops pid from the in-memory index, e.g. once a process has
// finished and can no longer be reconstituted.
func (s *Store) Remove(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.index, pid)
}

// Tail returns up to the last tailCapacity archived lines, oldest first.
func (s *Store) Tail() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tail))
	if len(s.tail) < tailCapacity {
		copy(out, s.tail)
		return out
	}
	n := copy(out, s.tail[s.tailAt:])
	copy(out[n:], s.tail[:s.tailAt])
	return out
}

// Close closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
