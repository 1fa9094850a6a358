package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/csopesy/schedcore/pkg/sched/memory"
	"github.com/csopesy/schedcore/pkg/sched/process"
)

// memorySnapshotDir is where per-slice memory-map snapshots are written,
// per spec.md §6: "path memory/memory_stamp_<n>.txt where n =
// active-tick / timeSlice".
const memorySnapshotDir = "memory"

// MemorySnapshotPath returns the path for slice index n.
func MemorySnapshotPath(n uint64) string {
	return filepath.Join(memorySnapshotDir, fmt.Sprintf("memory_stamp_%d.txt", n))
}

// WriteMemorySnapshot renders and writes the memory-map snapshot for RR
// time-slice index n, in the exact block format the original emulator used:
// a header with process count and fragmentation, followed by one block per
// contiguous run of frames owned by a single process (rendered from the top
// of memory down to address 0), with a `----end----`/`----start----`
// address bracket at the top and bottom.
//
// In flat mode there is no frame table to render a memory map from, so only
// the header and the `----end----`/`----start----` bracket lines are written.
func WriteMemorySnapshot(n uint64, snap memory.Snapshot) error {
	if err := os.MkdirAll(memorySnapshotDir, 0o755); err != nil {
		return fmt.Errorf("create memory snapshot dir: %w", err)
	}

	buf := fmt.Sprintf("Timestamp: %s\n", process.FormatTimestamp(time.Now()))
	buf += fmt.Sprintf("Number of processes in memory: %d\n", len(snap.Residents))
	buf += fmt.Sprintf("Total external fragmentation in KB: %.2f\n\n", snap.FragmentationKB)
	buf += fmt.Sprintf("----end---- = %d\n\n", snap.MaxMemory)

	if snap.Frames != nil {
		frameSize := snap.FrameSize
		i := len(snap.Frames) - 1
		for i >= 0 {
			owner := snap.Frames[i]
			if owner == 0 {
				i--
				continue
			}
			end := i
			for i >= 0 && snap.Frames[i] == owner {
				i--
			}
			start := i + 1
			buf += fmt.Sprintf("%d\n", (uint64(end)+1)*frameSize)
			buf += fmt.Sprintf("P%d\n", owner)
			buf += fmt.Sprintf("%d\n\n", uint64(start)*frameSize)
		}
	}

	buf += "----start---- = 0\n"

	path := MemorySnapshotPath(n)
	if err := os.WriteFile(path, []byte(buf), 0o644); err != nil {
		return fmt.Errorf("write memory snapshot %q: %w", path, err)
	}
	return nil
}
