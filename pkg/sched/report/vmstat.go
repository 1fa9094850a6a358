package report

import (
	"bytes"
	"fmt"

	units "github.com/docker/go-units"

	"github.com/csopesy/schedcore/pkg/sched/clock"
	"github.com/csopesy/schedcore/pkg/sched/hostinfo"
	"github.com/csopesy/schedcore/pkg/sched/memory"
)

// VMStat renders the tick-clock and memory counters, plus a decorative line
// of real-host RAM context from hostinfo.Probe. The emulator's admission
// decisions never consult host RAM; this line exists purely so a reader can
// compare the emulated footprint against the machine it runs on.
func VMStat(snap memory.Snapshot, active, idle uint64, host hostinfo.HostMemory) string {
	var buf bytes.Buffer

	total := active + idle
	util := 0.0
	if total > 0 {
		util = float64(active) / float64(total) * 100
	}

	fmt.Fprintf(&buf, "active ticks:        %d\n", active)
	fmt.Fprintf(&buf, "idle ticks:          %d\n", idle)
	fmt.Fprintf(&buf, "cpu utilization:     %.2f%%\n", util)
	fmt.Fprintf(&buf, "memory used:         %s\n", units.BytesSize(float64(snap.Used)))
	fmt.Fprintf(&buf, "memory free:         %s\n", units.BytesSize(float64(snap.Free)))
	fmt.Fprintf(&buf, "memory total:        %s\n", units.BytesSize(float64(snap.MaxMemory)))
	fmt.Fprintf(&buf, "fragmentation (KB):  %.2f\n", snap.FragmentationKB)
	fmt.Fprintf(&buf, "pages paged in:      %d\n", snap.PagedIn)
	fmt.Fprintf(&buf, "pages paged out:     %d\n", snap.PagedOut)
	if host.TotalBytes > 0 {
		fmt.Fprintf(&buf, "host RAM (real):     %s\n", units.BytesSize(float64(host.TotalBytes)))
	}

	return buf.String()
}
