// Package report renders the emulator's read-only reports: process-smi (a
// resident-process table), vmstat (tick/memory counters plus real-host
// context), report-util (process-smi persisted to a file), and the RR
// time-slice memory-map snapshot.
//
// Table rendering follows the teacher's psTable
// (cmd/cli/commands/ps.go): a borderless olekukonko/tablewriter table
// written into a bytes.Buffer and returned as a string, with sizes rendered
// through github.com/docker/go-units.
package report

import (
	"bytes"
	"fmt"

	units "github.com/docker/go-units"
	"github.com/olekukonko/tablewriter"

	"github.com/csopesy/schedcore/pkg/sched/memory"
	"github.com/csopesy/schedcore/pkg/sched/scheduling"
)

// ProcessSMI renders a table of every core slot (its bound pid, if any) and
// every resident process's memory status, in the style of `nvidia-smi`.
// active and idle are the Tick Clock's counters, used to print an aggregate
// CPU utilization figure the same way the original emulator's
// MemoryManager::getMemoryUtil prints a single float percentage for memory.
func ProcessSMI(cores []scheduling.CoreStatus, snap memory.Snapshot, active, idle uint64) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Cores: %d\n", len(cores)))
	coreTable := tablewriter.NewWriter(&buf)
	coreTable.SetHeader([]string{"CORE", "STATUS", "PID", "NAME"})
	coreTable.SetBorder(false)
	coreTable.SetColumnSeparator("")
	coreTable.SetHeaderLine(false)
	coreTable.SetTablePadding("  ")
	coreTable.SetNoWhiteSpace(true)
	coreTable.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
	})
	coreTable.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, c := range cores {
		status := "idle"
		pid := ""
		name := ""
		if !c.Available {
			status = "busy"
			pid = fmt.Sprintf("%d", c.PID)
			name = c.Name
		}
		coreTable.Append([]string{fmt.Sprintf("%d", c.CoreID), status, pid, name})
	}
	coreTable.Render()

	buf.WriteString(fmt.Sprintf("\nMemory: %s used / %s total (%.1f%%)\n",
		units.BytesSize(float64(snap.Used)), units.BytesSize(float64(snap.MaxMemory)), snap.UtilizationPct))

	cpuUtil := 0.0
	if total := active + idle; total > 0 {
		cpuUtil = float64(active) / float64(total) * 100
	}
	buf.WriteString(fmt.Sprintf("CPU utilization: %.1f%% (active=%d idle=%d)\n", cpuUtil, active, idle))

	procTable := tablewriter.NewWriter(&buf)
	procTable.SetHeader([]string{"PID", "NAME", "STATUS", "SIZE", "AGE"})
	procTable.SetBorder(false)
	procTable.SetColumnSeparator("")
	procTable.SetHeaderLine(false)
	procTable.SetTablePadding("  ")
	procTable.SetNoWhiteSpace(true)
	procTable.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
	})
	procTable.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, r := range snap.Residents {
		procTable.Append([]string{
			fmt.Sprintf("%d", r.PID),
			r.Name,
			r.Status.String(),
			units.BytesSize(float64(r.Size)),
			fmt.Sprintf("%d", r.Age),
		})
	}
	procTable.Render()

	return buf.String()
}
