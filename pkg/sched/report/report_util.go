package report

import (
	"os"

	"github.com/csopesy/schedcore/pkg/sched/memory"
	"github.com/csopesy/schedcore/pkg/sched/scheduling"
)

// DefaultReportPath is where report-util writes its snapshot, per spec.md
// §6 ("Report file (csopesy-log.txt): same text as process_smi printed to
// stdout").
const DefaultReportPath = "csopesy-log.txt"

// WriteReportUtil writes the current process-smi text (including its
// aggregate CPU utilization line, spec.md's "SUPPLEMENTED FEATURES") to
// path, overwriting any previous contents.
func WriteReportUtil(path string, cores []scheduling.CoreStatus, snap memory.Snapshot, active, idle uint64) error {
	if path == "" {
		path = DefaultReportPath
	}
	return os.WriteFile(path, []byte(ProcessSMI(cores, snap, active, idle)), 0o644)
}
