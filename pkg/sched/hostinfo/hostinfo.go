// Package hostinfo reports the real host's memory total, purely as
// informational context for vmstat-style reporting. It never influences the
// emulator's admission decisions, which always follow the configured
// maxMemory.
//
// Grounded on the teacher's pkg/inference/memory/system.go, which wraps
// elastic/go-sysinfo the same way to learn real host RAM size.
package hostinfo

import (
	"github.com/csopesy/schedcore/pkg/sched/logging"
	sysinfo "github.com/elastic/go-sysinfo"
)

// HostMemory reports the real total host RAM, in bytes. A value of 0
// indicates it could not be determined.
type HostMemory struct {
	TotalBytes uint64
}

// Probe queries the host for its total RAM. Failures are logged and reported
// as a zero total rather than propagated, since this information is purely
// decorative for reports.
func Probe(log logging.Logger) HostMemory {
	host, err := sysinfo.Host()
	if err != nil {
		log.Warnf("could not read host info: %v", err)
		return HostMemory{}
	}
	mem, err := host.Memory()
	if err != nil {
		log.Warnf("could not read host memory: %v", err)
		return HostMemory{}
	}
	return HostMemory{TotalBytes: mem.Total}
}
