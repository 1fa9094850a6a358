// Command schedulerctl runs the scheduling/memory-admission emulator as a
// single foreground process.
//
// The original emulator's command surface (initialize, scheduler-test,
// scheduler-stop, process-smi, vmstat, report-util, exit) was built around
// an interactive shell reading one command at a time from stdin. That shell
// is explicitly out of scope here, so its commands are re-expressed as a
// single long-running `run` subcommand: initialize and scheduler-test
// happen at startup, process-smi/vmstat/report-util are periodic output
// rather than on-demand queries, scheduler-stop is triggered by SIGUSR2,
// and exit is cooperative shutdown on SIGINT/SIGTERM.
package main

import (
	"fmt"
	"os"

	"github.com/csopesy/schedcore/cmd/schedulerctl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
