package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/csopesy/schedcore/pkg/sched/config"
	"github.com/csopesy/schedcore/pkg/sched/hostinfo"
	"github.com/csopesy/schedcore/pkg/sched/logging"
	"github.com/csopesy/schedcore/pkg/sched/memory"
	"github.com/csopesy/schedcore/pkg/sched/report"
	"github.com/csopesy/schedcore/pkg/sched/scheduling"
	"github.com/csopesy/schedcore/pkg/sched/store"
)

// reportSnapshotter adapts pkg/sched/report into the scheduling package's
// narrow SliceSnapshotter interface, so the scheduling package itself never
// imports report (which imports scheduling for CoreStatus).
type reportSnapshotter struct{}

func (reportSnapshotter) WriteMemorySnapshot(n uint64, snap memory.Snapshot) error {
	return report.WriteMemorySnapshot(n, snap)
}

func newRunCmd() *cobra.Command {
	var (
		configPath     string
		backingStore   string
		reportPath     string
		idleSample     time.Duration
		reportInterval time.Duration
		logLevel       string
	)

	c := &cobra.Command{
		Use:   "run",
		Short: "Initialize and run the scheduler until interrupted",
		Long: `run initializes the scheduler from a configuration file, starts the
Dispatcher and idle-sampler, begins process generation immediately (the
equivalent of "scheduler-test"), and prints a process-smi/vmstat report on
a fixed interval until interrupted.

Send SIGUSR2 to stop process generation without stopping the scheduler
(the equivalent of "scheduler-stop"); send SIGINT or SIGTERM for a clean
shutdown (the equivalent of "exit").`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd, runOptions{
				configPath:     configPath,
				backingStore:   backingStore,
				reportPath:     reportPath,
				idleSample:     idleSample,
				reportInterval: reportInterval,
				logLevel:       logLevel,
			})
		},
	}

	c.Flags().StringVar(&configPath, "config", "scheduler.conf", "path to the configuration file")
	c.Flags().StringVar(&backingStore, "backing-store", store.DefaultPath, "path to the backing-store file")
	c.Flags().StringVar(&reportPath, "report-util-path", report.DefaultReportPath, "path report-util writes to")
	c.Flags().DurationVar(&idleSample, "idle-sample-period", 10*time.Millisecond, "idle-sampler period")
	c.Flags().DurationVar(&reportInterval, "report-interval", 2*time.Second, "process-smi/vmstat/report-util print interval")
	c.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return c
}

type runOptions struct {
	configPath     string
	backingStore   string
	reportPath     string
	idleSample     time.Duration
	reportInterval time.Duration
	logLevel       string
}

func runScheduler(cmd *cobra.Command, opts runOptions) error {
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logging.NewDefault(cmd.ErrOrStderr(), level)

	parsed, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	var snapshotter scheduling.SliceSnapshotter
	if parsed.Policy == scheduling.RR {
		snapshotter = reportSnapshotter{}
	}

	sched, err := scheduling.New(log, scheduling.Config{
		NumCores:         parsed.NumCores,
		Policy:           parsed.Policy,
		TimeSlice:        parsed.TimeSlice,
		DelayPerExec:     parsed.DelayPerExec,
		BatchFreq:        parsed.BatchFreq,
		MinInstructions:  parsed.MinInstructions,
		MaxInstructions:  parsed.MaxInstructions,
		MinMemory:        parsed.MinMemPerProc,
		MaxMemory:        parsed.MaxMemPerProc,
		Memory:           parsed.MemoryConfig(),
		BackingStorePath: opts.backingStore,
		IdleSamplePeriod: opts.idleSample,
		Snapshotter:      snapshotter,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	if err := sched.BeginGeneration(); err != nil {
		return err
	}

	stopGen := make(chan os.Signal, 1)
	signal.Notify(stopGen, syscall.SIGUSR2)
	defer signal.Stop(stopGen)

	host := hostinfo.Probe(log)
	reportDone := make(chan struct{})
	go func() {
		defer close(reportDone)
		ticker := time.NewTicker(opts.reportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopGen:
				sched.StopGeneration()
			case <-ticker.C:
				printReport(cmd, sched, opts.reportPath, host)
			}
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping scheduler")
	err = sched.Stop()
	<-reportDone
	printReport(cmd, sched, opts.reportPath, host)
	return err
}

func printReport(cmd *cobra.Command, sched *scheduling.Scheduler, reportPath string, host hostinfo.HostMemory) {
	snap := sched.Memory().Snapshot()
	cores := sched.Dispatcher().CoreStatuses()
	active, idle := sched.Clock().Snapshot()

	cmd.Println(report.ProcessSMI(cores, snap, active, idle))
	cmd.Println(report.VMStat(snap, active, idle, host))

	if err := report.WriteReportUtil(reportPath, cores, snap, active, idle); err != nil {
		cmd.PrintErrf("report-util: %v\n", err)
	}
}
