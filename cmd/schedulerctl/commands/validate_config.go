package commands

import (
	"github.com/spf13/cobra"

	"github.com/csopesy/schedcore/pkg/sched/config"
)

func newValidateConfigCmd() *cobra.Command {
	var path string
	c := &cobra.Command{
		Use:   "validate-config",
		Short: "Parse and validate a configuration file without starting the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			cmd.Printf("ok: %d cores, policy=%v, max-overall-mem=%d, mem-per-frame=%d\n",
				cfg.NumCores, cfg.Policy, cfg.MaxOverallMem, cfg.MemPerFrame)
			return nil
		},
	}
	c.Flags().StringVar(&path, "config", "scheduler.conf", "path to the configuration file")
	return c
}
