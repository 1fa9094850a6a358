package commands

import "github.com/spf13/cobra"

// NewRootCmd assembles the schedulerctl command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "schedulerctl",
		Short: "Multi-core scheduler and memory-admission emulator",
	}
	rootCmd.AddCommand(
		newRunCmd(),
		newValidateConfigCmd(),
	)
	return rootCmd
}
