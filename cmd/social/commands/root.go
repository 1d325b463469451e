// Package commands defines the CLI entrypoints.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "social",
		Short: "Social platform API server",
	}

	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "path to the configuration file")

	rootCmd.AddCommand(
		NewServeCommand(),
		NewMigrateCommand(),
		NewCollectStaticCommand(),
		NewDoctorCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}
