package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sohan284/social-media-go/internal/static"
)

// NewCollectStaticCommand creates the collectstatic command
func NewCollectStaticCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "collectstatic",
		Short: "Gather static assets into the serving root",
		RunE: func(cmd *cobra.Command, args []string) error {
			confPath, _ := cmd.Flags().GetString("config")

			_, extras, log, cleanup, err := load(confPath)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := static.Collect(extras.Static.SourceDirs, extras.Static.Root)
			if err != nil {
				return err
			}

			log.Info(context.Background(), "Static assets collected",
				"copied", result.Copied, "skipped", result.Skipped, "root", extras.Static.Root)
			return nil
		},
	}
}
