package commands

import (
	"context"

	"github.com/spf13/cobra"

	accountrepo "github.com/sohan284/social-media-go/core/account/data/repository"

	chatrepo "github.com/sohan284/social-media-go/biz/chat/data/repository"
	communityrepo "github.com/sohan284/social-media-go/biz/community/data/repository"
	interestrepo "github.com/sohan284/social-media-go/biz/interest/data/repository"
	marketrepo "github.com/sohan284/social-media-go/biz/marketplace/data/repository"
	notifrepo "github.com/sohan284/social-media-go/biz/notification/data/repository"
	postrepo "github.com/sohan284/social-media-go/biz/post/data/repository"

	"github.com/sohan284/social-media-go/internal/data"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		Aliases: []string{"m"},
		Short:   "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			confPath, _ := cmd.Flags().GetString("config")

			cfg, _, log, cleanup, err := load(confPath)
			if err != nil {
				return err
			}
			defer cleanup()

			d, err := data.New(cfg.Data.Database.Master.Driver, cfg.Data.Database.Master.Source, log)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx := context.Background()
			db := d.DB()

			initers := []func() error{
				func() error { _, _, _, err := accountrepo.NewRepositories(db); return err },
				func() error { _, _, err := interestrepo.NewRepositories(db); return err },
				func() error { _, _, err := postrepo.NewRepositories(db); return err },
				func() error { _, err := notifrepo.NewRepository(db); return err },
				func() error { _, err := communityrepo.NewRepository(db); return err },
				func() error { _, err := chatrepo.NewRepository(db); return err },
				func() error { _, _, _, _, err := marketrepo.NewRepositories(db); return err },
			}
			for _, init := range initers {
				if err := init(); err != nil {
					return err
				}
			}

			log.Info(ctx, "Schema is up to date")
			return nil
		},
	}
}
