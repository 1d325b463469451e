package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/sohan284/social-media-go/internal/data"
)

// NewDoctorCommand creates the doctor command, which probes the
// configured backends and reports what it finds.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity to the database and broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			confPath, _ := cmd.Flags().GetString("config")

			cfg, extras, log, cleanup, err := load(confPath)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			d, err := data.New(cfg.Data.Database.Master.Driver, cfg.Data.Database.Master.Source, log)
			if err != nil {
				return err
			}
			defer d.Close()
			log.Info(ctx, "Database reachable")

			if extras.Redis.Addr == "" {
				log.Warn(ctx, "No broker configured, realtime fan-out and caching disabled")
				return nil
			}

			err = d.ConnectRedis(ctx, &data.RedisOptions{
				Addr:     extras.Redis.Addr,
				Username: extras.Redis.Username,
				Password: extras.Redis.Password,
				DB:       extras.Redis.DB,
			}, log)
			if err != nil {
				log.Warn(ctx, "Broker unreachable", "error", err)
				return nil
			}
			log.Info(ctx, "Broker reachable")
			return nil
		},
	}
}
