package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"
	"github.com/spf13/cobra"

	"github.com/sohan284/social-media-go/internal/conf"
	"github.com/sohan284/social-media-go/internal/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			confPath, _ := cmd.Flags().GetString("config")

			cfg, extras, log, cleanup, err := load(confPath)
			if err != nil {
				return err
			}
			defer cleanup()

			if cmd.Flags().Changed("bind") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			srv, err := server.NewServer(cfg, extras, log)
			if err != nil {
				return fmt.Errorf("failed to build server: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&host, "bind", "b", "", "listen address override")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port override")
	return cmd
}

func load(confPath string) (*config.Config, *conf.Extras, *logger.Logger, func(), error) {
	cfg, err := config.LoadConfig(confPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	extras, err := conf.LoadExtras(confPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	cleanup, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, extras, logger.StdLogger(), cleanup, nil
}
