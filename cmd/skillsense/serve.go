package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/skillsense/internal/pipeline"
	"github.com/jonathan/skillsense/internal/server"
	"github.com/jonathan/skillsense/internal/server/ratelimit"
	"github.com/jonathan/skillsense/internal/types"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start an HTTP server exposing extraction and gap analysis.
Rate limits are read from RATE_LIMIT_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			// Request logs are always on for the server.
			logger := newLogger(cmd.ErrOrStderr(), true)
			engine, err := pipeline.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer engine.Close() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if engine.Defaults().Mode == types.ModeSemantic {
				if err := engine.Warm(ctx); err != nil {
					logger.Warn("semantic requests will use fast mode", "error", err)
				}
			}

			srv := server.New(engine, server.Config{
				Port:      cfg.Port,
				RateLimit: ratelimit.ConfigFromEnv(os.Getenv),
				Logger:    logger,
			})
			return srv.Start(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default 8080)")
	return cmd
}
