package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevross-git/orchestrator/internal/config"
	"github.com/stevross-git/orchestrator/internal/logging"
	"github.com/stevross-git/orchestrator/internal/orchestrator"
	"github.com/stevross-git/orchestrator/pkg/api"
)

func serveCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator and its control API",
		Long: `Starts the node registry, task store, scheduler and recovery manager,
then serves the REST+WebSocket control API until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file path (defaults to ./orchestrator.yaml if present)")

	return cmd
}

func runServe(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logging.Component(logger, "main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(cfg, logger)
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	server := api.New(cfg, orch, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(ctx)
	}()

	log.WithField("listen", cfg.Listen).Info("orchestrator serving")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			orch.Stop()
			return fmt.Errorf("api server: %w", err)
		}
	}

	orch.Stop()
	return nil
}
