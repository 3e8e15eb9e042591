package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"strand/internal/daemon"
	"strand/internal/logging"
	"strand/internal/pipeline"
	"strand/internal/preflight"
	"strand/internal/runstore"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the strand daemon (pipeline workers + HTTP API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeProcess(cmd, ctx)
		},
	}
}

func runServeProcess(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "strand.log")
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if !result.Passed {
			logger.Warn("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
		}
	}

	store, err := runstore.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return err
	}

	manager := pipeline.NewManager(cfg, store, logger)
	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "strand daemon listening on %s\n", d.APIAddress())

	<-signalCtx.Done()
	logger.Info("strand daemon shutting down")
	return nil
}
