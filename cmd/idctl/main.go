package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/idctl/pkg/cli"
	"github.com/platinummonkey/idctl/pkg/config"
	"github.com/platinummonkey/idctl/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel(), observability.LogFormat(cfg.Observability.LogFormat), os.Stderr)

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing(), logger)
	if err != nil {
		logger.WithError(err).Warn("tracing disabled")
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Debug("failed to flush traces")
		}
	}()

	app, closeApp, err := cli.NewApp(ctx, cfg, cli.Deps{
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		In:       os.Stdin,
		Out:      os.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := closeApp(); err != nil {
			logger.WithError(err).Warn("failed to close session store")
		}
	}()

	// Create root command
	rootCmd := cli.NewRootCommand(app)

	// Execute command
	return rootCmd.Execute(ctx, os.Args[1:])
}
