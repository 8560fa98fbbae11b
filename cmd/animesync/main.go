package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"animesync/internal/config"
	"animesync/internal/pipeline"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := pipeline.FromConfig(*cfg, logger).Run(ctx)
	if err != nil {
		logger.Error("run failed", "error", err, "report", report)
		os.Exit(1)
	}
	logger.Info("run finished",
		"matched", report.Matched,
		"submitted", report.Submitted,
		"failed", report.Failed,
		"duration", report.Duration.String(),
	)
}
