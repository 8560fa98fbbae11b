package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"animesync/internal/api"
	"animesync/internal/config"
	"animesync/internal/pipeline"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	addr := flag.String("addr", "", "HTTP listen address (defaults to :$PORT or :8080)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	secret := os.Getenv("ANIMESYNC_TRIGGER_KEY")
	if secret == "" {
		log.Fatal("ANIMESYNC_TRIGGER_KEY must be set")
	}

	logger := config.NewLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(pipeline.FromConfig(*cfg, logger), secret, logger)

	httpServer := &http.Server{
		Addr:    resolveAddr(*addr),
		Handler: server,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}()

	logger.Info("admin server listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("admin server stopped")
}

func resolveAddr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}
