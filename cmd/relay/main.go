// Command relay runs the notification relay: the inbound router, the
// per-channel consumers, and the status API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifyrelay/pkg/config"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Env, "notifyrelay"),
		logger.WithLevelName(cfg.LogLevel),
		logger.WithContextExtractors(requestID),
	)
	logger.SetAsDefault(log)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "relay failed to start", logger.Error(err))
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			log.LogAttrs(context.Background(), slog.LevelWarn, "closing connections", logger.Error(err))
		}
	}()

	return a.run(ctx)
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// requestID tags status API log records with the id set by the router's
// RequestID middleware.
func requestID(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return slog.String("request_id", id), true
	}
	return slog.Attr{}, false
}
