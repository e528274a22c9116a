package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/app"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/logger"
)

func main() {
	// Initialize structured logger
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, logger)
	if err != nil {
		return err
	}

	if err := a.Settings.Seed(ctx); err != nil {
		logger.Warn("failed to seed settings, defaults will be served", "error", err)
	}

	if cfg.EnableWorkers {
		consumers, err := app.StartConsumers(cfg, a)
		if err != nil {
			return err
		}
		defer func() {
			for _, c := range consumers {
				c.Stop()
				<-c.StopChan
			}
		}()
	}

	if !cfg.EnableAPI {
		logger.Info("API disabled, running workers only")
		<-ctx.Done()
		return nil
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
