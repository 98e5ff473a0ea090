package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentScope/internal/config"
	"agentScope/internal/server"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	srv := server.New(d.runner, d.store, logger)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
	}

	go runScheduler(ctx, srv, cfg.SyncInterval, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
	}()

	logger.Info("serving",
		zap.String("listen", cfg.Listen),
		zap.Duration("sync_interval", cfg.SyncInterval),
	)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runScheduler(ctx context.Context, srv *server.Server, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := srv.RunOnce(ctx)
			if err != nil {
				if errors.Is(err, server.ErrSyncInProgress) {
					continue
				}
				logger.Error("scheduled sync failed", zap.Error(err))
				continue
			}
			if summary.Synced > 0 {
				logger.Info("scheduled sync applied events",
					zap.Int("synced", summary.Synced),
					zap.Uint64("to", summary.ToBlock),
				)
			}
		}
	}
}
