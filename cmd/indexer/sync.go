package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentScope/internal/chain"
	"agentScope/internal/config"
	"agentScope/internal/indexer"
	"agentScope/internal/storage"
	"agentScope/internal/storage/postgres"
)

type deps struct {
	chain  *chain.Client
	store  storage.Store
	pg     *postgres.Store
	runner *indexer.Runner
}

func (d *deps) Close() {
	if d.chain != nil {
		d.chain.Close()
	}
	if d.pg != nil {
		d.pg.Close()
	}
}

func buildDeps(ctx context.Context, cfg config.Config, logger *zap.Logger) (*deps, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	identity, err := indexer.ParseAddress(cfg.IdentityRegistry)
	if err != nil {
		return nil, fmt.Errorf("identity registry: %w", err)
	}
	trainer, err := indexer.ParseOptionalAddress(cfg.NFARegistry)
	if err != nil {
		return nil, fmt.Errorf("nfa registry: %w", err)
	}
	reputation, err := indexer.ParseOptionalAddress(cfg.ReputationRegistry)
	if err != nil {
		return nil, fmt.Errorf("reputation registry: %w", err)
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.MaxRetries, cfg.RetryBackoff)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	d := &deps{chain: chainClient}

	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			pgStore.Close()
			d.Close()
			return nil, err
		}
		d.pg = pgStore
		d.store = pgStore
	} else {
		logger.Warn("no pg-dsn configured, projections held in memory only")
		d.store = storage.NewMemoryStore()
	}

	runner, err := indexer.NewRunner(indexer.RunConfig{
		IdentityRegistry:   identity,
		TrainerNFA:         trainer,
		ReputationRegistry: reputation,
		DeployBlock:        cfg.DeployBlock,
		Window:             cfg.Window,
		MinRange:           cfg.MinRange,
	}, chainClient, d.store, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.runner = runner

	return d, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
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

	summary, err := d.runner.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("sync finished",
		zap.String("run_id", summary.RunID),
		zap.Int("synced", summary.Synced),
		zap.Uint64("from", summary.FromBlock),
		zap.Uint64("to", summary.ToBlock),
	)
	return nil
}
