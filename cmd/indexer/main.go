package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "NFA on-chain event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and exit",
		RunE:  runSync,
	}
	addSyncFlags(syncCmd)
	root.AddCommand(syncCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync API and run the periodic scheduler",
		RunE:  runServe,
	}
	addSyncFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("sync-interval", time.Minute, "periodic sync interval")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "chain RPC URL")
	cmd.Flags().String("identity-registry", "", "identity registry contract address")
	cmd.Flags().String("nfa-registry", "", "trainer NFA contract address (optional)")
	cmd.Flags().String("reputation-registry", "", "reputation registry contract address (optional)")
	cmd.Flags().Uint64("deploy-block", 0, "contract deploy block, used when no checkpoint exists")
	cmd.Flags().Uint64("window", 1000, "max blocks per run before range negotiation")
	cmd.Flags().Uint64("min-range", 50, "range negotiation floor in blocks")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (empty runs with the in-memory store)")
	cmd.Flags().Int("max-retries", 5, "transport retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial transport retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
