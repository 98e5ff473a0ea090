package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL             string
	IdentityRegistry   string
	NFARegistry        string
	ReputationRegistry string
	DeployBlock        uint64
	Window             uint64
	MinRange           uint64
	PGDSN              string
	Listen             string
	SyncInterval       time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	LogLevel           string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("window", uint64(1000))
	v.SetDefault("min-range", uint64(50))
	v.SetDefault("listen", ":8080")
	v.SetDefault("sync-interval", time.Minute)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc"),
		IdentityRegistry:   v.GetString("identity-registry"),
		NFARegistry:        v.GetString("nfa-registry"),
		ReputationRegistry: v.GetString("reputation-registry"),
		DeployBlock:        v.GetUint64("deploy-block"),
		Window:             v.GetUint64("window"),
		MinRange:           v.GetUint64("min-range"),
		PGDSN:              v.GetString("pg-dsn"),
		Listen:             v.GetString("listen"),
		SyncInterval:       v.GetDuration("sync-interval"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		LogLevel:           v.GetString("log-level"),
	}

	return cfg, nil
}
