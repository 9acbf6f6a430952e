package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/faucetdb/acctd/internal/config"
	"github.com/faucetdb/acctd/internal/store"
)

// loadConfig decodes the effective configuration: flags, ACCTD_* environment,
// config file and defaults, in that order of precedence.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func newLogger(cfg *config.Config, dev bool) *slog.Logger {
	return cfg.Logging.NewLogger(os.Stderr, dev)
}

// openStore opens the account store and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	st, err := store.New(ctx, cfg.StoreOptions(logger))
	if err != nil {
		return nil, fmt.Errorf("open account store (%s): %w", cfg.Store.Driver, err)
	}
	return st, nil
}

// quietLogger discards everything below warn, for one-shot commands.
func quietLogger(cfg *config.Config) *slog.Logger {
	l := cfg.Logging
	if l.Level == "debug" || l.Level == "info" {
		l.Level = "warn"
	}
	return l.NewLogger(os.Stderr, false)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
