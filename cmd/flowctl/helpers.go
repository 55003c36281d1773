package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"flowtrack/internal/backend"
	"flowtrack/internal/config"
	"flowtrack/internal/core"
)

// loadConfig starts from the environment and applies flag overrides.
func loadConfig() (*config.Config, *time.Location, error) {
	cfg := config.Load()
	overrides := map[string]*string{
		"data_backend":     &cfg.DataBackend,
		"sqlite_db_path":   &cfg.SQLiteDBPath,
		"memory_seed_file": &cfg.MemorySeedFile,
		"timezone":         &cfg.Timezone,
		"log_level":        &cfg.LogLevel,
	}
	for key, field := range overrides {
		if viper.IsSet(key) {
			*field = viper.GetString(key)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loc, nil
}

// openBackend builds the configured store. Callers must Close the result.
func openBackend(ctx context.Context) (*backend.Backend, *time.Location, error) {
	cfg, loc, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg, loc)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(nil).Open(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	return res, loc, nil
}

// loadTransactions reads every transaction of the selected owner.
func loadTransactions(ctx context.Context) ([]core.Transaction, *time.Location, error) {
	res, loc, err := openBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer res.Close()

	txs, err := res.Store.ListTransactions(ctx, owner())
	if err != nil {
		return nil, nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, loc, nil
}

func owner() string {
	return viper.GetString("flowctl_owner")
}

// asOf parses --date, defaulting to the current time in loc.
func asOf(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Now().In(loc), nil
	}
	t, err := core.ParseDate(value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", value, err)
	}
	return t, nil
}
