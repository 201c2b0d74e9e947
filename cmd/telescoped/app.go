package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-errors/errors"

	"github.com/strrl/telescope-dashboard/pkg/config"
	"github.com/strrl/telescope-dashboard/pkg/querier"
	"github.com/strrl/telescope-dashboard/pkg/store"
)

// loadConfig reads the config file and applies the persistent flag
// overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if dbDSN != "" {
		cfg.Storage.DSN = dbDSN
	}
	if driver != "" {
		cfg.Storage.Driver = driver
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.Log.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func openStore(ctx context.Context, cfg *config.Config) (*store.SQLStore, error) {
	s, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, errors.Errorf("store: %w", err)
	}
	return s, nil
}

func newQuerier(s store.Store, cfg *config.Config) *querier.Querier {
	return querier.NewQuerier(s, querier.Config{
		PerPage:     cfg.PerPage,
		MaxPerPage:  cfg.MaxPerPage,
		RouteGroups: cfg.RouteGroups,
	})
}

// setup loads config, logging and the store for a command.
func setup(ctx context.Context) (*config.Config, *store.SQLStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	newLogger(cfg)
	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}
