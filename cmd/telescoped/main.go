package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/strrl/telescope-dashboard/pkg/store"
	"github.com/strrl/telescope-dashboard/pkg/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configFile string
	dbDSN      string
	driver     string
	logLevel   string
)

func main() {
	// Load .env file if present (does not override existing env vars)
	_ = godotenv.Load()

	flush, err := tracing.Init(context.Background(), version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracing disabled: %v\n", err)
		flush = func() {}
	}

	root := &cobra.Command{
		Use:          "telescoped",
		Short:        "Telescope entry dashboard",
		Long:         "telescoped serves a read-only search API over Laravel Telescope entries stored in DuckDB or SQLite.",
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&dbDSN, "db", "", "database DSN, overrides storage.dsn")
	root.PersistentFlags().StringVar(&driver, "driver", "", fmt.Sprintf("database driver %v, overrides storage.driver", store.Drivers))
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(serveCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(showCmd())
	root.AddCommand(filtersCmd())
	root.AddCommand(debugCmd())

	err = root.Execute()
	flush()

	if err != nil {
		os.Exit(1)
	}
}
