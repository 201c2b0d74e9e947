package store

import (
	"context"

	"github.com/go-errors/errors"
)

// Supported storage drivers.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// Drivers lists the supported storage drivers.
var Drivers = []string{DriverDuckDB, DriverSQLite}

// Open connects to the named driver and initializes the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var (
		s   *SQLStore
		err error
	)
	switch driver {
	case DriverDuckDB:
		s, err = NewDuckDBStore(dsn)
	case DriverSQLite:
		s, err = NewSQLiteStore(dsn)
	default:
		return nil, errors.Errorf("unknown storage driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
