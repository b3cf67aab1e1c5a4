package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-dashboard-builder/pkg/kv"
	"github.com/goliatone/go-dashboard-builder/pkg/kv/mongokv"
	"github.com/goliatone/go-dashboard-builder/pkg/kv/sqlkv"
)

// Storage drivers accepted by OpenBackend.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// StoreConfig selects and configures the storage backend. SQL drivers must be
// registered by the binary through blank imports.
type StoreConfig struct {
	Driver    string
	DSN       string
	Key       string
	Versioned bool
	// Database and Collection apply to the mongo driver.
	Database   string
	Collection string
}

// OpenBackend opens the configured kv backend.
func OpenBackend(ctx context.Context, cfg StoreConfig) (kv.Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", DriverMemory:
		return kv.NewMemory(), nil
	case DriverFile:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("builder: file driver requires a path")
		}
		return kv.NewFile(cfg.DSN)
	case DriverMongo:
		return mongokv.Connect(ctx, mongokv.Options{
			URI:        cfg.DSN,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		})
	case DriverSQLite, DriverDuckDB, DriverPostgres:
		dialect, err := sqlkv.DialectFor(driver)
		if err != nil {
			return nil, err
		}
		return sqlkv.Open(ctx, dialect, cfg.DSN)
	default:
		return nil, fmt.Errorf("builder: unknown store driver %q", cfg.Driver)
	}
}
