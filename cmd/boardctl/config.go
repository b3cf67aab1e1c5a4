package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	core "github.com/goliatone/go-dashboard-builder/components/builder"
	"github.com/goliatone/go-dashboard-builder/pkg/builder"
)

// Globals are shared by every subcommand.
type Globals struct {
	Env             string     `name:"env" env:"BOARD_ENV" default:"development" enum:"development,production" help:"Runtime environment (development, production)."`
	LogLevel        string     `name:"log-level" env:"BOARD_LOG_LEVEL" default:"info" help:"Minimum log level."`
	CatalogManifest string     `name:"catalog-manifest" env:"BOARD_CATALOG_MANIFEST" type:"path" help:"YAML catalog manifest; the built-in engins catalog when empty."`
	Store           storeFlags `embed:"" prefix:"store-"`

	Stdout io.Writer `kong:"-"`
	Stdin  io.Reader `kong:"-"`
}

type storeFlags struct {
	Driver        string `env:"BOARD_STORE_DRIVER" default:"file" enum:"memory,file,sqlite,duckdb,postgres,mongo" help:"Storage backend."`
	DSN           string `name:"dsn" env:"BOARD_STORE_DSN" default:"boards.json" help:"File path, SQL DSN, or MongoDB URI."`
	Key           string `env:"BOARD_STORE_KEY" default:"customDashboards" help:"Storage key holding the dashboard collection."`
	Versioned     bool   `env:"BOARD_STORE_VERSIONED" help:"Reject stale saves with a conflict."`
	MongoDatabase string `name:"mongo-database" env:"BOARD_MONGO_DATABASE" default:"boards" help:"MongoDB database name."`
}

func (g *Globals) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Globals) stdin() io.Reader {
	if g.Stdin == nil {
		return os.Stdin
	}
	return g.Stdin
}

// Logger builds a production or development zap logger for the environment.
func (g *Globals) Logger() (*zap.Logger, error) {
	var cfg zap.Config
	if g.Env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if g.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(g.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("boardctl: log level: %w", err)
		}
		cfg.Level = level
	}
	return cfg.Build()
}

// BuilderConfig maps the flags onto the builder facade.
func (g *Globals) BuilderConfig(logger *zap.Logger) builder.Config {
	return builder.Config{
		Store: builder.StoreConfig{
			Driver:    g.Store.Driver,
			DSN:       g.Store.DSN,
			Key:       g.Store.Key,
			Versioned: g.Store.Versioned,
			Database:  g.Store.MongoDatabase,
		},
		CatalogManifest: g.CatalogManifest,
		Telemetry:       core.ZapTelemetry{Logger: logger},
		Logger:          logger,
	}
}

func (g *Globals) open(ctx context.Context) (*builder.Builder, func(), error) {
	logger, err := g.Logger()
	if err != nil {
		return nil, nil, err
	}
	b, err := builder.New(ctx, g.BuilderConfig(logger))
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return b, func() {
		_ = b.Close()
		_ = logger.Sync()
	}, nil
}
