// Package builder is the public entry point: it re-exports the core types and
// assembles a ready controller from storage and catalog settings.
package builder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	core "github.com/goliatone/go-dashboard-builder/components/builder"
	"github.com/goliatone/go-dashboard-builder/pkg/kv"
)

// Controller exposes the underlying components/builder.Controller type.
type Controller = core.Controller

// DashboardDocument re-export for convenience.
type DashboardDocument = core.DashboardDocument

// WidgetConfig re-export for convenience.
type WidgetConfig = core.WidgetConfig

// DashboardEvent re-export for convenience.
type DashboardEvent = core.DashboardEvent

// Config assembles a Builder.
type Config struct {
	Store StoreConfig
	// CatalogManifest points at a YAML manifest. Empty means the built-in catalog.
	CatalogManifest string
	Telemetry       core.Telemetry
	Logger          *zap.Logger
}

// Builder bundles the assembled collaborators.
type Builder struct {
	Backend    kv.Backend
	Store      *core.DocumentStore
	Catalog    core.Catalog
	Events     *core.BroadcastHook
	Controller *core.Controller

	files  *core.FileCatalog
	logger *zap.Logger
}

// New opens the backend and builds the store, catalog, and controller.
func New(ctx context.Context, cfg Config) (*Builder, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	backend, err := OpenBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	b := &Builder{Backend: backend, Events: core.NewBroadcastHook(), logger: cfg.Logger}

	if cfg.CatalogManifest != "" {
		b.files = core.NewFileCatalog(cfg.CatalogManifest, cfg.Logger)
		b.Catalog = b.files
	} else {
		static, err := core.NewDefaultCatalog()
		if err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("builder: default catalog: %w", err)
		}
		b.Catalog = static
	}

	validator := core.NewJSONSchemaValidator()
	b.Store = core.NewDocumentStore(core.StoreOptions{
		Backend:   backend,
		Key:       cfg.Store.Key,
		Logger:    cfg.Logger,
		Versioned: cfg.Store.Versioned,
		Validator: validator,
	})
	b.Controller = core.NewController(ctx, core.ControllerOptions{
		Store:       b.Store,
		Engine:      core.NewEngine(core.EngineOptions{Catalog: b.Catalog, Validator: validator}),
		RefreshHook: b.Events,
		Telemetry:   cfg.Telemetry,
		Logger:      cfg.Logger,
	})
	return b, nil
}

// WatchCatalog hot-reloads a manifest catalog until ctx is done. It returns
// immediately for the built-in catalog.
func (b *Builder) WatchCatalog(ctx context.Context) error {
	if b.files == nil {
		return nil
	}
	return b.files.Watch(ctx)
}

// Close releases the backend.
func (b *Builder) Close() error {
	if b == nil || b.Backend == nil {
		return nil
	}
	if err := b.Backend.Close(); err != nil {
		return fmt.Errorf("builder: close backend: %w", err)
	}
	return nil
}
