package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileCatalog serves a catalog manifest from disk and reloads it on change.
type FileCatalog struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	listing *CatalogListing
	lastErr error
}

// NewFileCatalog loads the manifest at path. A load failure is kept and
// surfaces from ListAvailable until a later reload succeeds.
func NewFileCatalog(path string, logger *zap.Logger) *FileCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &FileCatalog{path: path, logger: logger.Named("catalog")}
	_ = c.Reload()
	return c
}

// ListAvailable implements Catalog.
func (c *FileCatalog) ListAvailable() (CatalogListing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listing == nil {
		return CatalogListing{}, fmt.Errorf("builder: catalog %s: %v: %w", c.path, c.lastErr, ErrCatalogUnavailable)
	}
	cat, err := NewStaticCatalog(*c.listing)
	if err != nil {
		return CatalogListing{}, fmt.Errorf("builder: catalog %s: %v: %w", c.path, err, ErrCatalogUnavailable)
	}
	return cat.ListAvailable()
}

// Reload re-reads the manifest. On failure the previous listing stays active.
func (c *FileCatalog) Reload() error {
	doc, err := ReadManifest(c.path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		c.logger.Warn("catalog reload failed", zap.String("path", c.path), zap.Error(err))
		return err
	}
	listing := doc.Listing()
	c.listing = &listing
	c.lastErr = nil
	c.logger.Info("catalog loaded",
		zap.String("path", c.path),
		zap.Int("kpi", len(listing.KPI)),
		zap.Int("charts", len(listing.Charts)),
	)
	return nil
}

// Watch reloads the manifest whenever it is written, created, or renamed into
// place. It blocks until ctx is done.
func (c *FileCatalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("builder: catalog watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files by rename, so watch the directory.
	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("builder: watch %s: %w", dir, err)
	}
	target := filepath.Clean(c.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				_ = c.Reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("catalog watcher error", zap.Error(err))
		}
	}
}
