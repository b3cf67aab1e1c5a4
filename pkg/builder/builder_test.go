package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/goliatone/go-dashboard-builder/components/builder"
)

func TestNewWithMemoryStore(t *testing.T) {
	b, err := New(context.Background(), Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	doc, err := b.Controller.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.StarterDashboardID, doc.ID)
	assert.NoError(t, b.WatchCatalog(context.Background()))
}

func TestNewWithFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boards.json")
	cfg := Config{Store: StoreConfig{Driver: DriverFile, DSN: path}}

	b, err := New(context.Background(), cfg)
	require.NoError(t, err)
	_, err = b.Controller.Create(context.Background(), "Atelier")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	reopened, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	assert.Len(t, reopened.Controller.List(context.Background()), 2)
}

func TestNewWithManifestCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`version: "1"
kpi:
  - title: Heures moteur
    value: "1 200 h"
    description: Cumul mensuel
charts: []
`), 0o644))

	b, err := New(context.Background(), Config{CatalogManifest: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	listing, err := b.Controller.Catalog()
	require.NoError(t, err)
	require.Len(t, listing.KPI, 1)
	assert.Equal(t, "heuresMoteur", listing.KPI[0].ID)
}

func TestOpenBackendRejectsUnknownDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), StoreConfig{Driver: "redis"})
	assert.Error(t, err)
	_, err = OpenBackend(context.Background(), StoreConfig{Driver: DriverFile})
	assert.Error(t, err)
}
