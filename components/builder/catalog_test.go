package builder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const sampleManifest = `
version: 1
name: engins-pack
kpi:
  - id: fleetSize
    title: Taille du parc
    value: "1,024"
    trend: "+2%"
    description: Engins enregistrés
  - title: Heures moteur
    value: "18k"
    description: Cumul mensuel
charts:
  - id: hoursBySite
    title: Heures par site
    type: bar
    data:
      - name: Nord
        value: 120
      - name: Sud
        value: 80.5
    colors: ["#111111"]
`

func TestDefaultCatalogListing(t *testing.T) {
	cat, err := NewStaticCatalog(DefaultCatalogListing())
	require.NoError(t, err)
	listing, err := cat.ListAvailable()
	require.NoError(t, err)

	entry, ok := listing.Find(WidgetKPI, "totalEquipments")
	require.True(t, ok)
	assert.Equal(t, "2,845", entry.Content.(KPIConfig).Value)

	types := map[string]ChartType{}
	for _, chart := range listing.Charts {
		types[chart.ID] = chart.Content.(ChartConfig).Type
	}
	assert.Equal(t, map[string]ChartType{
		"equipmentByType":    ChartBar,
		"monthlyUsage":       ChartLine,
		"fuelConsumption":    ChartArea,
		"statusDistribution": ChartPie,
		"maintenanceCosts":   ChartComposed,
	}, types)
}

func TestStaticCatalogListIsDeterministicAndDetached(t *testing.T) {
	cat, err := NewStaticCatalog(DefaultCatalogListing())
	require.NoError(t, err)

	first, err := cat.ListAvailable()
	require.NoError(t, err)
	first.Charts[0].Content.(ChartConfig).Data[0]["value"] = 0.0

	second, err := cat.ListAvailable()
	require.NoError(t, err)
	assert.Equal(t, 540.0, second.Charts[0].Content.(ChartConfig).Data[0]["value"])
	assert.Equal(t, []string{"activeEquipments", "maintenanceDue", "totalEquipments", "utilizationRate"}, cat.IDs(WidgetKPI))
}

func TestStaticCatalogRegisterValidates(t *testing.T) {
	cat, err := NewStaticCatalog(CatalogListing{})
	require.NoError(t, err)
	assert.ErrorIs(t, cat.Register(CatalogEntry{Title: "x", Content: KPIConfig{}}), ErrInvalidArgument)
	assert.ErrorIs(t, cat.Register(CatalogEntry{ID: "x"}), ErrUnsupportedWidget)
	require.NoError(t, cat.Register(CatalogEntry{ID: "x", Title: "X", Content: KPIConfig{Value: "1"}}))
	require.NoError(t, cat.Register(CatalogEntry{ID: "x", Title: "X2", Content: KPIConfig{Value: "2"}}))

	listing, err := cat.ListAvailable()
	require.NoError(t, err)
	require.Len(t, listing.KPI, 1)
	assert.Equal(t, "X2", listing.KPI[0].Title)
}

func TestCatalogHooksExtendDefaultCatalog(t *testing.T) {
	globalHookMu.Lock()
	saved := globalHooks
	globalHooks = nil
	globalHookMu.Unlock()
	t.Cleanup(func() {
		globalHookMu.Lock()
		globalHooks = saved
		globalHookMu.Unlock()
	})

	RegisterCatalogHook(func(cat *StaticCatalog) error {
		return cat.Register(CatalogEntry{ID: "idleHours", Title: "Heures d'arrêt", Content: KPIConfig{Value: "312"}})
	})
	cat, err := NewDefaultCatalog()
	require.NoError(t, err)
	listing, err := cat.ListAvailable()
	require.NoError(t, err)
	_, ok := listing.Find(WidgetKPI, "idleHours")
	assert.True(t, ok)
}

func TestCatalogEntryJSONFlattensPreview(t *testing.T) {
	data, err := json.Marshal(CatalogEntry{
		ID:      "totalEquipments",
		Title:   "Total",
		Content: KPIConfig{Value: "2,845", Description: "d"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"totalEquipments","title":"Total","value":"2,845","trend":null,"description":"d"}`, string(data))
}

func TestDecodeManifest(t *testing.T) {
	doc, err := DecodeManifest(strings.NewReader(sampleManifest))
	require.NoError(t, err)
	assert.Equal(t, "engins-pack", doc.Name)
	require.Len(t, doc.KPI, 2)
	assert.Equal(t, "heuresMoteur", doc.KPI[1].ID)
	require.NotNil(t, doc.KPI[0].Trend)
	assert.Equal(t, "+2%", *doc.KPI[0].Trend)

	listing := doc.Listing()
	chart, ok := listing.Find(WidgetChart, "hoursBySite")
	require.True(t, ok)
	cfg := chart.Content.(ChartConfig)
	assert.Equal(t, ChartBar, cfg.Type)
	assert.Equal(t, 120.0, cfg.Data[0]["value"])
	assert.Equal(t, "Nord", cfg.Data[0].Name())
}

func TestDecodeManifestRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "version: 1\nkpi:\n  - id: a\n    title: A\n    colour: red\n",
		"duplicate id":   "version: 1\nkpi:\n  - id: a\n    title: A\n  - id: a\n    title: B\n",
		"bad chart type": "version: 1\ncharts:\n  - id: c\n    title: C\n    type: radar\n",
		"bad version":    "version: 2\n",
		"missing title":  "version: 1\nkpi:\n  - id: a\n",
		"empty":          "",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeManifest(strings.NewReader(payload))
			assert.Error(t, err)
		})
	}
}

func TestFileCatalogUnavailableWithoutManifest(t *testing.T) {
	cat := NewFileCatalog(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	_, err := cat.ListAvailable()
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestFileCatalogKeepsLastGoodListing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o600))
	cat := NewFileCatalog(path, nil)

	listing, err := cat.ListAvailable()
	require.NoError(t, err)
	assert.Len(t, listing.KPI, 2)

	require.NoError(t, os.WriteFile(path, []byte("version: [broken"), 0o600))
	assert.Error(t, cat.Reload())
	listing, err = cat.ListAvailable()
	require.NoError(t, err)
	assert.Len(t, listing.KPI, 2)
}

func TestFileCatalogWatchReloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o600))
	cat := NewFileCatalog(path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cat.Watch(ctx) }()

	updated := strings.Replace(sampleManifest, "id: hoursBySite", "id: hoursByRegion", 1)
	require.Eventually(t, func() bool {
		// Rewrite until the watcher is registered and picks the change up.
		_ = os.WriteFile(path, []byte(updated), 0o600)
		listing, err := cat.ListAvailable()
		if err != nil {
			return false
		}
		_, ok := listing.Find(WidgetChart, "hoursByRegion")
		return ok
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
