package builder

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-dashboard-builder/pkg/kv"
)

// flakyBackend wraps a backend and fails selected operations.
type flakyBackend struct {
	kv.Backend
	failGet  error
	failPut  error
	puts     int
	mismatch int
}

func (f *flakyBackend) Get(ctx context.Context, key string) (kv.Record, bool, error) {
	if f.failGet != nil {
		return kv.Record{}, false, f.failGet
	}
	return f.Backend.Get(ctx, key)
}

func (f *flakyBackend) Put(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	f.puts++
	if f.failPut != nil {
		return 0, f.failPut
	}
	if f.mismatch > 0 {
		f.mismatch--
		return 0, kv.ErrVersionMismatch
	}
	return f.Backend.Put(ctx, key, value, expected)
}

var ignoreModified = cmpopts.IgnoreFields(DashboardDocument{}, "LastModified")

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestStoreSeedsStarterOnce(t *testing.T) {
	backend := &flakyBackend{Backend: kv.NewMemory()}
	store := NewDocumentStore(StoreOptions{Backend: backend})
	ctx := context.Background()

	first := store.ListAll(ctx)
	second := store.ListAll(ctx)

	require.Len(t, first, 1)
	assert.Equal(t, StarterDashboardName, first[0].Name)
	assert.NotEmpty(t, first[0].Widgets)
	assert.Empty(t, cmp.Diff(first, second))
	assert.Equal(t, 1, backend.puts)
}

func TestStoreDoesNotReseedEmptyCollection(t *testing.T) {
	backend := kv.NewMemory()
	ctx := context.Background()
	_, err := backend.Put(ctx, DefaultStoreKey, []byte(`[]`), 0)
	require.NoError(t, err)

	store := NewDocumentStore(StoreOptions{Backend: backend})
	assert.Empty(t, store.ListAll(ctx))
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(StoreOptions{Backend: kv.NewMemory()})
	engine := newTestEngine(t)

	doc := DashboardDocument{ID: "ventes", Name: "Ventes Q1", Widgets: []WidgetConfig{}}
	doc, err := engine.AddWidget(doc, WidgetKPI, "totalEquipments")
	require.NoError(t, err)
	doc, err = engine.AddWidget(doc, WidgetChart, "maintenanceCosts")
	require.NoError(t, err)

	before := time.Now().Add(-time.Second)
	_, err = store.Save(ctx, doc)
	require.NoError(t, err)

	got := store.Get(ctx, "ventes")
	require.NotNil(t, got)
	assert.Empty(t, cmp.Diff(doc, *got, ignoreModified))
	assert.False(t, got.LastModified.Before(before))
}

func TestStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	doc := DashboardDocument{ID: "x", Name: "X", Widgets: []WidgetConfig{}}
	_, err := NewDocumentStore(StoreOptions{Backend: backend}).Save(ctx, doc)
	require.NoError(t, err)

	reopened := NewDocumentStore(StoreOptions{Backend: backend})
	all := reopened.ListAll(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, StarterDashboardID, all[0].ID)
	assert.Equal(t, "x", all[1].ID)
}

func TestStoreSaveStampsLastModified(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewDocumentStore(StoreOptions{Clock: fixedClock(ts)})

	saved, err := store.Save(ctx, DashboardDocument{
		ID:           "a",
		Name:         "A",
		LastModified: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, saved.LastModified.Equal(ts))
	assert.NotNil(t, saved.Widgets)
	assert.True(t, store.Get(ctx, "a").LastModified.Equal(ts))
}

func TestStoreSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(StoreOptions{})
	doc := DashboardDocument{ID: "a", Name: "A", Widgets: []WidgetConfig{}}

	_, err := store.Save(ctx, doc)
	require.NoError(t, err)
	_, err = store.Save(ctx, doc)
	require.NoError(t, err)

	count := 0
	for _, d := range store.ListAll(ctx) {
		if d.ID == "a" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestStoreGetMissingReturnsNil(t *testing.T) {
	store := NewDocumentStore(StoreOptions{})
	assert.Nil(t, store.Get(context.Background(), "nope"))
}

func TestStoreDeleteThenGet(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(StoreOptions{})
	_, err := store.Save(ctx, DashboardDocument{ID: "a", Name: "A"})
	require.NoError(t, err)

	store.Delete(ctx, "a")
	assert.Nil(t, store.Get(ctx, "a"))
	store.Delete(ctx, "a")
	store.Delete(ctx, "never-existed")
	assert.Len(t, store.ListAll(ctx), 1)
}

func TestStoreCorruptPayloadFailsSoft(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	_, err := backend.Put(ctx, DefaultStoreKey, []byte(`{"not":"an array"`), 0)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	store := NewDocumentStore(StoreOptions{Backend: backend, Logger: zap.New(core)})

	assert.Empty(t, store.ListAll(ctx))
	assert.True(t, store.Degraded())
	require.Equal(t, 1, logs.FilterMessage("dashboard persistence degraded").Len())
	entry := logs.All()[0]
	assert.Equal(t, DefaultStoreKey, entry.ContextMap()["key"])
}

func TestStoreRejectsUnsupportedWidgetPayload(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	payload := `[{"id":"t","name":"T","lastModified":"2026-01-01T00:00:00Z","widgets":[
		{"id":"w","type":"table","title":"","sourceData":"","size":[1,1],"position":[0,0],"config":{}}
	]}]`
	_, err := backend.Put(ctx, DefaultStoreKey, []byte(payload), 0)
	require.NoError(t, err)

	store := NewDocumentStore(StoreOptions{Backend: backend})
	assert.Empty(t, store.ListAll(ctx))
	assert.True(t, store.Degraded())
}

func TestStoreRejectsSchemaViolations(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	payload := `[{"id":"t","name":"T","widgets":[{"id":"w","type":"kpi","size":[0,1],"config":{"value":"1","description":""}}]}]`
	_, err := backend.Put(ctx, DefaultStoreKey, []byte(payload), 0)
	require.NoError(t, err)

	store := NewDocumentStore(StoreOptions{Backend: backend})
	assert.Empty(t, store.ListAll(ctx))
}

func TestStoreWriteFailureDegrades(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Backend: kv.NewMemory(), failPut: errors.New("quota exceeded")}
	core, logs := observer.New(zapcore.WarnLevel)
	store := NewDocumentStore(StoreOptions{Backend: backend, Logger: zap.New(core)})

	docs := store.ListAll(ctx)
	require.Len(t, docs, 1, "seed is served from memory")

	saved, err := store.Save(ctx, DashboardDocument{ID: "a", Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, "a", saved.ID)
	assert.True(t, store.Degraded())
	assert.NotNil(t, store.Get(ctx, "a"))
	assert.GreaterOrEqual(t, logs.Len(), 2)
}

func TestStoreKeepsUnflushedWritesUntilBackendRecovers(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Backend: kv.NewMemory()}
	store := NewDocumentStore(StoreOptions{Backend: backend})
	_, err := store.Save(ctx, DashboardDocument{ID: "a", Name: "A"})
	require.NoError(t, err)

	backend.failPut = errors.New("quota exceeded")
	saved, err := store.Save(ctx, DashboardDocument{ID: "a", Name: "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", saved.Name)

	got := store.Get(ctx, "a")
	require.NotNil(t, got)
	assert.Equal(t, "B", got.Name, "the stale backend record must not replace the unflushed copy")
	assert.True(t, store.Degraded())
	assert.Equal(t, "B", store.ListAll(ctx)[1].Name)
	assert.True(t, store.Degraded())

	backend.failPut = nil
	assert.Equal(t, "B", store.Get(ctx, "a").Name)
	assert.False(t, store.Degraded())

	rec, ok, err := backend.Backend.Get(ctx, DefaultStoreKey)
	require.NoError(t, err)
	require.True(t, ok)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &raw))
	assert.Equal(t, "B", raw[1]["name"])
}

func TestStoreFlushesSeedAfterFailedFirstWrite(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Backend: kv.NewMemory(), failPut: errors.New("read-only")}
	store := NewDocumentStore(StoreOptions{Backend: backend})
	require.Len(t, store.ListAll(ctx), 1)

	backend.failPut = nil
	require.Len(t, store.ListAll(ctx), 1)
	assert.False(t, store.Degraded())
	_, ok, err := backend.Backend.Get(ctx, DefaultStoreKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreReadFailureServesCache(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Backend: kv.NewMemory()}
	store := NewDocumentStore(StoreOptions{Backend: backend})
	_, err := store.Save(ctx, DashboardDocument{ID: "a", Name: "A"})
	require.NoError(t, err)

	backend.failGet = errors.New("disk gone")
	all := store.ListAll(ctx)
	assert.Len(t, all, 2)
	assert.True(t, store.Degraded())

	backend.failGet = nil
	store.ListAll(ctx)
	assert.False(t, store.Degraded())
}

func TestStoreRetriesOnVersionMismatch(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{Backend: kv.NewMemory()}
	store := NewDocumentStore(StoreOptions{Backend: backend})
	store.ListAll(ctx)

	backend.mismatch = 2
	_, err := store.Save(ctx, DashboardDocument{ID: "a", Name: "A"})
	require.NoError(t, err)
	assert.NotNil(t, store.Get(ctx, "a"))
	assert.False(t, store.Degraded())
}

func TestVersionedStoreRejectsStaleSave(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(StoreOptions{Versioned: true})

	first, err := store.Save(ctx, DashboardDocument{ID: "a", Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	second, err := store.Save(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)

	_, err = store.Save(ctx, first)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, int64(2), store.Get(ctx, "a").Version)
}

func TestStoreWritesJSONArrayUnderKey(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	store := NewDocumentStore(StoreOptions{Backend: backend, Key: "boards"})
	_, err := store.Save(ctx, DashboardDocument{ID: "a", Name: "A"})
	require.NoError(t, err)

	rec, ok, err := backend.Get(ctx, "boards")
	require.NoError(t, err)
	require.True(t, ok)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "a", raw[1]["id"])
	_, err = time.Parse(time.RFC3339Nano, raw[1]["lastModified"].(string))
	assert.NoError(t, err)
}
