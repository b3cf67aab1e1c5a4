package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap/zapcore"

	core "github.com/goliatone/go-dashboard-builder/components/builder"
)

func parse(t *testing.T, args ...string) (*cli, *kong.Context) {
	t.Helper()
	var app cli
	parser, err := kong.New(&app, kong.Name("boardctl"), kong.BindTo(context.Background(), (*context.Context)(nil)))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &app, kctx
}

func TestEnvironmentConfiguresGlobals(t *testing.T) {
	t.Setenv("BOARD_ENV", "production")
	t.Setenv("BOARD_LOG_LEVEL", "warn")
	t.Setenv("BOARD_STORE_DRIVER", "sqlite")
	t.Setenv("BOARD_STORE_DSN", "file:boards.db")
	t.Setenv("BOARD_STORE_VERSIONED", "true")

	app, _ := parse(t, "list")
	assert.Equal(t, "production", app.Env)
	assert.Equal(t, "sqlite", app.Store.Driver)
	assert.Equal(t, "file:boards.db", app.Store.DSN)
	assert.Equal(t, core.DefaultStoreKey, app.Store.Key)
	assert.True(t, app.Store.Versioned)

	logger, err := app.Logger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	cfg := app.BuilderConfig(logger)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "boards", cfg.Store.Database)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	app, _ := parse(t, "--store-driver=memory", "--store-key=boards", "serve", "--addr=:9090")
	assert.Equal(t, "memory", app.Store.Driver)
	assert.Equal(t, "boards", app.Store.Key)
	assert.Equal(t, ":9090", app.Serve.Addr)
	assert.Equal(t, "development", app.Env)
}

func TestInvalidLogLevel(t *testing.T) {
	g := &Globals{LogLevel: "loud"}
	_, err := g.Logger()
	assert.Error(t, err)
}

func fileGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &Globals{
		Env:      "development",
		LogLevel: "error",
		Store: storeFlags{
			Driver: "file",
			DSN:    filepath.Join(t.TempDir(), "boards.json"),
			Key:    core.DefaultStoreKey,
		},
		Stdout: out,
	}, out
}

func TestCreateListDeleteAgainstFileStore(t *testing.T) {
	ctx := context.Background()
	g, out := fileGlobals(t)

	require.NoError(t, (&createCmd{Name: "Carrière Est"}).Run(ctx, g))
	id := strings.TrimSpace(out.String())
	require.NotEmpty(t, id)

	out.Reset()
	require.NoError(t, (&listCmd{}).Run(ctx, g))
	assert.Contains(t, out.String(), core.StarterDashboardID)
	assert.Contains(t, out.String(), "Carrière Est")

	g.Stdin = strings.NewReader("n\n")
	err := (&deleteCmd{ID: id}).Run(ctx, g)
	assert.ErrorIs(t, err, core.ErrNotConfirmed)

	g.Stdin = strings.NewReader("oui\n")
	require.NoError(t, (&deleteCmd{ID: id}).Run(ctx, g))

	out.Reset()
	require.NoError(t, (&listCmd{}).Run(ctx, g))
	assert.NotContains(t, out.String(), "Carrière Est")
}

func TestExportWritesWorkbook(t *testing.T) {
	g, _ := fileGlobals(t)
	target := filepath.Join(t.TempDir(), "out", "board.xlsx")
	require.NoError(t, (&exportCmd{ID: core.StarterDashboardID, Out: target}).Run(context.Background(), g))
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCatalogScaffoldAddsEntries(t *testing.T) {
	ctx := context.Background()
	g, out := fileGlobals(t)
	manifest := filepath.Join(t.TempDir(), "catalog.yaml")

	kpi := &catalogScaffoldCmd{Kind: "kpi", Title: "Heures moteur", Value: "1 200 h", Description: "Cumul", ChartType: "bar", ManifestPath: manifest}
	require.NoError(t, kpi.Run(ctx, g))
	chart := &catalogScaffoldCmd{Kind: "chart", Title: "Pannes", ChartType: "pie", ManifestPath: manifest}
	require.NoError(t, chart.Run(ctx, g))
	assert.Error(t, kpi.Run(ctx, g), "duplicates need --overwrite")
	kpi.Overwrite = true
	kpi.Value = "1 300 h"
	require.NoError(t, kpi.Run(ctx, g))

	doc, err := core.ReadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, doc.KPI, 1)
	assert.Equal(t, "heuresMoteur", doc.KPI[0].ID)
	assert.Equal(t, "1 300 h", doc.KPI[0].Value)
	require.Len(t, doc.Charts, 1)
	assert.Equal(t, core.ChartPie, doc.Charts[0].Type)

	out.Reset()
	g.CatalogManifest = manifest
	require.NoError(t, (&catalogListCmd{}).Run(ctx, g))
	assert.Contains(t, out.String(), "heuresMoteur")
	assert.Contains(t, out.String(), "pannes")
}

func TestServeGraphValidates(t *testing.T) {
	g, _ := fileGlobals(t)
	g.Store.Driver = "memory"
	cmd := &serveCmd{Addr: "127.0.0.1:0", MockAnalysis: true}
	assert.NoError(t, fx.ValidateApp(cmd.options(g)...))
}
