package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ettle/strcase"
	"gopkg.in/yaml.v3"

	core "github.com/goliatone/go-dashboard-builder/components/builder"
)

type catalogCmd struct {
	List     catalogListCmd     `cmd:"" default:"1" help:"List catalog entries."`
	Scaffold catalogScaffoldCmd `cmd:"" help:"Add an entry to a catalog manifest."`
}

type catalogListCmd struct{}

func (cmd *catalogListCmd) Run(ctx context.Context, g *Globals) error {
	b, closeFn, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	listing, err := b.Controller.Catalog()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tID\tTITLE\tDETAIL")
	for _, e := range listing.KPI {
		fmt.Fprintf(tw, "kpi\t%s\t%s\t%s\n", e.ID, e.Title, e.Content.(core.KPIConfig).Value)
	}
	for _, e := range listing.Charts {
		cfg := e.Content.(core.ChartConfig)
		fmt.Fprintf(tw, "chart\t%s\t%s\t%s, %d points\n", e.ID, e.Title, cfg.Type, len(cfg.Data))
	}
	return tw.Flush()
}

type catalogScaffoldCmd struct {
	Kind         string   `arg:"" enum:"kpi,chart" help:"Entry kind (kpi, chart)."`
	Title        string   `required:"" help:"Display title of the entry."`
	ID           string   `help:"Entry id (defaults to the camelCased title)."`
	Value        string   `help:"KPI value."`
	Trend        string   `help:"KPI trend label."`
	Description  string   `help:"KPI description."`
	ChartType    string   `name:"chart-type" default:"bar" enum:"bar,line,area,pie,composed" help:"Chart type."`
	Color        []string `help:"Series colors (use multiple --color flags)."`
	ManifestPath string   `required:"" name:"manifest" type:"path" help:"Catalog manifest YAML to update."`
	Overwrite    bool     `help:"Replace an existing entry with the same id."`
}

func (cmd *catalogScaffoldCmd) Run(_ context.Context, g *Globals) error {
	manifestPath, err := filepath.Abs(cmd.ManifestPath)
	if err != nil {
		return fmt.Errorf("boardctl: resolve manifest path: %w", err)
	}
	doc, err := loadOrInitManifest(manifestPath)
	if err != nil {
		return err
	}
	id := cmd.ID
	if id == "" {
		id = strcase.ToCamel(strings.TrimSpace(cmd.Title))
	}
	if id == "" {
		return fmt.Errorf("boardctl: entry id cannot be derived from title %q", cmd.Title)
	}

	switch cmd.Kind {
	case "kpi":
		entry := core.ManifestKPI{ID: id, Title: cmd.Title, KPIConfig: core.KPIConfig{Value: cmd.Value, Description: cmd.Description}}
		if cmd.Trend != "" {
			trend := cmd.Trend
			entry.Trend = &trend
		}
		idx := indexKPI(doc.KPI, id)
		if idx >= 0 && !cmd.Overwrite {
			return fmt.Errorf("boardctl: manifest already defines kpi %s (use --overwrite to replace)", id)
		}
		if idx >= 0 {
			doc.KPI[idx] = entry
		} else {
			doc.KPI = append(doc.KPI, entry)
		}
		sort.Slice(doc.KPI, func(i, j int) bool { return doc.KPI[i].ID < doc.KPI[j].ID })
	case "chart":
		entry := core.ManifestChart{ID: id, Title: cmd.Title, ChartConfig: core.ChartConfig{
			Type:   core.ChartType(cmd.ChartType),
			Data:   []core.ChartRecord{},
			Colors: cmd.Color,
		}}
		idx := indexChart(doc.Charts, id)
		if idx >= 0 && !cmd.Overwrite {
			return fmt.Errorf("boardctl: manifest already defines chart %s (use --overwrite to replace)", id)
		}
		if idx >= 0 {
			doc.Charts[idx] = entry
		} else {
			doc.Charts = append(doc.Charts, entry)
		}
		sort.Slice(doc.Charts, func(i, j int) bool { return doc.Charts[i].ID < doc.Charts[j].ID })
	}

	if err := doc.Validate(); err != nil {
		return err
	}
	if err := writeManifest(manifestPath, doc); err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "✓ Added %s %s to %s\n", cmd.Kind, id, manifestPath)
	return nil
}

func indexKPI(entries []core.ManifestKPI, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func indexChart(entries []core.ManifestChart, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func loadOrInitManifest(path string) (*core.CatalogManifest, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &core.CatalogManifest{
				Version: core.ManifestVersion,
				KPI:     []core.ManifestKPI{},
				Charts:  []core.ManifestChart{},
				Source:  path,
			}, nil
		}
		return nil, fmt.Errorf("boardctl: stat manifest: %w", err)
	}
	return core.ReadManifest(path)
}

func writeManifest(path string, doc *core.CatalogManifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("boardctl: mkdir %s: %w", filepath.Dir(path), err)
	}
	file, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("boardctl: create manifest %s: %w", path, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	defer encoder.Close()
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("boardctl: write manifest: %w", err)
	}
	return nil
}
