// Package render turns chart widgets into server-side ECharts HTML.
package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

const defaultChartHeight = "360px"

// Options configures a Renderer.
type Options struct {
	Cache      Cache
	Theme      string
	AssetsHost string
	Height     string
}

// Renderer renders chart widgets.
type Renderer struct {
	cache      Cache
	theme      string
	assetsHost string
	height     string
}

// New builds a Renderer. A nil cache gets a five minute ChartCache.
func New(o Options) *Renderer {
	if o.Cache == nil {
		o.Cache = NewChartCache(5 * time.Minute)
	}
	if o.Theme == "" {
		o.Theme = types.ThemeWesteros
	}
	if o.Height == "" {
		o.Height = defaultChartHeight
	}
	return &Renderer{cache: o.Cache, theme: o.Theme, assetsHost: o.AssetsHost, height: o.Height}
}

// Render returns the chart HTML for a chart widget.
func (r *Renderer) Render(w builder.WidgetConfig) (string, error) {
	cfg, ok := w.Config.(builder.ChartConfig)
	if w.Type != builder.WidgetChart || !ok {
		return "", fmt.Errorf("render: widget %s is %s, not a chart: %w", w.ID, w.Type, builder.ErrInvalidArgument)
	}
	if !cfg.Type.Valid() {
		return "", fmt.Errorf("render: widget %s has chart type %q: %w", w.ID, cfg.Type, builder.ErrInvalidArgument)
	}
	return r.cache.GetOrRender(KeyFor(w.ID, w.Title, cfg), func() (string, error) {
		return r.render(w.Title, cfg)
	})
}

// Forget drops any cached rendering of the widget.
func (r *Renderer) Forget(widgetID string) {
	if f, ok := r.cache.(interface{ Forget(string) }); ok {
		f.Forget(widgetID)
	}
}

func (r *Renderer) render(title string, cfg builder.ChartConfig) (string, error) {
	table := tabulate(cfg.Data)
	global := r.globalOptions(title, cfg.Colors)
	switch cfg.Type {
	case builder.ChartBar:
		bar := charts.NewBar()
		bar.SetGlobalOptions(global...)
		bar.SetXAxis(table.categories)
		for _, key := range table.keys {
			bar.AddSeries(key, toBarData(table, key))
		}
		return renderChart(bar)
	case builder.ChartLine, builder.ChartArea:
		line := charts.NewLine()
		line.SetGlobalOptions(global...)
		line.SetXAxis(table.categories)
		for _, key := range table.keys {
			line.AddSeries(key, toLineData(table, key))
		}
		line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
		if cfg.Type == builder.ChartArea {
			line.SetSeriesOptions(charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.35)}))
		}
		return renderChart(line)
	case builder.ChartPie:
		pie := charts.NewPie()
		pie.SetGlobalOptions(global...)
		pie.AddSeries(title, toPieData(table, table.primaryKey()))
		return renderChart(pie)
	case builder.ChartComposed:
		// First series as bars, the rest overlaid as lines.
		bar := charts.NewBar()
		bar.SetGlobalOptions(global...)
		bar.SetXAxis(table.categories)
		if len(table.keys) > 0 {
			bar.AddSeries(table.keys[0], toBarData(table, table.keys[0]))
		}
		if len(table.keys) > 1 {
			line := charts.NewLine()
			line.SetXAxis(table.categories)
			for _, key := range table.keys[1:] {
				line.AddSeries(key, toLineData(table, key))
			}
			bar.Overlap(line)
		}
		return renderChart(bar)
	default:
		return "", fmt.Errorf("render: unsupported chart type %s", cfg.Type)
	}
}

func (r *Renderer) globalOptions(title string, colors []string) []charts.GlobalOpts {
	initOpts := opts.Initialization{
		Theme:  r.theme,
		Width:  "100%",
		Height: r.height,
	}
	if r.assetsHost != "" {
		initOpts.AssetsHost = r.assetsHost
	}
	out := []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(initOpts),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
	if len(colors) > 0 {
		out = append(out, charts.WithColorsOpts(opts.Colors(colors)))
	}
	return out
}

func renderChart(renderable interface{ Render(io.Writer) error }) (string, error) {
	var buf bytes.Buffer
	if err := renderable.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// dataTable is chart data pivoted into categories and numeric series.
type dataTable struct {
	categories []string
	keys       []string
	values     map[string][]float64
}

func tabulate(records []builder.ChartRecord) dataTable {
	t := dataTable{values: map[string][]float64{}}
	seen := map[string]bool{}
	for _, rec := range records {
		for key, value := range rec {
			if key == "name" || seen[key] {
				continue
			}
			if _, ok := number(value); ok {
				seen[key] = true
				t.keys = append(t.keys, key)
			}
		}
	}
	sort.Strings(t.keys)
	for i, rec := range records {
		name := rec.Name()
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
		}
		t.categories = append(t.categories, name)
		for _, key := range t.keys {
			v, _ := number(rec[key])
			t.values[key] = append(t.values[key], v)
		}
	}
	return t
}

// primaryKey prefers the conventional "value" series.
func (t dataTable) primaryKey() string {
	if _, ok := t.values["value"]; ok {
		return "value"
	}
	if len(t.keys) > 0 {
		return t.keys[0]
	}
	return ""
}

func number(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

func toBarData(t dataTable, key string) []opts.BarData {
	values := t.values[key]
	data := make([]opts.BarData, len(values))
	for i, v := range values {
		data[i] = opts.BarData{Name: t.categories[i], Value: v}
	}
	return data
}

func toLineData(t dataTable, key string) []opts.LineData {
	values := t.values[key]
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Name: t.categories[i], Value: v}
	}
	return data
}

func toPieData(t dataTable, key string) []opts.PieData {
	values := t.values[key]
	data := make([]opts.PieData, len(values))
	for i, v := range values {
		data[i] = opts.PieData{Name: t.categories[i], Value: v}
	}
	return data
}
