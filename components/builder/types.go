package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// WidgetType identifies the kind of widget placed on a dashboard.
type WidgetType string

const (
	WidgetKPI   WidgetType = "kpi"
	WidgetChart WidgetType = "chart"
	// WidgetTable is reserved. Documents carrying it are rejected on decode.
	WidgetTable WidgetType = "table"
)

// Valid reports whether the type is one the engine and store support.
func (t WidgetType) Valid() bool {
	return t == WidgetKPI || t == WidgetChart
}

// ChartType selects the visualization used for a chart widget.
type ChartType string

const (
	ChartBar      ChartType = "bar"
	ChartLine     ChartType = "line"
	ChartArea     ChartType = "area"
	ChartPie      ChartType = "pie"
	ChartComposed ChartType = "composed"
)

// Valid reports whether the chart type is known.
func (t ChartType) Valid() bool {
	switch t {
	case ChartBar, ChartLine, ChartArea, ChartPie, ChartComposed:
		return true
	default:
		return false
	}
}

// Store persists dashboard documents. Implementations never surface
// persistence failures; they degrade and log instead.
type Store interface {
	ListAll(ctx context.Context) []DashboardDocument
	Get(ctx context.Context, id string) *DashboardDocument
	Save(ctx context.Context, doc DashboardDocument) (DashboardDocument, error)
	Delete(ctx context.Context, id string)
}

// Catalog lists the data sources that can be dropped onto a dashboard.
type Catalog interface {
	ListAvailable() (CatalogListing, error)
}

// IDGenerator mints widget identifiers.
type IDGenerator interface {
	NewWidgetID(t WidgetType) string
}

// RefreshHook notifies transports (REST/WebSocket) about dashboard changes.
type RefreshHook interface {
	DashboardUpdated(ctx context.Context, event DashboardEvent) error
}

// DashboardEvent describes changes that transports might care about.
type DashboardEvent struct {
	DashboardID string `json:"dashboardId,omitempty"`
	WidgetID    string `json:"widgetId,omitempty"`
	Reason      string `json:"reason"`
	Message     string `json:"message,omitempty"`
}

// Size is the grid footprint of a widget. It serializes as [columns, rows].
type Size struct {
	Columns int
	Rows    int
}

// MarshalJSON encodes the size as a two-element array.
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Columns, s.Rows})
}

// UnmarshalJSON decodes a two-element array.
func (s *Size) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("builder: decode size: %w", err)
	}
	s.Columns, s.Rows = pair[0], pair[1]
	return nil
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Columns > 0 && s.Rows > 0
}

// Position is the advisory grid placement of a widget. It serializes as [x, y].
type Position struct {
	X int
	Y int
}

// MarshalJSON encodes the position as a two-element array.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON decodes a two-element array.
func (p *Position) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("builder: decode position: %w", err)
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// Valid reports whether both coordinates are non-negative.
func (p Position) Valid() bool {
	return p.X >= 0 && p.Y >= 0
}

// WidgetContent is the type-dependent payload of a widget. It is implemented
// only by KPIConfig and ChartConfig.
type WidgetContent interface {
	WidgetType() WidgetType
	cloneContent() WidgetContent
}

// KPIConfig is the payload of a kpi widget. A leading "+" or "-" on Trend
// drives presentation only.
type KPIConfig struct {
	Value       string  `json:"value" yaml:"value"`
	Trend       *string `json:"trend" yaml:"trend"`
	Description string  `json:"description" yaml:"description"`
}

// WidgetType implements WidgetContent.
func (KPIConfig) WidgetType() WidgetType { return WidgetKPI }

func (c KPIConfig) cloneContent() WidgetContent {
	out := c
	if c.Trend != nil {
		trend := *c.Trend
		out.Trend = &trend
	}
	return out
}

// ChartRecord is one row of chart data. The "name" key holds the category.
type ChartRecord map[string]any

// Name returns the category label of the record.
func (r ChartRecord) Name() string {
	if v, ok := r["name"].(string); ok {
		return v
	}
	return ""
}

// ChartConfig is the payload of a chart widget.
type ChartConfig struct {
	Type   ChartType     `json:"type" yaml:"type"`
	Data   []ChartRecord `json:"data" yaml:"data"`
	Colors []string      `json:"colors" yaml:"colors"`
}

// WidgetType implements WidgetContent.
func (ChartConfig) WidgetType() WidgetType { return WidgetChart }

func (c ChartConfig) cloneContent() WidgetContent {
	out := ChartConfig{Type: c.Type}
	if c.Data != nil {
		out.Data = make([]ChartRecord, len(c.Data))
		for i, rec := range c.Data {
			out.Data[i] = normalizeRecord(rec)
		}
	}
	if c.Colors != nil {
		out.Colors = append([]string(nil), c.Colors...)
	}
	return out
}

// CloneContent returns a deep copy of the content, or nil.
func CloneContent(c WidgetContent) WidgetContent {
	if c == nil {
		return nil
	}
	return c.cloneContent()
}

// WidgetConfig is a single KPI tile or chart placed on a dashboard.
type WidgetConfig struct {
	ID         string
	Type       WidgetType
	Title      string
	SourceData string
	Size       Size
	Position   Position
	Config     WidgetContent
}

type widgetJSON struct {
	ID         string          `json:"id"`
	Type       WidgetType      `json:"type"`
	Title      string          `json:"title"`
	SourceData string          `json:"sourceData"`
	Size       Size            `json:"size"`
	Position   Position        `json:"position"`
	Config     json.RawMessage `json:"config"`
}

// MarshalJSON writes the widget with its content under "config".
func (w WidgetConfig) MarshalJSON() ([]byte, error) {
	cfg := []byte("null")
	if w.Config != nil {
		raw, err := json.Marshal(w.Config)
		if err != nil {
			return nil, fmt.Errorf("builder: encode widget %s config: %w", w.ID, err)
		}
		cfg = raw
	}
	return json.Marshal(widgetJSON{
		ID:         w.ID,
		Type:       w.Type,
		Title:      w.Title,
		SourceData: w.SourceData,
		Size:       w.Size,
		Position:   w.Position,
		Config:     cfg,
	})
}

// UnmarshalJSON selects the content variant from the widget type.
func (w *WidgetConfig) UnmarshalJSON(data []byte) error {
	var raw widgetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("builder: decode widget: %w", err)
	}
	content, err := decodeContent(raw.Type, raw.Config)
	if err != nil {
		return fmt.Errorf("builder: decode widget %s: %w", raw.ID, err)
	}
	*w = WidgetConfig{
		ID:         raw.ID,
		Type:       raw.Type,
		Title:      raw.Title,
		SourceData: raw.SourceData,
		Size:       raw.Size,
		Position:   raw.Position,
		Config:     content,
	}
	return nil
}

// DecodeContent decodes raw widget content for the given type.
func DecodeContent(t WidgetType, raw json.RawMessage) (WidgetContent, error) {
	return decodeContent(t, raw)
}

func decodeContent(t WidgetType, raw json.RawMessage) (WidgetContent, error) {
	switch t {
	case WidgetKPI:
		var cfg KPIConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case WidgetChart:
		var cfg ChartConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg.cloneContent(), nil
	case WidgetTable:
		return nil, fmt.Errorf("type %q: %w", t, ErrUnsupportedWidget)
	default:
		return nil, fmt.Errorf("unknown type %q: %w", t, ErrUnsupportedWidget)
	}
}

// Clone returns a deep copy of the widget.
func (w WidgetConfig) Clone() WidgetConfig {
	out := w
	out.Config = CloneContent(w.Config)
	return out
}

// DashboardDocument is the persisted unit of configuration for one board.
type DashboardDocument struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	LastModified time.Time      `json:"lastModified"`
	Version      int64          `json:"version,omitempty"`
	Widgets      []WidgetConfig `json:"widgets"`
}

// Clone returns a deep copy of the document. A nil widget list becomes empty.
func (d DashboardDocument) Clone() DashboardDocument {
	out := d
	out.Widgets = make([]WidgetConfig, len(d.Widgets))
	for i, w := range d.Widgets {
		out.Widgets[i] = w.Clone()
	}
	return out
}

// WidgetIndex returns the position of the widget in the list, or -1.
func (d DashboardDocument) WidgetIndex(widgetID string) int {
	for i, w := range d.Widgets {
		if w.ID == widgetID {
			return i
		}
	}
	return -1
}

// Widget looks up a widget by id.
func (d DashboardDocument) Widget(widgetID string) (WidgetConfig, bool) {
	if idx := d.WidgetIndex(widgetID); idx >= 0 {
		return d.Widgets[idx], true
	}
	return WidgetConfig{}, false
}

func normalizeRecord(rec ChartRecord) ChartRecord {
	if rec == nil {
		return nil
	}
	out := make(ChartRecord, len(rec))
	for key, value := range rec {
		out[key] = normalizeValue(value)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}
