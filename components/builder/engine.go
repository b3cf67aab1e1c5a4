package builder

import (
	"fmt"
	"strings"
)

// EngineOptions configures the Engine collaborators.
type EngineOptions struct {
	Catalog   Catalog
	IDs       IDGenerator
	Validator ConfigValidator
}

// Engine implements the document transformations. Every operation returns a
// new document and leaves its input untouched, including on error.
type Engine struct {
	catalog   Catalog
	ids       IDGenerator
	validator ConfigValidator
}

// NewEngine builds an Engine with safe defaults.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Catalog == nil {
		cat, err := NewDefaultCatalog()
		if err != nil {
			cat, _ = NewStaticCatalog(DefaultCatalogListing())
		}
		opts.Catalog = cat
	}
	if opts.IDs == nil {
		opts.IDs = UUIDGenerator{}
	}
	if opts.Validator == nil {
		opts.Validator = noopConfigValidator{}
	}
	return &Engine{catalog: opts.Catalog, ids: opts.IDs, validator: opts.Validator}
}

// Catalog returns the catalog backing AddWidget.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// AddWidget instantiates the catalog entry sourceID as a new widget appended
// after the existing ones.
func (e *Engine) AddWidget(doc DashboardDocument, t WidgetType, sourceID string) (DashboardDocument, error) {
	if !t.Valid() {
		return doc, fmt.Errorf("builder: add widget of type %q: %w", t, ErrUnsupportedWidget)
	}
	listing, err := e.catalog.ListAvailable()
	if err != nil {
		return doc, err
	}
	entry, ok := listing.Find(t, sourceID)
	if !ok {
		return doc, fmt.Errorf("builder: catalog %s entry %q: %w", t, sourceID, ErrNotFound)
	}
	next := doc.Clone()
	widget := widgetFromEntry(e.freshID(next, t), t, entry)
	widget.Position = Position{X: 0, Y: len(next.Widgets)}
	next.Widgets = append(next.Widgets, widget)
	return next, nil
}

// ManualWidget describes a widget built without a catalog entry.
type ManualWidget struct {
	Type   WidgetType
	Title  string
	Size   *Size
	Config WidgetContent
}

// AddManualWidget appends a widget whose content comes from the caller. The
// widget carries no sourceData binding.
func (e *Engine) AddManualWidget(doc DashboardDocument, spec ManualWidget) (DashboardDocument, error) {
	if !spec.Type.Valid() {
		return doc, fmt.Errorf("builder: add widget of type %q: %w", spec.Type, ErrUnsupportedWidget)
	}
	if spec.Config == nil || spec.Config.WidgetType() != spec.Type {
		return doc, fmt.Errorf("builder: %s widget needs %s config: %w", spec.Type, spec.Type, ErrInvalidArgument)
	}
	if err := e.validator.Validate(spec.Type, spec.Config); err != nil {
		return doc, err
	}
	size := DefaultSize(spec.Type)
	if spec.Size != nil {
		if !spec.Size.Valid() {
			return doc, fmt.Errorf("builder: size %dx%d: %w", spec.Size.Columns, spec.Size.Rows, ErrInvalidArgument)
		}
		size = *spec.Size
	}
	next := doc.Clone()
	next.Widgets = append(next.Widgets, WidgetConfig{
		ID:       e.freshID(next, spec.Type),
		Type:     spec.Type,
		Title:    spec.Title,
		Size:     size,
		Position: Position{X: 0, Y: len(next.Widgets)},
		Config:   CloneContent(spec.Config),
	})
	return next, nil
}

// RemoveWidget drops the widget with the given id. Removing an absent widget
// returns an unchanged copy.
func (e *Engine) RemoveWidget(doc DashboardDocument, widgetID string) DashboardDocument {
	next := doc.Clone()
	kept := next.Widgets[:0]
	for _, w := range next.Widgets {
		if w.ID != widgetID {
			kept = append(kept, w)
		}
	}
	next.Widgets = kept
	return next
}

// WidgetPatch carries the replacement values for EditWidget. ID and Type are
// identity fields: when set they must equal the target widget's values.
type WidgetPatch struct {
	ID     *string
	Type   *WidgetType
	Title  *string
	Size   *Size
	Config WidgetContent
}

// EditWidget replaces the mutable fields of a widget.
func (e *Engine) EditWidget(doc DashboardDocument, widgetID string, patch WidgetPatch) (DashboardDocument, error) {
	idx := doc.WidgetIndex(widgetID)
	if idx < 0 {
		return doc, fmt.Errorf("builder: widget %q: %w", widgetID, ErrNotFound)
	}
	current := doc.Widgets[idx]
	if patch.ID != nil && *patch.ID != current.ID {
		return doc, fmt.Errorf("builder: widget id is immutable (%q -> %q): %w", current.ID, *patch.ID, ErrInvalidArgument)
	}
	if patch.Type != nil && *patch.Type != current.Type {
		return doc, fmt.Errorf("builder: widget type is immutable (%s -> %s): %w", current.Type, *patch.Type, ErrInvalidArgument)
	}
	if patch.Size != nil && !patch.Size.Valid() {
		return doc, fmt.Errorf("builder: size %dx%d: %w", patch.Size.Columns, patch.Size.Rows, ErrInvalidArgument)
	}
	if patch.Config != nil {
		if patch.Config.WidgetType() != current.Type {
			return doc, fmt.Errorf("builder: %s config on %s widget: %w", patch.Config.WidgetType(), current.Type, ErrInvalidArgument)
		}
		if err := e.validator.Validate(current.Type, patch.Config); err != nil {
			return doc, err
		}
	}

	next := doc.Clone()
	w := &next.Widgets[idx]
	if patch.Title != nil {
		w.Title = *patch.Title
	}
	if patch.Size != nil {
		w.Size = *patch.Size
	}
	if patch.Config != nil {
		w.Config = CloneContent(patch.Config)
	}
	return next, nil
}

// Reorder moves the widget at from to index to, shifting the others.
func (e *Engine) Reorder(doc DashboardDocument, from, to int) (DashboardDocument, error) {
	n := len(doc.Widgets)
	if from < 0 || from >= n {
		return doc, fmt.Errorf("builder: reorder from index %d of %d: %w", from, n, ErrOutOfRange)
	}
	if to < 0 || to >= n {
		return doc, fmt.Errorf("builder: reorder to index %d of %d: %w", to, n, ErrOutOfRange)
	}
	next := doc.Clone()
	next.Widgets = moveWidget(next.Widgets, from, to)
	return next, nil
}

// Arrange orders widgets by the given ids. Widgets not listed keep their
// relative order after the listed ones.
func (e *Engine) Arrange(doc DashboardDocument, widgetIDs []string) DashboardDocument {
	next := doc.Clone()
	next.Widgets = applyOrder(next.Widgets, widgetIDs)
	return next
}

// Resize sets the grid footprint of a widget.
func (e *Engine) Resize(doc DashboardDocument, widgetID string, size Size) (DashboardDocument, error) {
	return e.EditWidget(doc, widgetID, WidgetPatch{Size: &size})
}

// MoveWidget sets the advisory grid position of a widget.
func (e *Engine) MoveWidget(doc DashboardDocument, widgetID string, pos Position) (DashboardDocument, error) {
	idx := doc.WidgetIndex(widgetID)
	if idx < 0 {
		return doc, fmt.Errorf("builder: widget %q: %w", widgetID, ErrNotFound)
	}
	if !pos.Valid() {
		return doc, fmt.Errorf("builder: position [%d,%d]: %w", pos.X, pos.Y, ErrOutOfRange)
	}
	next := doc.Clone()
	next.Widgets[idx].Position = pos
	return next, nil
}

// Relayout restacks every widget into a single column following list order.
func (e *Engine) Relayout(doc DashboardDocument) DashboardDocument {
	next := doc.Clone()
	stackColumn(next.Widgets)
	return next
}

// RenameDashboard sets the trimmed name on the document.
func (e *Engine) RenameDashboard(doc DashboardDocument, name string) (DashboardDocument, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return doc, fmt.Errorf("builder: dashboard name is required: %w", ErrInvalidArgument)
	}
	next := doc.Clone()
	next.Name = name
	return next, nil
}

const maxIDAttempts = 8

// freshID asks the generator for an unused id and falls back to a uuid when
// it keeps returning empty or taken ids.
func (e *Engine) freshID(doc DashboardDocument, t WidgetType) string {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := e.ids.NewWidgetID(t)
		if id != "" && doc.WidgetIndex(id) < 0 {
			return id
		}
	}
	for {
		if id := (UUIDGenerator{}).NewWidgetID(t); doc.WidgetIndex(id) < 0 {
			return id
		}
	}
}
