package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Mode is the edit state of the active dashboard.
type Mode string

const (
	ModeViewing Mode = "viewing"
	ModeEditing Mode = "editing"
)

// ConfirmFunc approves a destructive action on the given dashboard.
type ConfirmFunc func(ctx context.Context, doc DashboardDocument) bool

// Confirmed is a ConfirmFunc that always approves.
func Confirmed(context.Context, DashboardDocument) bool { return true }

// WidgetSuggestion proposes a catalog entry to place on the active dashboard.
type WidgetSuggestion struct {
	Type     WidgetType `json:"type"`
	SourceID string     `json:"sourceId"`
	Reason   string     `json:"reason,omitempty"`
}

// ControllerOptions configures the Controller.
type ControllerOptions struct {
	Store       Store
	Engine      *Engine
	RefreshHook RefreshHook
	Telemetry   Telemetry
	Logger      *zap.Logger
}

// Controller owns the active dashboard and the edit session. In Viewing mode
// every mutation is saved immediately; in Editing mode mutations accumulate on
// a draft until SaveEdit.
type Controller struct {
	store     Store
	engine    *Engine
	hook      RefreshHook
	telemetry Telemetry
	logger    *zap.Logger

	mu       sync.Mutex
	activeID string
	mode     Mode
	draft    *DashboardDocument
}

// NewController builds a Controller with safe defaults. The first stored
// dashboard is selected.
func NewController(ctx context.Context, opts ControllerOptions) *Controller {
	if opts.Store == nil {
		opts.Store = NewDocumentStore(StoreOptions{Logger: opts.Logger})
	}
	if opts.Engine == nil {
		opts.Engine = NewEngine(EngineOptions{})
	}
	if opts.RefreshHook == nil {
		opts.RefreshHook = noopRefreshHook{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Controller{
		store:     opts.Store,
		engine:    opts.Engine,
		hook:      opts.RefreshHook,
		telemetry: normalizeTelemetry(opts.Telemetry),
		logger:    opts.Logger.Named("controller"),
		mode:      ModeViewing,
	}
	if docs := c.store.ListAll(ctx); len(docs) > 0 {
		c.activeID = docs[0].ID
	}
	return c
}

// Engine exposes the engine backing the controller.
func (c *Controller) Engine() *Engine {
	return c.engine
}

// Catalog lists the entries available for placement.
func (c *Controller) Catalog() (CatalogListing, error) {
	return c.engine.Catalog().ListAvailable()
}

// Create persists an empty dashboard, selects it, and returns its id.
func (c *Controller) Create(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("builder: dashboard name is required: %w", ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, err := c.store.Save(ctx, DashboardDocument{
		ID:      newDashboardID(),
		Name:    name,
		Widgets: []WidgetConfig{},
	})
	if err != nil {
		return "", err
	}
	c.selectLocked(doc.ID)
	c.emit(ctx, DashboardEvent{DashboardID: doc.ID, Reason: "create"})
	c.telemetry.Record(ctx, "builder.dashboard.create", map[string]any{"dashboard_id": doc.ID})
	return doc.ID, nil
}

// SelectDashboard sets the active id without checking that it exists. Any
// open edit session is discarded.
func (c *Controller) SelectDashboard(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectLocked(id)
	c.emit(ctx, DashboardEvent{DashboardID: id, Reason: "select"})
}

func (c *Controller) selectLocked(id string) {
	c.activeID = id
	c.mode = ModeViewing
	c.draft = nil
}

// ActiveID returns the selected dashboard id, or "" when none is selected.
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Mode returns the current edit mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// List returns every stored dashboard.
func (c *Controller) List(ctx context.Context) []DashboardDocument {
	return c.store.ListAll(ctx)
}

// Current returns the active dashboard, or its draft while editing.
func (c *Controller) Current(ctx context.Context) (DashboardDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workingLocked(ctx)
}

func (c *Controller) workingLocked(ctx context.Context) (DashboardDocument, error) {
	if c.mode == ModeEditing && c.draft != nil {
		return c.draft.Clone(), nil
	}
	return c.loadActiveLocked(ctx)
}

func (c *Controller) loadActiveLocked(ctx context.Context) (DashboardDocument, error) {
	if c.activeID == "" {
		return DashboardDocument{}, ErrNoDashboard
	}
	doc := c.store.Get(ctx, c.activeID)
	if doc == nil {
		return DashboardDocument{}, fmt.Errorf("builder: dashboard %q: %w", c.activeID, ErrNotFound)
	}
	return *doc, nil
}

// DeleteDashboard removes a dashboard. Deleting the active one moves the
// selection to the first remaining dashboard, or to none.
func (c *Controller) DeleteDashboard(ctx context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(ctx, id)
}

// DeleteCurrent removes the active dashboard once confirm approves it.
func (c *Controller) DeleteCurrent(ctx context.Context, confirm ConfirmFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, err := c.loadActiveLocked(ctx)
	if err != nil {
		return err
	}
	if confirm == nil || !confirm(ctx, doc) {
		return fmt.Errorf("builder: delete dashboard %q: %w", doc.ID, ErrNotConfirmed)
	}
	c.deleteLocked(ctx, doc.ID)
	return nil
}

func (c *Controller) deleteLocked(ctx context.Context, id string) {
	c.store.Delete(ctx, id)
	if id == c.activeID {
		next := ""
		if remaining := c.store.ListAll(ctx); len(remaining) > 0 {
			next = remaining[0].ID
		}
		c.selectLocked(next)
	}
	c.emit(ctx, DashboardEvent{DashboardID: id, Reason: "delete"})
	c.telemetry.Record(ctx, "builder.dashboard.delete", map[string]any{"dashboard_id": id})
}

// BeginEdit opens an edit session on the active dashboard.
func (c *Controller) BeginEdit(ctx context.Context) (DashboardDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeEditing && c.draft != nil {
		return c.draft.Clone(), nil
	}
	doc, err := c.loadActiveLocked(ctx)
	if err != nil {
		return DashboardDocument{}, err
	}
	c.mode = ModeEditing
	c.draft = &doc
	c.emit(ctx, DashboardEvent{DashboardID: doc.ID, Reason: "edit"})
	return doc.Clone(), nil
}

// SaveEdit persists the draft with a single store write and returns to
// Viewing. A conflict keeps the session open.
func (c *Controller) SaveEdit(ctx context.Context) (DashboardDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeEditing || c.draft == nil {
		return DashboardDocument{}, fmt.Errorf("builder: no edit session: %w", ErrInvalidArgument)
	}
	saved, err := c.store.Save(ctx, *c.draft)
	if err != nil {
		return DashboardDocument{}, err
	}
	c.mode = ModeViewing
	c.draft = nil
	c.emit(ctx, DashboardEvent{DashboardID: saved.ID, Reason: "save"})
	c.telemetry.Record(ctx, "builder.dashboard.save", map[string]any{
		"dashboard_id": saved.ID,
		"widgets":      len(saved.Widgets),
	})
	return saved, nil
}

// CancelEdit discards the draft and reloads the active dashboard.
func (c *Controller) CancelEdit(ctx context.Context) (DashboardDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasEditing := c.mode == ModeEditing
	c.mode = ModeViewing
	c.draft = nil
	doc, err := c.loadActiveLocked(ctx)
	if err != nil {
		return DashboardDocument{}, err
	}
	if wasEditing {
		c.emit(ctx, DashboardEvent{DashboardID: doc.ID, Reason: "cancel"})
	}
	return doc, nil
}

// AddWidget places a catalog entry on the active dashboard. A missing entry
// leaves the dashboard untouched and emits a notice event.
func (c *Controller) AddWidget(ctx context.Context, t WidgetType, sourceID string) (DashboardDocument, error) {
	missing := false
	doc, err := c.mutate(ctx, "add", "", func(doc DashboardDocument) (DashboardDocument, error) {
		next, err := c.engine.AddWidget(doc, t, sourceID)
		missing = errors.Is(err, ErrNotFound)
		return next, err
	})
	if missing {
		c.notice(ctx, "entry not found", sourceID)
	}
	return doc, err
}

// AddManualWidget places a caller-built widget on the active dashboard.
func (c *Controller) AddManualWidget(ctx context.Context, spec ManualWidget) (DashboardDocument, error) {
	return c.mutate(ctx, "add", "", func(doc DashboardDocument) (DashboardDocument, error) {
		return c.engine.AddManualWidget(doc, spec)
	})
}

// RemoveWidget drops a widget from the active dashboard.
func (c *Controller) RemoveWidget(ctx context.Context, widgetID string) (DashboardDocument, error) {
	return c.mutate(ctx, "remove", widgetID, func(doc DashboardDocument) (DashboardDocument, error) {
		return c.engine.RemoveWidget(doc, widgetID), nil
	})
}

// EditWidget patches a widget on the active dashboard.
func (c *Controller) EditWidget(ctx context.Context, widgetID string, patch WidgetPatch) (DashboardDocument, error) {
	return c.mutate(ctx, "edit", widgetID, func(doc DashboardDocument) (DashboardDocument, error) {
		return c.engine.EditWidget(doc, widgetID, patch)
	})
}

// Reorder moves a widget by index on the active dashboard.
func (c *Controller) Reorder(ctx context.Context, from, to int) (DashboardDocument, error) {
	return c.mutate(ctx, "reorder", "", func(doc DashboardDocument) (DashboardDocument, error) {
		return c.engine.Reorder(doc, from, to)
	})
}

// Arrange orders the active dashboard's widgets by id.
func (c *Controller) Arrange(ctx context.Context, widgetIDs []string) (DashboardDocument, error) {
	return c.mutate(ctx, "reorder", "", func(doc DashboardDocument) (DashboardDocument, error) {
		return c.engine.Arrange(doc, widgetIDs), nil
	})
}

// Resize changes a widget's footprint on the active dashboard.
func (c *Controller) Resize(ctx context.Context, widgetID string, size Size) (DashboardDocument, error) {
	return c.mutate(ctx, "resize", widgetID, func(doc DashboardDocument) (DashboardDocument, error) {
		return c.engine.Resize(doc, widgetID, size)
	})
}

// MoveWidget changes a widget's grid position on the active dashboard.
func (c *Controller) MoveWidget(ctx context.Context, widgetID string, pos Position) (DashboardDocument, error) {
	return c.mutate(ctx, "move", widgetID, func(doc DashboardDocument) (DashboardDocument, error) {
		return c.engine.MoveWidget(doc, widgetID, pos)
	})
}

// Layout applies a new size and position together. Either may be nil; both
// are validated before anything is stored.
func (c *Controller) Layout(ctx context.Context, widgetID string, size *Size, pos *Position) (DashboardDocument, error) {
	return c.mutate(ctx, "layout", widgetID, func(doc DashboardDocument) (DashboardDocument, error) {
		var err error
		if size != nil {
			if doc, err = c.engine.Resize(doc, widgetID, *size); err != nil {
				return doc, err
			}
		}
		if pos != nil {
			if doc, err = c.engine.MoveWidget(doc, widgetID, *pos); err != nil {
				return doc, err
			}
		}
		return doc, nil
	})
}

// Relayout restacks the active dashboard into one column.
func (c *Controller) Relayout(ctx context.Context) (DashboardDocument, error) {
	return c.mutate(ctx, "relayout", "", func(doc DashboardDocument) (DashboardDocument, error) {
		return c.engine.Relayout(doc), nil
	})
}

// Rename sets the active dashboard's name.
func (c *Controller) Rename(ctx context.Context, name string) (DashboardDocument, error) {
	return c.mutate(ctx, "rename", "", func(doc DashboardDocument) (DashboardDocument, error) {
		return c.engine.RenameDashboard(doc, name)
	})
}

// ApplySuggestions adds every suggested entry in one mutation. Suggestions
// naming unknown entries are skipped with a notice. It returns the number of
// widgets added.
func (c *Controller) ApplySuggestions(ctx context.Context, suggestions []WidgetSuggestion) (DashboardDocument, int, error) {
	applied := 0
	var skipped []string
	doc, err := c.mutate(ctx, "suggestions", "", func(doc DashboardDocument) (DashboardDocument, error) {
		for _, s := range suggestions {
			next, err := c.engine.AddWidget(doc, s.Type, s.SourceID)
			switch {
			case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnsupportedWidget):
				skipped = append(skipped, s.SourceID)
				continue
			case err != nil:
				return doc, err
			}
			doc = next
			applied++
		}
		if applied == 0 {
			return doc, errUnchanged
		}
		return doc, nil
	})
	for _, id := range skipped {
		c.notice(ctx, "entry not found", id)
	}
	return doc, applied, err
}

// errUnchanged lets a mutation skip the save and the refresh event.
var errUnchanged = errors.New("builder: unchanged")

func (c *Controller) mutate(ctx context.Context, reason, widgetID string, fn func(DashboardDocument) (DashboardDocument, error)) (DashboardDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, err := c.workingLocked(ctx)
	if err != nil {
		return DashboardDocument{}, err
	}
	next, err := fn(doc)
	if errors.Is(err, errUnchanged) {
		return doc.Clone(), nil
	}
	if err != nil {
		return doc, err
	}
	if c.mode == ModeEditing {
		c.draft = &next
	} else {
		next, err = c.store.Save(ctx, next)
		if err != nil {
			return doc, err
		}
	}
	c.emit(ctx, DashboardEvent{DashboardID: next.ID, WidgetID: widgetID, Reason: reason})
	c.telemetry.Record(ctx, "builder.widget."+reason, map[string]any{
		"dashboard_id": next.ID,
		"widget_id":    widgetID,
		"mode":         string(c.mode),
	})
	return next.Clone(), nil
}

func (c *Controller) notice(ctx context.Context, message, sourceID string) {
	c.logger.Info("catalog lookup failed", zap.String("source", sourceID))
	c.emit(ctx, DashboardEvent{DashboardID: c.ActiveID(), Reason: "notice", Message: message})
}

func (c *Controller) emit(ctx context.Context, event DashboardEvent) {
	if err := c.hook.DashboardUpdated(ctx, event); err != nil {
		c.logger.Warn("refresh hook failed", zap.String("reason", event.Reason), zap.Error(err))
	}
}
