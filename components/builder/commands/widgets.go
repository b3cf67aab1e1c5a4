package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

// AddWidgetInput places a catalog entry, or a manual widget when Config is set.
type AddWidgetInput struct {
	Type     builder.WidgetType `json:"type"`
	SourceID string             `json:"sourceId"`
	Title    string             `json:"title,omitempty"`
	Size     *builder.Size      `json:"size,omitempty"`
	Config   json.RawMessage    `json:"config,omitempty"`
}

type addService interface {
	AddWidget(ctx context.Context, t builder.WidgetType, sourceID string) (builder.DashboardDocument, error)
	AddManualWidget(ctx context.Context, spec builder.ManualWidget) (builder.DashboardDocument, error)
}

// AddWidgetCommand wraps Controller.AddWidget and Controller.AddManualWidget.
type AddWidgetCommand struct {
	service   addService
	telemetry Telemetry
}

// NewAddWidgetCommand builds the command.
func NewAddWidgetCommand(service addService, telemetry Telemetry) *AddWidgetCommand {
	return &AddWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[AddWidgetInput] = (*AddWidgetCommand)(nil)

// Execute adds the widget to the active dashboard.
func (c *AddWidgetCommand) Execute(ctx context.Context, msg AddWidgetInput) error {
	if c.service == nil {
		return errors.New("add command requires service")
	}
	var (
		doc builder.DashboardDocument
		err error
	)
	if hasConfig(msg.Config) {
		var content builder.WidgetContent
		content, err = builder.DecodeContent(msg.Type, msg.Config)
		if err != nil {
			return fmt.Errorf("add command: decode config: %w", wrapDecode(err))
		}
		doc, err = c.service.AddManualWidget(ctx, builder.ManualWidget{
			Type:   msg.Type,
			Title:  msg.Title,
			Size:   msg.Size,
			Config: content,
		})
	} else {
		if msg.SourceID == "" {
			return fmt.Errorf("add command requires source id: %w", builder.ErrInvalidArgument)
		}
		doc, err = c.service.AddWidget(ctx, msg.Type, msg.SourceID)
	}
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "builder.command.add", map[string]any{
		"dashboard_id": doc.ID,
		"type":         string(msg.Type),
		"source_id":    msg.SourceID,
	})
	return nil
}

// RemoveWidgetInput identifies the widget to remove.
type RemoveWidgetInput struct {
	WidgetID string `json:"widgetId"`
}

type removeService interface {
	RemoveWidget(ctx context.Context, widgetID string) (builder.DashboardDocument, error)
}

// RemoveWidgetCommand wraps Controller.RemoveWidget.
type RemoveWidgetCommand struct {
	service   removeService
	telemetry Telemetry
}

// NewRemoveWidgetCommand builds the command.
func NewRemoveWidgetCommand(service removeService, telemetry Telemetry) *RemoveWidgetCommand {
	return &RemoveWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RemoveWidgetInput] = (*RemoveWidgetCommand)(nil)

// Execute removes the widget. Unknown ids leave the dashboard unchanged.
func (c *RemoveWidgetCommand) Execute(ctx context.Context, msg RemoveWidgetInput) error {
	if c.service == nil {
		return errors.New("remove command requires service")
	}
	if msg.WidgetID == "" {
		return fmt.Errorf("remove command requires widget id: %w", builder.ErrInvalidArgument)
	}
	if _, err := c.service.RemoveWidget(ctx, msg.WidgetID); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "builder.command.remove", map[string]any{"widget_id": msg.WidgetID})
	return nil
}

// EditWidgetInput patches a widget. Absent fields are left untouched.
type EditWidgetInput struct {
	WidgetID string              `json:"widgetId"`
	ID       *string             `json:"id,omitempty"`
	Type     *builder.WidgetType `json:"type,omitempty"`
	Title    *string             `json:"title,omitempty"`
	Size     *builder.Size       `json:"size,omitempty"`
	Config   json.RawMessage     `json:"config,omitempty"`
}

type editService interface {
	Current(ctx context.Context) (builder.DashboardDocument, error)
	EditWidget(ctx context.Context, widgetID string, patch builder.WidgetPatch) (builder.DashboardDocument, error)
}

// EditWidgetCommand wraps Controller.EditWidget.
type EditWidgetCommand struct {
	service   editService
	telemetry Telemetry
}

// NewEditWidgetCommand builds the command.
func NewEditWidgetCommand(service editService, telemetry Telemetry) *EditWidgetCommand {
	return &EditWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[EditWidgetInput] = (*EditWidgetCommand)(nil)

// Execute applies the patch. Config is decoded against the widget's own type.
func (c *EditWidgetCommand) Execute(ctx context.Context, msg EditWidgetInput) error {
	if c.service == nil {
		return errors.New("edit command requires service")
	}
	if msg.WidgetID == "" {
		return fmt.Errorf("edit command requires widget id: %w", builder.ErrInvalidArgument)
	}
	patch := builder.WidgetPatch{ID: msg.ID, Type: msg.Type, Title: msg.Title, Size: msg.Size}
	if hasConfig(msg.Config) {
		t, err := c.widgetType(ctx, msg)
		if err != nil {
			return err
		}
		content, err := builder.DecodeContent(t, msg.Config)
		if err != nil {
			return fmt.Errorf("edit command: decode config: %w", wrapDecode(err))
		}
		patch.Config = content
	}
	if _, err := c.service.EditWidget(ctx, msg.WidgetID, patch); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "builder.command.edit", map[string]any{"widget_id": msg.WidgetID})
	return nil
}

func (c *EditWidgetCommand) widgetType(ctx context.Context, msg EditWidgetInput) (builder.WidgetType, error) {
	if msg.Type != nil {
		return *msg.Type, nil
	}
	doc, err := c.service.Current(ctx)
	if err != nil {
		return "", err
	}
	w, ok := doc.Widget(msg.WidgetID)
	if !ok {
		return "", fmt.Errorf("edit command: widget %q: %w", msg.WidgetID, builder.ErrNotFound)
	}
	return w.Type, nil
}

// ReorderWidgetsInput moves one widget (From, To) or, when WidgetIDs is set,
// applies a full ordering.
type ReorderWidgetsInput struct {
	From      int      `json:"from"`
	To        int      `json:"to"`
	WidgetIDs []string `json:"widgetIds,omitempty"`
}

type reorderService interface {
	Reorder(ctx context.Context, from, to int) (builder.DashboardDocument, error)
	Arrange(ctx context.Context, widgetIDs []string) (builder.DashboardDocument, error)
}

// ReorderWidgetsCommand wraps Controller.Reorder and Controller.Arrange.
type ReorderWidgetsCommand struct {
	service   reorderService
	telemetry Telemetry
}

// NewReorderWidgetsCommand builds the command.
func NewReorderWidgetsCommand(service reorderService, telemetry Telemetry) *ReorderWidgetsCommand {
	return &ReorderWidgetsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ReorderWidgetsInput] = (*ReorderWidgetsCommand)(nil)

// Execute applies the new ordering.
func (c *ReorderWidgetsCommand) Execute(ctx context.Context, msg ReorderWidgetsInput) error {
	if c.service == nil {
		return errors.New("reorder command requires service")
	}
	var err error
	if len(msg.WidgetIDs) > 0 {
		_, err = c.service.Arrange(ctx, msg.WidgetIDs)
	} else {
		_, err = c.service.Reorder(ctx, msg.From, msg.To)
	}
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "builder.command.reorder", map[string]any{
		"from":  msg.From,
		"to":    msg.To,
		"count": len(msg.WidgetIDs),
	})
	return nil
}

// ResizeWidgetInput changes a widget's size and optionally its position.
type ResizeWidgetInput struct {
	WidgetID string            `json:"widgetId"`
	Size     *builder.Size     `json:"size,omitempty"`
	Position *builder.Position `json:"position,omitempty"`
}

type resizeService interface {
	Layout(ctx context.Context, widgetID string, size *builder.Size, pos *builder.Position) (builder.DashboardDocument, error)
}

// ResizeWidgetCommand wraps Controller.Layout.
type ResizeWidgetCommand struct {
	service   resizeService
	telemetry Telemetry
}

// NewResizeWidgetCommand builds the command.
func NewResizeWidgetCommand(service resizeService, telemetry Telemetry) *ResizeWidgetCommand {
	return &ResizeWidgetCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ResizeWidgetInput] = (*ResizeWidgetCommand)(nil)

// Execute resizes and moves the widget in one change.
func (c *ResizeWidgetCommand) Execute(ctx context.Context, msg ResizeWidgetInput) error {
	if c.service == nil {
		return errors.New("resize command requires service")
	}
	if msg.WidgetID == "" {
		return fmt.Errorf("resize command requires widget id: %w", builder.ErrInvalidArgument)
	}
	if msg.Size == nil && msg.Position == nil {
		return fmt.Errorf("resize command requires size or position: %w", builder.ErrInvalidArgument)
	}
	if _, err := c.service.Layout(ctx, msg.WidgetID, msg.Size, msg.Position); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "builder.command.resize", map[string]any{"widget_id": msg.WidgetID})
	return nil
}

// hasConfig treats an omitted or null config as absent.
func hasConfig(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Malformed content is an argument error unless the type itself is unsupported.
func wrapDecode(err error) error {
	if errors.Is(err, builder.ErrUnsupportedWidget) {
		return err
	}
	return fmt.Errorf("%v: %w", err, builder.ErrInvalidArgument)
}
