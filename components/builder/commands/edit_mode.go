package commands

import (
	"context"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

// EditAction names an edit session transition.
type EditAction string

const (
	EditBegin  EditAction = "begin"
	EditSave   EditAction = "save"
	EditCancel EditAction = "cancel"
)

// EditModeInput drives the edit session.
type EditModeInput struct {
	Action EditAction `json:"action"`
}

type editModeService interface {
	BeginEdit(ctx context.Context) (builder.DashboardDocument, error)
	SaveEdit(ctx context.Context) (builder.DashboardDocument, error)
	CancelEdit(ctx context.Context) (builder.DashboardDocument, error)
}

// EditModeCommand wraps BeginEdit, SaveEdit and CancelEdit.
type EditModeCommand struct {
	service   editModeService
	telemetry Telemetry
}

// NewEditModeCommand builds the command.
func NewEditModeCommand(service editModeService, telemetry Telemetry) *EditModeCommand {
	return &EditModeCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[EditModeInput] = (*EditModeCommand)(nil)

// Execute performs the requested transition.
func (c *EditModeCommand) Execute(ctx context.Context, msg EditModeInput) error {
	if c.service == nil {
		return errors.New("edit mode command requires service")
	}
	var (
		doc builder.DashboardDocument
		err error
	)
	switch msg.Action {
	case EditBegin:
		doc, err = c.service.BeginEdit(ctx)
	case EditSave:
		doc, err = c.service.SaveEdit(ctx)
	case EditCancel:
		doc, err = c.service.CancelEdit(ctx)
	default:
		return fmt.Errorf("edit mode command: unknown action %q: %w", msg.Action, builder.ErrInvalidArgument)
	}
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "builder.command.edit_mode", map[string]any{
		"dashboard_id": doc.ID,
		"action":       string(msg.Action),
	})
	return nil
}
