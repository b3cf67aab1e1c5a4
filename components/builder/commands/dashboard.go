// Package commands exposes Controller operations as go-command commanders so
// transports can drive the builder without linking against the controller.
package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

// CreateDashboardInput names the new dashboard. Result receives its id.
type CreateDashboardInput struct {
	Name   string  `json:"name"`
	Result *string `json:"-"`
}

type createService interface {
	Create(ctx context.Context, name string) (string, error)
}

// CreateDashboardCommand wraps Controller.Create.
type CreateDashboardCommand struct {
	service   createService
	telemetry Telemetry
}

// NewCreateDashboardCommand builds the command.
func NewCreateDashboardCommand(service createService, telemetry Telemetry) *CreateDashboardCommand {
	return &CreateDashboardCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[CreateDashboardInput] = (*CreateDashboardCommand)(nil)

// Execute creates and selects the dashboard.
func (c *CreateDashboardCommand) Execute(ctx context.Context, msg CreateDashboardInput) error {
	if c.service == nil {
		return errors.New("create command requires service")
	}
	id, err := c.service.Create(ctx, msg.Name)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = id
	}
	c.telemetry.Record(ctx, "builder.command.create", map[string]any{"dashboard_id": id})
	return nil
}

// SelectDashboardInput identifies the dashboard to activate.
type SelectDashboardInput struct {
	DashboardID string `json:"dashboardId"`
}

type selectService interface {
	SelectDashboard(ctx context.Context, id string)
	Current(ctx context.Context) (builder.DashboardDocument, error)
}

// SelectDashboardCommand wraps Controller.SelectDashboard.
type SelectDashboardCommand struct {
	service   selectService
	telemetry Telemetry
}

// NewSelectDashboardCommand builds the command.
func NewSelectDashboardCommand(service selectService, telemetry Telemetry) *SelectDashboardCommand {
	return &SelectDashboardCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SelectDashboardInput] = (*SelectDashboardCommand)(nil)

// Execute activates the dashboard and fails when the id does not resolve.
func (c *SelectDashboardCommand) Execute(ctx context.Context, msg SelectDashboardInput) error {
	if c.service == nil {
		return errors.New("select command requires service")
	}
	if msg.DashboardID == "" {
		return errors.New("select command requires dashboard id")
	}
	c.service.SelectDashboard(ctx, msg.DashboardID)
	if _, err := c.service.Current(ctx); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "builder.command.select", map[string]any{"dashboard_id": msg.DashboardID})
	return nil
}

// RenameDashboardInput carries the new name for the active dashboard.
type RenameDashboardInput struct {
	Name string `json:"name"`
}

type renameService interface {
	Rename(ctx context.Context, name string) (builder.DashboardDocument, error)
}

// RenameDashboardCommand wraps Controller.Rename.
type RenameDashboardCommand struct {
	service   renameService
	telemetry Telemetry
}

// NewRenameDashboardCommand builds the command.
func NewRenameDashboardCommand(service renameService, telemetry Telemetry) *RenameDashboardCommand {
	return &RenameDashboardCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[RenameDashboardInput] = (*RenameDashboardCommand)(nil)

// Execute renames the active dashboard.
func (c *RenameDashboardCommand) Execute(ctx context.Context, msg RenameDashboardInput) error {
	if c.service == nil {
		return errors.New("rename command requires service")
	}
	doc, err := c.service.Rename(ctx, msg.Name)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "builder.command.rename", map[string]any{"dashboard_id": doc.ID})
	return nil
}

// DeleteDashboardInput deletes the active dashboard. Confirm must be set.
type DeleteDashboardInput struct {
	Confirm bool `json:"confirm"`
}

type deleteService interface {
	DeleteCurrent(ctx context.Context, confirm builder.ConfirmFunc) error
}

// DeleteDashboardCommand wraps Controller.DeleteCurrent.
type DeleteDashboardCommand struct {
	service   deleteService
	telemetry Telemetry
}

// NewDeleteDashboardCommand builds the command.
func NewDeleteDashboardCommand(service deleteService, telemetry Telemetry) *DeleteDashboardCommand {
	return &DeleteDashboardCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[DeleteDashboardInput] = (*DeleteDashboardCommand)(nil)

// Execute deletes the active dashboard once confirmed.
func (c *DeleteDashboardCommand) Execute(ctx context.Context, msg DeleteDashboardInput) error {
	if c.service == nil {
		return errors.New("delete command requires service")
	}
	var deleted string
	confirm := func(_ context.Context, doc builder.DashboardDocument) bool {
		deleted = doc.ID
		return msg.Confirm
	}
	if err := c.service.DeleteCurrent(ctx, confirm); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "builder.command.delete", map[string]any{"dashboard_id": deleted})
	return nil
}
