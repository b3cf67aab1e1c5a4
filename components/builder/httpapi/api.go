// Package httpapi exposes the builder over a Fiber JSON API and a WebSocket
// stream of dashboard events.
package httpapi

import (
	"bytes"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	gocommand "github.com/goliatone/go-command"
	"go.uber.org/zap"

	"github.com/goliatone/go-dashboard-builder/components/builder"
	"github.com/goliatone/go-dashboard-builder/components/builder/commands"
	"github.com/goliatone/go-dashboard-builder/components/builder/export"
	"github.com/goliatone/go-dashboard-builder/components/builder/queries"
	"github.com/goliatone/go-dashboard-builder/pkg/analysis"
)

// ChartRenderer renders a chart widget to HTML.
type ChartRenderer interface {
	Render(w builder.WidgetConfig) (string, error)
}

// EventSource streams dashboard events.
type EventSource interface {
	Subscribe() (<-chan builder.DashboardEvent, func())
}

// Handlers exposes HTTP endpoints backed by shared commands and queries.
type Handlers struct {
	Create      gocommand.Commander[commands.CreateDashboardInput]
	Select      gocommand.Commander[commands.SelectDashboardInput]
	Rename      gocommand.Commander[commands.RenameDashboardInput]
	Delete      gocommand.Commander[commands.DeleteDashboardInput]
	Add         gocommand.Commander[commands.AddWidgetInput]
	Remove      gocommand.Commander[commands.RemoveWidgetInput]
	Edit        gocommand.Commander[commands.EditWidgetInput]
	Reorder     gocommand.Commander[commands.ReorderWidgetsInput]
	Resize      gocommand.Commander[commands.ResizeWidgetInput]
	EditMode    gocommand.Commander[commands.EditModeInput]
	Suggestions gocommand.Commander[commands.ApplySuggestionsInput]

	List    gocommand.Querier[queries.ListDashboardsInput, []queries.DashboardSummary]
	Current gocommand.Querier[queries.CurrentDashboardInput, queries.CurrentDashboard]
	Catalog gocommand.Querier[queries.CatalogInput, builder.CatalogListing]

	Charts   ChartRenderer
	Analysis analysis.Client
	Events   EventSource
	Logger   *zap.Logger
}

// Options carries the optional collaborators of NewHandlers.
type Options struct {
	Charts    ChartRenderer
	Analysis  analysis.Client
	Events    EventSource
	Telemetry commands.Telemetry
	Logger    *zap.Logger
}

// NewHandlers wires every command and query against the controller.
func NewHandlers(ctrl *builder.Controller, opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	t := opts.Telemetry
	return &Handlers{
		Create:      commands.NewCreateDashboardCommand(ctrl, t),
		Select:      commands.NewSelectDashboardCommand(ctrl, t),
		Rename:      commands.NewRenameDashboardCommand(ctrl, t),
		Delete:      commands.NewDeleteDashboardCommand(ctrl, t),
		Add:         commands.NewAddWidgetCommand(ctrl, t),
		Remove:      commands.NewRemoveWidgetCommand(ctrl, t),
		Edit:        commands.NewEditWidgetCommand(ctrl, t),
		Reorder:     commands.NewReorderWidgetsCommand(ctrl, t),
		Resize:      commands.NewResizeWidgetCommand(ctrl, t),
		EditMode:    commands.NewEditModeCommand(ctrl, t),
		Suggestions: commands.NewApplySuggestionsCommand(ctrl, t),
		List:        queries.NewListDashboardsQuery(ctrl),
		Current:     queries.NewCurrentDashboardQuery(ctrl),
		Catalog:     queries.NewCatalogQuery(ctrl),
		Charts:      opts.Charts,
		Analysis:    opts.Analysis,
		Events:      opts.Events,
		Logger:      opts.Logger.Named("http"),
	}
}

// Register mounts the API on router.
func (h *Handlers) Register(router fiber.Router) {
	api := router.Group("/api")
	api.Get("/catalog", h.HandleCatalog)
	api.Post("/analysis", h.HandleAnalysis)

	dashboards := api.Group("/dashboards")
	dashboards.Get("/", h.HandleList)
	dashboards.Post("/", h.HandleCreate)

	current := dashboards.Group("/current")
	current.Get("/", h.HandleCurrent)
	current.Delete("/", h.HandleDelete)
	current.Put("/name", h.HandleRename)
	current.Post("/edit", h.editMode(commands.EditBegin))
	current.Post("/save", h.editMode(commands.EditSave))
	current.Post("/cancel", h.editMode(commands.EditCancel))
	current.Get("/export.xlsx", h.HandleExport)
	current.Post("/widgets", h.HandleAddWidget)
	current.Post("/widgets/reorder", h.HandleReorder)
	current.Patch("/widgets/:widgetId", h.HandleEditWidget)
	current.Delete("/widgets/:widgetId", h.HandleRemoveWidget)
	current.Put("/widgets/:widgetId/layout", h.HandleResize)
	current.Get("/widgets/:widgetId/chart", h.HandleChart)

	dashboards.Post("/:id/select", h.HandleSelect)

	if h.Events != nil {
		h.registerStream(router)
	}
}

func (h *Handlers) HandleCatalog(c *fiber.Ctx) error {
	listing, err := h.Catalog.Query(c.UserContext(), queries.CatalogInput{Type: builder.WidgetType(c.Query("type"))})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(listing)
}

func (h *Handlers) HandleList(c *fiber.Ctx) error {
	rows, err := h.List.Query(c.UserContext(), queries.ListDashboardsInput{})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": rows})
}

func (h *Handlers) HandleCreate(c *fiber.Ctx) error {
	var in commands.CreateDashboardInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	var id string
	in.Result = &id
	if err := h.Create.Execute(c.UserContext(), in); err != nil {
		return h.fail(c, err)
	}
	return h.respondCurrent(c, fiber.StatusCreated)
}

func (h *Handlers) HandleCurrent(c *fiber.Ctx) error {
	return h.respondCurrent(c, fiber.StatusOK)
}

func (h *Handlers) HandleSelect(c *fiber.Ctx) error {
	if err := h.Select.Execute(c.UserContext(), commands.SelectDashboardInput{DashboardID: c.Params("id")}); err != nil {
		return h.fail(c, err)
	}
	return h.respondCurrent(c, fiber.StatusOK)
}

func (h *Handlers) HandleRename(c *fiber.Ctx) error {
	var in commands.RenameDashboardInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := h.Rename.Execute(c.UserContext(), in); err != nil {
		return h.fail(c, err)
	}
	return h.respondCurrent(c, fiber.StatusOK)
}

// HandleDelete removes the active dashboard; it requires ?confirm=true.
func (h *Handlers) HandleDelete(c *fiber.Ctx) error {
	in := commands.DeleteDashboardInput{Confirm: c.QueryBool("confirm", false)}
	if err := h.Delete.Execute(c.UserContext(), in); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) editMode(action commands.EditAction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := h.EditMode.Execute(c.UserContext(), commands.EditModeInput{Action: action}); err != nil {
			return h.fail(c, err)
		}
		return h.respondCurrent(c, fiber.StatusOK)
	}
}

func (h *Handlers) HandleAddWidget(c *fiber.Ctx) error {
	var in commands.AddWidgetInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := h.Add.Execute(c.UserContext(), in); err != nil {
		return h.fail(c, err)
	}
	return h.respondCurrent(c, fiber.StatusCreated)
}

func (h *Handlers) HandleEditWidget(c *fiber.Ctx) error {
	var in commands.EditWidgetInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	in.WidgetID = c.Params("widgetId")
	if err := h.Edit.Execute(c.UserContext(), in); err != nil {
		return h.fail(c, err)
	}
	return h.respondCurrent(c, fiber.StatusOK)
}

func (h *Handlers) HandleRemoveWidget(c *fiber.Ctx) error {
	widgetID := c.Params("widgetId")
	if err := h.Remove.Execute(c.UserContext(), commands.RemoveWidgetInput{WidgetID: widgetID}); err != nil {
		return h.fail(c, err)
	}
	if f, ok := h.Charts.(interface{ Forget(string) }); ok {
		f.Forget(widgetID)
	}
	return h.respondCurrent(c, fiber.StatusOK)
}

func (h *Handlers) HandleReorder(c *fiber.Ctx) error {
	var in commands.ReorderWidgetsInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := h.Reorder.Execute(c.UserContext(), in); err != nil {
		return h.fail(c, err)
	}
	return h.respondCurrent(c, fiber.StatusOK)
}

func (h *Handlers) HandleResize(c *fiber.Ctx) error {
	var in commands.ResizeWidgetInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	in.WidgetID = c.Params("widgetId")
	if err := h.Resize.Execute(c.UserContext(), in); err != nil {
		return h.fail(c, err)
	}
	return h.respondCurrent(c, fiber.StatusOK)
}

// HandleChart returns the rendered chart HTML for a widget on the active dashboard.
func (h *Handlers) HandleChart(c *fiber.Ctx) error {
	if h.Charts == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "chart rendering is not configured"})
	}
	cur, err := h.Current.Query(c.UserContext(), queries.CurrentDashboardInput{})
	if err != nil {
		return h.fail(c, err)
	}
	widget, ok := cur.Dashboard.Widget(c.Params("widgetId"))
	if !ok {
		return h.fail(c, builder.ErrNotFound)
	}
	html, err := h.Charts.Render(widget)
	if err != nil {
		return h.fail(c, err)
	}
	c.Type("html")
	return c.SendString(html)
}

func (h *Handlers) HandleExport(c *fiber.Ctx) error {
	cur, err := h.Current.Query(c.UserContext(), queries.CurrentDashboardInput{})
	if err != nil {
		return h.fail(c, err)
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, cur.Dashboard); err != nil {
		return h.fail(c, err)
	}
	c.Attachment(export.FileName(cur.Dashboard))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(buf.Bytes())
}

type analysisInput struct {
	Prompt string `json:"prompt"`
	Apply  bool   `json:"apply"`
}

// HandleAnalysis forwards the prompt with the active dashboard to the
// analysis service and, when asked, applies its suggestions.
func (h *Handlers) HandleAnalysis(c *fiber.Ctx) error {
	if h.Analysis == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "analysis service is not configured"})
	}
	var in analysisInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	ctx := c.UserContext()
	var doc builder.DashboardDocument
	cur, err := h.Current.Query(ctx, queries.CurrentDashboardInput{})
	switch {
	case err == nil:
		doc = cur.Dashboard
	case errors.Is(err, builder.ErrNoDashboard):
	default:
		return h.fail(c, err)
	}
	resp, err := h.Analysis.Analyze(ctx, analysis.NewRequest(in.Prompt, doc))
	if err != nil {
		h.Logger.Warn("analysis request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	applied := 0
	if in.Apply {
		if err := h.Suggestions.Execute(ctx, commands.ApplySuggestionsInput{
			Suggestions: resp.WidgetSuggestions(),
			Applied:     &applied,
		}); err != nil {
			return h.fail(c, err)
		}
	}
	return c.JSON(fiber.Map{"analysis": resp, "applied": applied})
}

func (h *Handlers) respondCurrent(c *fiber.Ctx, status int) error {
	cur, err := h.Current.Query(c.UserContext(), queries.CurrentDashboardInput{})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(status).JSON(cur)
}

func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  builder.KindOf(err),
	})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
		"kind":  builder.KindInvalidArgument,
	})
}

// StatusFor maps builder error kinds to HTTP status codes.
func StatusFor(err error) int {
	switch builder.KindOf(err) {
	case "":
		return fiber.StatusOK
	case builder.KindNotFound:
		return fiber.StatusNotFound
	case builder.KindInvalidArgument, builder.KindUnsupported:
		return fiber.StatusBadRequest
	case builder.KindOutOfRange:
		return fiber.StatusUnprocessableEntity
	case builder.KindConflict:
		return fiber.StatusConflict
	case builder.KindNotConfirmed:
		return fiber.StatusPreconditionFailed
	case builder.KindCatalogUnavailable:
		return fiber.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}
