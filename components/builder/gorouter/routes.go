// Package gorouter mounts the builder API on a go-router router, so hosts that
// already run go-router (Fiber or otherwise) get the same endpoints as httpapi.
package gorouter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-dashboard-builder/components/builder"
	"github.com/goliatone/go-dashboard-builder/components/builder/commands"
	"github.com/goliatone/go-dashboard-builder/components/builder/export"
	"github.com/goliatone/go-dashboard-builder/components/builder/httpapi"
	"github.com/goliatone/go-dashboard-builder/components/builder/queries"
)

// Config wires go-router with the builder handlers and event stream.
type Config[T any] struct {
	Router   router.Router[T]
	Handlers *httpapi.Handlers
	// Events, when set, is streamed over the WebSocket route.
	Events   httpapi.EventSource
	BasePath string
	Routes   RouteConfig
}

// RouteConfig customizes the relative paths used for builder endpoints.
type RouteConfig struct {
	Catalog    string
	Dashboards string
	Current    string
	Select     string
	Widgets    string
	WidgetID   string
	Export     string
	WebSocket  string
}

// Register mounts the builder routes (JSON, export, WebSocket) on cfg.Router.
// Only GET, POST and DELETE are used; edits and layout changes are POSTs.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Handlers == nil {
		return errors.New("gorouter: handlers are required")
	}
	routes := defaultRouteConfig(cfg.Routes)
	base := cfg.BasePath
	if base == "" {
		base = "/builder"
	}
	h := cfg.Handlers
	group := cfg.Router.Group(base)

	group.Get(routes.Catalog, router.WrapHandler(func(ctx router.Context) error {
		listing, err := h.Catalog.Query(ctx.Context(), queries.CatalogInput{Type: builder.WidgetType(ctx.Query("type"))})
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, listing)
	}))

	group.Get(routes.Dashboards, router.WrapHandler(func(ctx router.Context) error {
		rows, err := h.List.Query(ctx.Context(), queries.ListDashboardsInput{})
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, map[string]any{"data": rows})
	}))

	group.Post(routes.Dashboards, router.WrapHandler(func(ctx router.Context) error {
		var in commands.CreateDashboardInput
		if err := json.Unmarshal(ctx.Body(), &in); err != nil {
			return badBody(ctx)
		}
		if err := h.Create.Execute(ctx.Context(), in); err != nil {
			return respondError(ctx, err)
		}
		return respondCurrent(ctx, h, http.StatusCreated)
	}))

	group.Post(routes.Select, router.WrapHandler(func(ctx router.Context) error {
		if err := h.Select.Execute(ctx.Context(), commands.SelectDashboardInput{DashboardID: ctx.Param("id")}); err != nil {
			return respondError(ctx, err)
		}
		return respondCurrent(ctx, h, http.StatusOK)
	}))

	group.Get(routes.Current, router.WrapHandler(func(ctx router.Context) error {
		return respondCurrent(ctx, h, http.StatusOK)
	}))

	group.Delete(routes.Current, router.WrapHandler(func(ctx router.Context) error {
		in := commands.DeleteDashboardInput{Confirm: strings.EqualFold(ctx.Query("confirm"), "true")}
		if err := h.Delete.Execute(ctx.Context(), in); err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "deleted"})
	}))

	group.Post(routes.Current+"/name", router.WrapHandler(func(ctx router.Context) error {
		var in commands.RenameDashboardInput
		if err := json.Unmarshal(ctx.Body(), &in); err != nil {
			return badBody(ctx)
		}
		if err := h.Rename.Execute(ctx.Context(), in); err != nil {
			return respondError(ctx, err)
		}
		return respondCurrent(ctx, h, http.StatusOK)
	}))

	for path, action := range map[string]commands.EditAction{
		"/edit":   commands.EditBegin,
		"/save":   commands.EditSave,
		"/cancel": commands.EditCancel,
	} {
		action := action
		group.Post(routes.Current+path, router.WrapHandler(func(ctx router.Context) error {
			if err := h.EditMode.Execute(ctx.Context(), commands.EditModeInput{Action: action}); err != nil {
				return respondError(ctx, err)
			}
			return respondCurrent(ctx, h, http.StatusOK)
		}))
	}

	registerWidgets(group, h, routes)

	group.Get(routes.Export, router.WrapHandler(func(ctx router.Context) error {
		cur, err := h.Current.Query(ctx.Context(), queries.CurrentDashboardInput{})
		if err != nil {
			return respondError(ctx, err)
		}
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, cur.Dashboard); err != nil {
			return respondError(ctx, err)
		}
		ctx.SetHeader("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		ctx.SetHeader("Content-Disposition", `attachment; filename="`+export.FileName(cur.Dashboard)+`"`)
		return ctx.Send(buf.Bytes())
	}))

	if cfg.Events != nil {
		registerWebSocket(group, cfg.Events, routes.WebSocket)
	}
	return nil
}

func registerWidgets[T any](r router.Router[T], h *httpapi.Handlers, routes RouteConfig) {
	r.Post(routes.Widgets, router.WrapHandler(func(ctx router.Context) error {
		var in commands.AddWidgetInput
		if err := json.Unmarshal(ctx.Body(), &in); err != nil {
			return badBody(ctx)
		}
		if err := h.Add.Execute(ctx.Context(), in); err != nil {
			return respondError(ctx, err)
		}
		return respondCurrent(ctx, h, http.StatusCreated)
	}))

	r.Post(routes.Widgets+"/reorder", router.WrapHandler(func(ctx router.Context) error {
		var in commands.ReorderWidgetsInput
		if err := json.Unmarshal(ctx.Body(), &in); err != nil {
			return badBody(ctx)
		}
		if err := h.Reorder.Execute(ctx.Context(), in); err != nil {
			return respondError(ctx, err)
		}
		return respondCurrent(ctx, h, http.StatusOK)
	}))

	r.Post(routes.WidgetID, router.WrapHandler(func(ctx router.Context) error {
		var in commands.EditWidgetInput
		if err := json.Unmarshal(ctx.Body(), &in); err != nil {
			return badBody(ctx)
		}
		in.WidgetID = ctx.Param("id")
		if err := h.Edit.Execute(ctx.Context(), in); err != nil {
			return respondError(ctx, err)
		}
		return respondCurrent(ctx, h, http.StatusOK)
	}))

	r.Post(routes.WidgetID+"/layout", router.WrapHandler(func(ctx router.Context) error {
		var in commands.ResizeWidgetInput
		if err := json.Unmarshal(ctx.Body(), &in); err != nil {
			return badBody(ctx)
		}
		in.WidgetID = ctx.Param("id")
		if err := h.Resize.Execute(ctx.Context(), in); err != nil {
			return respondError(ctx, err)
		}
		return respondCurrent(ctx, h, http.StatusOK)
	}))

	r.Delete(routes.WidgetID, router.WrapHandler(func(ctx router.Context) error {
		id := ctx.Param("id")
		if id == "" {
			return respondError(ctx, builder.ErrInvalidArgument)
		}
		if err := h.Remove.Execute(ctx.Context(), commands.RemoveWidgetInput{WidgetID: id}); err != nil {
			return respondError(ctx, err)
		}
		return respondCurrent(ctx, h, http.StatusOK)
	}))
}

func registerWebSocket[T any](r router.Router[T], events httpapi.EventSource, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		stream, cancel := events.Subscribe()
		defer cancel()
		for {
			select {
			case event, ok := <-stream:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(event); err != nil {
					return err
				}
			case <-ws.Context().Done():
				return ws.Close()
			}
		}
	})
}

func badBody(ctx router.Context) error {
	return ctx.JSON(http.StatusBadRequest, map[string]string{
		"error": "Invalid request body",
		"kind":  string(builder.KindInvalidArgument),
	})
}

func respondCurrent(ctx router.Context, h *httpapi.Handlers, status int) error {
	cur, err := h.Current.Query(ctx.Context(), queries.CurrentDashboardInput{})
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(status, cur)
}

func respondError(ctx router.Context, err error) error {
	return ctx.JSON(httpapi.StatusFor(err), map[string]string{
		"error": err.Error(),
		"kind":  string(builder.KindOf(err)),
	})
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.Catalog == "" {
		routes.Catalog = "/catalog"
	}
	if routes.Dashboards == "" {
		routes.Dashboards = "/dashboards"
	}
	if routes.Current == "" {
		routes.Current = "/dashboards/current"
	}
	if routes.Select == "" {
		routes.Select = "/dashboards/:id/select"
	}
	if routes.Widgets == "" {
		routes.Widgets = routes.Current + "/widgets"
	}
	if routes.WidgetID == "" {
		routes.WidgetID = routes.Widgets + "/:id"
	}
	if routes.Export == "" {
		routes.Export = routes.Current + "/export.xlsx"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/ws"
	}
	return routes
}
