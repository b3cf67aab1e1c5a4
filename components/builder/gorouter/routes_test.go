package gorouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dashboard-builder/components/builder"
	"github.com/goliatone/go-dashboard-builder/components/builder/httpapi"
	"github.com/goliatone/go-dashboard-builder/components/builder/queries"
)

func TestRegisterValidatesConfig(t *testing.T) {
	assert.Error(t, Register(Config[struct{}]{}))

	server := router.NewFiberAdapter()
	assert.Error(t, Register(Config[*fiber.App]{Router: server.Router()}))
}

func TestDefaultRouteConfig(t *testing.T) {
	routes := defaultRouteConfig(RouteConfig{Current: "/boards/active"})
	assert.Equal(t, "/boards/active/widgets", routes.Widgets)
	assert.Equal(t, "/boards/active/widgets/:id", routes.WidgetID)
	assert.Equal(t, "/boards/active/export.xlsx", routes.Export)
	assert.Equal(t, "/catalog", routes.Catalog)
}

func newTestServer(t *testing.T) (*fiber.App, *builder.Controller) {
	t.Helper()
	ctrl := builder.NewController(context.Background(), builder.ControllerOptions{})
	server := router.NewFiberAdapter()
	require.NoError(t, Register(Config[*fiber.App]{
		Router:   server.Router(),
		Handlers: httpapi.NewHandlers(ctrl, httpapi.Options{}),
	}))
	return server.WrappedRouter(), ctrl
}

func call(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRegisteredRoutesDriveController(t *testing.T) {
	app, ctrl := newTestServer(t)

	resp := call(t, app, http.MethodGet, "/builder/catalog?type=kpi", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing map[string][]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.NotEmpty(t, listing["kpi"])
	assert.Empty(t, listing["charts"])

	resp = call(t, app, http.MethodPost, "/builder/dashboards", `{"name":"Chantier Sud"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var cur queries.CurrentDashboard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cur))
	assert.Equal(t, "Chantier Sud", cur.Dashboard.Name)

	resp = call(t, app, http.MethodPost, "/builder/dashboards/current/widgets", `{"type":"kpi","sourceId":"maintenanceDue"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc, err := ctrl.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Widgets, 1)
	widgetID := doc.Widgets[0].ID

	resp = call(t, app, http.MethodPost, "/builder/dashboards/current/widgets/"+widgetID+"/layout", `{"size":[2,2],"position":[-1,0]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = call(t, app, http.MethodDelete, "/builder/dashboards/current/widgets/"+widgetID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err = ctrl.Current(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Widgets)

	resp = call(t, app, http.MethodDelete, "/builder/dashboards/current", "")
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
}

func TestRegisteredRoutesRejectBadBodies(t *testing.T) {
	app, _ := newTestServer(t)
	resp := call(t, app, http.MethodPost, "/builder/dashboards", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = call(t, app, http.MethodPost, "/builder/dashboards/missing/select", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
