package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-dashboard-builder/components/builder"
	"github.com/goliatone/go-dashboard-builder/components/builder/queries"
	"github.com/goliatone/go-dashboard-builder/components/builder/render"
	"github.com/goliatone/go-dashboard-builder/pkg/analysis"
)

func newTestApp(t *testing.T) (*fiber.App, *builder.Controller, *builder.BroadcastHook) {
	t.Helper()
	hook := builder.NewBroadcastHook()
	ctrl := builder.NewController(context.Background(), builder.ControllerOptions{RefreshHook: hook})
	handlers := NewHandlers(ctrl, Options{
		Charts:   render.New(render.Options{Cache: render.NewChartCache(0)}),
		Analysis: analysis.NewMockClient(),
		Events:   hook,
	})
	app := fiber.New()
	handlers.Register(app)
	return app, ctrl, hook
}

func do(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeCurrent(t *testing.T, resp *http.Response) queries.CurrentDashboard {
	t.Helper()
	defer resp.Body.Close()
	var cur queries.CurrentDashboard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cur))
	return cur
}

func errorKind(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.NotEmpty(t, payload["error"])
	kind, _ := payload["kind"].(string)
	return kind
}

func TestCatalogEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)
	resp := do(t, app, http.MethodGet, "/api/catalog?type=chart", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listing map[string][]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Empty(t, listing["kpi"])
	assert.Len(t, listing["charts"], 5)
}

func TestCreateListAndSelect(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/api/dashboards", `{"name":"Chantier Sud"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decodeCurrent(t, resp)
	assert.Equal(t, "Chantier Sud", created.Dashboard.Name)
	assert.Empty(t, created.Dashboard.Widgets)

	resp = do(t, app, http.MethodGet, "/api/dashboards", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list struct {
		Data []queries.DashboardSummary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Data, 2)

	resp = do(t, app, http.MethodPost, "/api/dashboards/"+builder.StarterDashboardID+"/select", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, builder.StarterDashboardID, decodeCurrent(t, resp).Dashboard.ID)

	resp = do(t, app, http.MethodPost, "/api/dashboards/missing/select", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(builder.KindNotFound), errorKind(t, resp))

	resp = do(t, app, http.MethodPost, "/api/dashboards", `{"name":"   "}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWidgetLifecycle(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/api/dashboards/current/widgets", `{"type":"chart","sourceId":"fuelConsumption"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	doc := decodeCurrent(t, resp).Dashboard
	added := doc.Widgets[len(doc.Widgets)-1]
	assert.Equal(t, "fuelConsumption", added.SourceData)

	resp = do(t, app, http.MethodPatch, "/api/dashboards/current/widgets/"+added.ID, `{"title":"Carburant"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	w, _ := decodeCurrent(t, resp).Dashboard.Widget(added.ID)
	assert.Equal(t, "Carburant", w.Title)

	resp = do(t, app, http.MethodPut, "/api/dashboards/current/widgets/"+added.ID+"/layout", `{"size":[3,2]}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	w, _ = decodeCurrent(t, resp).Dashboard.Widget(added.ID)
	assert.Equal(t, builder.Size{Columns: 3, Rows: 2}, w.Size)

	resp = do(t, app, http.MethodGet, "/api/dashboards/current/widgets/"+added.ID+"/chart", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "echarts")

	resp = do(t, app, http.MethodPost, "/api/dashboards/current/widgets/reorder", fmt.Sprintf(`{"from":%d,"to":0}`, len(doc.Widgets)-1))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, added.ID, decodeCurrent(t, resp).Dashboard.Widgets[0].ID)

	resp = do(t, app, http.MethodDelete, "/api/dashboards/current/widgets/"+added.ID, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, ok := decodeCurrent(t, resp).Dashboard.Widget(added.ID)
	assert.False(t, ok)
}

func TestErrorStatuses(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/api/dashboards/current/widgets", `{"type":"kpi","sourceId":"nope"}`)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/api/dashboards/current/widgets/reorder", `{"from":0,"to":42}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/api/dashboards/current/widgets", `{"type":"table","sourceId":"x"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(builder.KindUnsupported), errorKind(t, resp))

	resp = do(t, app, http.MethodGet, "/api/dashboards/current/widgets/starter-totalEquipments/chart", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/api/dashboards/current/widgets", `not json`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	app, ctrl, _ := newTestApp(t)

	resp := do(t, app, http.MethodDelete, "/api/dashboards/current", "")
	assert.Equal(t, fiber.StatusPreconditionFailed, resp.StatusCode)
	assert.Len(t, ctrl.List(context.Background()), 1)

	resp = do(t, app, http.MethodDelete, "/api/dashboards/current?confirm=true", "")
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Empty(t, ctrl.List(context.Background()))

	resp = do(t, app, http.MethodGet, "/api/dashboards/current", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEditSessionEndpoints(t *testing.T) {
	app, ctrl, _ := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/api/dashboards/current/edit", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, builder.ModeEditing, decodeCurrent(t, resp).Mode)

	resp = do(t, app, http.MethodPut, "/api/dashboards/current/name", `{"name":"Brouillon"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	stored := ctrl.List(context.Background())[0]
	assert.Equal(t, builder.StarterDashboardName, stored.Name, "drafts are not persisted")

	resp = do(t, app, http.MethodPost, "/api/dashboards/current/save", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cur := decodeCurrent(t, resp)
	assert.Equal(t, builder.ModeViewing, cur.Mode)
	assert.Equal(t, "Brouillon", cur.Dashboard.Name)

	resp = do(t, app, http.MethodPost, "/api/dashboards/current/save", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)
	resp := do(t, app, http.MethodGet, "/api/dashboards/current/export.xlsx", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "tableau-de-bord-principal.xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "KPIs", f.GetSheetList()[0])
}

func TestAnalysisEndpointAppliesSuggestions(t *testing.T) {
	app, _, _ := newTestApp(t)
	resp := do(t, app, http.MethodPost, "/api/analysis", `{"prompt":"consommation de carburant","apply":true}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var payload struct {
		Analysis analysis.Response `json:"analysis"`
		Applied  int               `json:"applied"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, 1, payload.Applied)
	require.Len(t, payload.Analysis.Suggestions, 1)
	assert.Equal(t, "fuelConsumption", payload.Analysis.Suggestions[0].SourceID)
}

func TestAnalysisEndpointWithoutClient(t *testing.T) {
	ctrl := builder.NewController(context.Background(), builder.ControllerOptions{})
	app := fiber.New()
	NewHandlers(ctrl, Options{}).Register(app)

	resp := do(t, app, http.MethodPost, "/api/analysis", `{"prompt":"x"}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	resp = do(t, app, http.MethodGet, "/api/dashboards/current/widgets/starter-equipmentByType/chart", "")
	assert.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)
	resp = do(t, app, http.MethodGet, "/ws", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestStreamRequiresUpgrade(t *testing.T) {
	app, _, _ := newTestApp(t)
	resp := do(t, app, http.MethodGet, "/ws", "")
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		builder.ErrNotFound:                      fiber.StatusNotFound,
		builder.ErrNoDashboard:                   fiber.StatusNotFound,
		builder.ErrInvalidArgument:               fiber.StatusBadRequest,
		builder.ErrUnsupportedWidget:             fiber.StatusBadRequest,
		builder.ErrOutOfRange:                    fiber.StatusUnprocessableEntity,
		builder.ErrConflict:                      fiber.StatusConflict,
		builder.ErrNotConfirmed:                  fiber.StatusPreconditionFailed,
		builder.ErrCatalogUnavailable:            fiber.StatusServiceUnavailable,
		fmt.Errorf("x: %w", builder.ErrConflict): fiber.StatusConflict,
		errors.New("boom"):                       fiber.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}
