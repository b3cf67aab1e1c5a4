package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

func TestWriteXLSXStarterDashboard(t *testing.T) {
	doc := builder.StarterDashboard(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, doc))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Equal(t, kpiSheet, sheets[0])
	assert.Contains(t, sheets, "Engins par type")
	assert.Contains(t, sheets, "Répartition par statut")

	rows, err := f.GetRows(kpiSheet)
	require.NoError(t, err)
	assert.Equal(t, kpiColumns, rows[0])
	assert.Equal(t, []string{"Total des engins", "2,845", "+12.5%", "Engins suivis sur l'ensemble des sites", "totalEquipments"}, rows[1])

	chartRows, err := f.GetRows("Engins par type")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "value"}, chartRows[0])
	assert.Equal(t, []string{"Pelles", "540"}, chartRows[1])
}

func TestChartTableSortsSeriesKeys(t *testing.T) {
	columns, rows := chartTable(builder.ChartConfig{Data: []builder.ChartRecord{
		{"name": "T1", "preventif": 1.0, "correctif": 2.0},
		{"name": "T2", "autre": 3.0},
	}})
	assert.Equal(t, []string{"name", "autre", "correctif", "preventif"}, columns)
	assert.Equal(t, []any{"T2", 3.0, nil, nil}, rows[1])
}

func TestUniqueSheetNames(t *testing.T) {
	used := map[string]bool{"kpis": true}
	long := strings.Repeat("Consommation ", 4)

	first := uniqueSheetName(long, "w1", used)
	second := uniqueSheetName(long, "w2", used)
	assert.LessOrEqual(t, len([]rune(first)), maxSheetName)
	assert.LessOrEqual(t, len([]rune(second)), maxSheetName)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, " (2)"))

	assert.Equal(t, "KPIs (2)", uniqueSheetName("KPIs", "w3", used))
	assert.Equal(t, "a-b-c", uniqueSheetName("a/b:c", "w4", used))
	assert.Equal(t, "w5", uniqueSheetName("  ", "w5", used))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "parc-engins.xlsx", FileName(builder.DashboardDocument{ID: "d", Name: "Parc Engins"}))
	assert.Equal(t, "d.xlsx", FileName(builder.DashboardDocument{ID: "d"}))
}
