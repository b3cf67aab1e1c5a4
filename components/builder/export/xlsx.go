// Package export writes dashboard documents to spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ettle/strcase"
	"github.com/xuri/excelize/v2"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

const (
	kpiSheet     = "KPIs"
	maxSheetName = 31
)

var kpiColumns = []string{"title", "value", "trend", "description", "sourceData"}

// FileName derives a download name for the document.
func FileName(doc builder.DashboardDocument) string {
	base := strcase.ToKebab(doc.Name)
	if base == "" {
		base = doc.ID
	}
	return base + ".xlsx"
}

// WriteXLSX writes a workbook with a KPIs sheet and one sheet per chart widget.
func WriteXLSX(w io.Writer, doc builder.DashboardDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", kpiSheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	var kpiRows [][]any
	used := map[string]bool{strings.ToLower(kpiSheet): true}
	for _, widget := range doc.Widgets {
		switch cfg := widget.Config.(type) {
		case builder.KPIConfig:
			trend := ""
			if cfg.Trend != nil {
				trend = *cfg.Trend
			}
			kpiRows = append(kpiRows, []any{widget.Title, cfg.Value, trend, cfg.Description, widget.SourceData})
		case builder.ChartConfig:
			name := uniqueSheetName(widget.Title, widget.ID, used)
			if _, err := f.NewSheet(name); err != nil {
				return fmt.Errorf("export: sheet %s: %w", name, err)
			}
			columns, rows := chartTable(cfg)
			if err := writeTable(f, name, header, columns, rows); err != nil {
				return err
			}
		}
	}
	if err := writeTable(f, kpiSheet, header, kpiColumns, kpiRows); err != nil {
		return err
	}
	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header int, columns []string, rows [][]any) error {
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return fmt.Errorf("export: %s header: %w", sheet, err)
		}
		_ = f.SetCellStyle(sheet, cell, cell, header)
	}
	for r, row := range rows {
		for c, value := range row {
			if value == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("export: %s %s: %w", sheet, cell, err)
			}
		}
	}
	for i := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, 18)
	}
	return nil
}

// chartTable lays records out as name followed by the other keys sorted.
func chartTable(cfg builder.ChartConfig) ([]string, [][]any) {
	seen := map[string]bool{}
	var keys []string
	for _, rec := range cfg.Data {
		for key := range rec {
			if key != "name" && !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	columns := append([]string{"name"}, keys...)
	rows := make([][]any, 0, len(cfg.Data))
	for _, rec := range cfg.Data {
		row := make([]any, len(columns))
		for i, col := range columns {
			row[i] = rec[col]
		}
		rows = append(rows, row)
	}
	return columns, rows
}

func uniqueSheetName(title, fallback string, used map[string]bool) string {
	base := sanitizeSheetName(title)
	if base == "" {
		base = sanitizeSheetName(fallback)
	}
	if base == "" {
		base = "Chart"
	}
	name := base
	// Sheet names are case-insensitive.
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func sanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	return truncateRunes(name, maxSheetName)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
