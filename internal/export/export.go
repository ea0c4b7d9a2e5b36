// Package export writes chunk metric rows for downstream analysis as an
// XLSX workbook or JSON.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/politicsradar/polr/internal/classify"
	"github.com/politicsradar/polr/internal/store"
)

// Sheet names.
const (
	SheetMetrics = "metrics"
	SheetDepth   = "depth_by_category"
)

// MaxDepth is the deepest depth level column in the pivot sheet.
const MaxDepth = 3

var metricHeader = []interface{}{
	"chunk_id", "speech_id", "order_in_speech", "pm_term_id", "pm_name", "title",
	"dt", "date", "category", "depth_level", "origin_phase", "text",
}

// WriteXLSX writes rows as a workbook with one row per chunk metric and a
// category by depth count pivot.
func WriteXLSX(w io.Writer, rows []*store.ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetMetrics); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := writeRow(f, SheetMetrics, 1, metricHeader); err != nil {
		return err
	}
	for i, r := range rows {
		values := []interface{}{
			r.ChunkID, r.SpeechID, r.Ordinal, r.TermID, r.Name, r.Title,
			r.DT, r.Date, r.Category, r.DepthLevel, r.OriginPhase, r.Text,
		}
		if err := writeRow(f, SheetMetrics, i+2, values); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(SheetMetrics, 1, 1, header); err != nil {
		return fmt.Errorf("styling %s header: %w", SheetMetrics, err)
	}
	if err := f.SetPanes(SheetMetrics, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freezing %s header: %w", SheetMetrics, err)
	}

	if _, err := f.NewSheet(SheetDepth); err != nil {
		return fmt.Errorf("creating sheet %s: %w", SheetDepth, err)
	}
	pivotHeader := []interface{}{"category"}
	for d := 0; d <= MaxDepth; d++ {
		pivotHeader = append(pivotHeader, fmt.Sprintf("depth_%d", d))
	}
	pivotHeader = append(pivotHeader, "total")
	if err := writeRow(f, SheetDepth, 1, pivotHeader); err != nil {
		return err
	}
	for i, p := range DepthPivot(rows) {
		values := []interface{}{p.Category}
		for _, n := range p.Counts {
			values = append(values, n)
		}
		values = append(values, p.Total)
		if err := writeRow(f, SheetDepth, i+2, values); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(SheetDepth, 1, 1, header); err != nil {
		return fmt.Errorf("styling %s header: %w", SheetDepth, err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []*store.ExportRow) error {
	if rows == nil {
		rows = []*store.ExportRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// PivotRow is one category line of the depth pivot.
type PivotRow struct {
	Category string
	Counts   [MaxDepth + 1]int
	Total    int
}

// DepthPivot counts rows per category and depth level. Categories follow
// the classifier vocabulary order; labels outside it come last, sorted.
func DepthPivot(rows []*store.ExportRow) []PivotRow {
	byCat := make(map[string]*PivotRow)
	for _, r := range rows {
		p, ok := byCat[r.Category]
		if !ok {
			p = &PivotRow{Category: r.Category}
			byCat[r.Category] = p
		}
		d := r.DepthLevel
		if d < 0 {
			d = 0
		}
		if d > MaxDepth {
			d = MaxDepth
		}
		p.Counts[d]++
		p.Total++
	}

	out := make([]PivotRow, 0, len(byCat))
	for _, c := range classify.Categories {
		if p, ok := byCat[c.String()]; ok {
			out = append(out, *p)
			delete(byCat, c.String())
		}
	}
	rest := make([]string, 0, len(byCat))
	for c := range byCat {
		rest = append(rest, c)
	}
	sort.Strings(rest)
	for _, c := range rest {
		out = append(out, *byCat[c])
	}
	return out
}
