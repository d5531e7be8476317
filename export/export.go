// Package export renders assessment results as CSV or XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hazyhaar/policyvet/assess"
)

// Headers are the columns of both export formats.
var Headers = []string{
	"Obligation ID",
	"Title",
	"Strength",
	"Status",
	"Findings",
	"Gaps",
	"Recommendation",
	"Sources",
}

func row(r assess.Result) []string {
	sources := make([]string, 0, len(r.SourceCitations))
	for _, c := range r.SourceCitations {
		sources = append(sources, c.SourceID)
	}
	return []string{
		r.ID,
		r.Title,
		r.Strength,
		r.Status,
		r.Findings,
		strings.Join(r.Gaps, "; "),
		r.Recommendation,
		strings.Join(sources, "; "),
	}
}

// CSV writes results as comma-separated values with a header line.
func CSV(w io.Writer, results []assess.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	for _, r := range results {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("export: csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: csv flush: %w", err)
	}
	return nil
}

// Sheet is the name of the XLSX worksheet.
const Sheet = "Assessment"

// XLSX returns a workbook with one row per result and a summary row.
func XLSX(results []assess.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", Sheet); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}

	write := func(col, rowN int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, rowN)
		if err != nil {
			return err
		}
		return f.SetCellValue(Sheet, cell, v)
	}

	for i, h := range Headers {
		if err := write(i+1, 1, h); err != nil {
			return nil, fmt.Errorf("export: header: %w", err)
		}
	}
	for n, r := range results {
		for i, v := range row(r) {
			if err := write(i+1, n+2, v); err != nil {
				return nil, fmt.Errorf("export: row %s: %w", r.ID, err)
			}
		}
	}

	stats := assess.Score(results)
	summary := len(results) + 3
	if err := write(1, summary, "Compliance Score"); err != nil {
		return nil, fmt.Errorf("export: summary: %w", err)
	}
	if err := write(2, summary, stats.Score); err != nil {
		return nil, fmt.Errorf("export: summary: %w", err)
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(Sheet, 1, 1, style)
	}
	_ = f.SetColWidth(Sheet, "A", "A", 30) // id
	_ = f.SetColWidth(Sheet, "B", "B", 34) // title
	_ = f.SetColWidth(Sheet, "C", "D", 12)
	_ = f.SetColWidth(Sheet, "E", "G", 60)
	_ = f.SetColWidth(Sheet, "H", "H", 40) // sources

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
