package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apierrors "evdash/internal/errors"
	"evdash/pkg/contracts/domain"
)

// Sheet names of the exported workbook
const (
	SheetSummary     = "Summary"
	SheetCounties    = "Top Counties"
	SheetPostalCodes = "Top ZIP Codes"
)

// EstimatesSheet names the estimates sheet for a category, e.g.
// "BEV Estimates"
func EstimatesSheet(category string) string {
	return category + " Estimates"
}

// WorkbookExporter writes the report as an .xlsx workbook
type WorkbookExporter struct {
	logger *slog.Logger
}

// NewWorkbookExporter creates a workbook exporter
func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{logger: slog.Default().With(slog.String("component", "exporter.xlsx"))}
}

// Write renders the report and writes the workbook to w
func (e *WorkbookExporter) Write(w io.Writer, report *domain.DashboardReport) error {
	f, err := e.build(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteFile renders the report to path, creating parent directories
func (e *WorkbookExporter) WriteFile(path string, report *domain.DashboardReport) error {
	f, err := e.build(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apierrors.NewStorageError("failed to create directory", err).WithContext("path", path)
	}
	if err := f.SaveAs(path); err != nil {
		return apierrors.NewStorageError("failed to save workbook", err).WithContext("path", path)
	}
	e.logger.Info("workbook export written", slog.String("path", path))
	return nil
}

func (e *WorkbookExporter) build(report *domain.DashboardReport) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRows(f, SheetSummary, header, []string{"Field", "Value"}, summaryRows(report)); err != nil {
		f.Close()
		return nil, err
	}

	sheets := []struct {
		name  string
		table Table
	}{
		{SheetCounties, TableCounties},
		{SheetPostalCodes, TablePostalCodes},
		{EstimatesSheet(report.Estimation.Category), TableEstimates},
	}
	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, err
		}
		headers, rows, err := Rows(report, s.table)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := writeRows(f, s.name, header, headers, rows); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func summaryRows(report *domain.DashboardReport) [][]string {
	rows := [][]string{
		{"Source", report.Source},
		{"Generated At", report.GeneratedAt.Format(time.RFC3339)},
		{"Fingerprint", report.Fingerprint},
		{"Input Rows", formatInt(report.Clean.InputRows)},
		{"Dropped (missing values)", formatInt(report.Clean.MissingDropped)},
		{"Dropped (unknown county)", formatInt(report.Clean.UnknownCountyDropped)},
		{"Analysed Rows", formatInt(report.Clean.Kept)},
		{"Estimated Category", report.Estimation.Category},
		{"Participation Rate", formatFloat(report.Estimation.ParticipationRate)},
		{"Scaling Factor", formatFloat(report.Estimation.ScalingFactor)},
	}
	for _, t := range report.Totals {
		rows = append(rows,
			[]string{t.Category + " Applications", formatInt(t.Records)},
			[]string{t.Category + " Rebate Amount", formatAmount(t.TotalAmount)})
	}
	return rows
}

// writeRows writes a styled header row followed by rows starting at A1.
// Numeric cells are written as numbers.
func writeRows(f *excelize.File, sheet string, style int, headers []string, rows [][]string) error {
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return err
		}
	}
	if len(headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return err
		}
		lastCol, _ := excelize.ColumnNumberToName(len(headers))
		if err := f.SetColWidth(sheet, "A", lastCol, 24); err != nil {
			return err
		}
	}

	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := setCell(f, sheet, cell, v, headers, col); err != nil {
				return err
			}
		}
	}
	return nil
}

// setCell keeps identifiers such as postal codes as text so leading zeros
// survive; counts and amounts become numbers
func setCell(f *excelize.File, sheet, cell, v string, headers []string, col int) error {
	if col < len(headers) && isNumericColumn(headers[col]) {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return f.SetCellFloat(sheet, cell, n, -1, 64)
		}
	}
	return f.SetCellStr(sheet, cell, v)
}

func isNumericColumn(header string) bool {
	switch header {
	case "Applications", "Rebate Count", "Total Rebate Amount":
		return true
	}
	return strings.HasPrefix(header, "Estimated ")
}
