package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	apierrors "evdash/internal/errors"
	"evdash/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{logger: slog.Default().With(slog.String("component", "exporter.csv"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes headers and records to w
func (c *CSVWriter) WriteCSV(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTable writes one report table as BOM-prefixed CSV
func (c *CSVWriter) WriteTable(w io.Writer, report *domain.DashboardReport, table Table) error {
	headers, rows, err := Rows(report, table)
	if err != nil {
		return err
	}
	return c.WriteCSV(w, WriteOptions{Headers: headers, Records: rows, BOMPrefix: true})
}

// WriteTableFile writes one report table to path, creating parent
// directories
func (c *CSVWriter) WriteTableFile(path string, report *domain.DashboardReport, table Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apierrors.NewStorageError("failed to create directory", err).WithContext("path", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return apierrors.NewStorageError("failed to create file", err).WithContext("path", path)
	}

	if err := c.WriteTable(file, report, table); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return apierrors.NewStorageError("failed to close file", err).WithContext("path", path)
	}
	c.logger.Info("CSV export written",
		slog.String("path", path),
		slog.String("table", string(table)))
	return nil
}
