package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "evdash/internal/errors"
	"evdash/pkg/contracts/domain"
)

// DefaultSheet is the worksheet holding rebate applications
const DefaultSheet = "Data"

// Source yields the raw rebate table. Version changes whenever the
// underlying data may have changed and is used as the memoization key.
type Source interface {
	Load(ctx context.Context) (*domain.Table, error)
	Version(ctx context.Context) (string, error)
	Describe() string
}

// WorkbookSource reads one sheet of a local .xlsx workbook
type WorkbookSource struct {
	Path  string
	Sheet string
}

// NewWorkbookSource creates a workbook source, defaulting the sheet to "Data"
func NewWorkbookSource(path, sheet string) *WorkbookSource {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &WorkbookSource{Path: path, Sheet: sheet}
}

// Load implements Source
func (s *WorkbookSource) Load(ctx context.Context) (*domain.Table, error) {
	return LoadWorkbook(ctx, s.Path, s.Sheet)
}

// Version returns path, modification time and size of the workbook
func (s *WorkbookSource) Version(ctx context.Context) (string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return "", statError(s.Path, err)
	}
	if info.IsDir() {
		return "", apperrors.NewDataSourceError("path is a directory", nil).WithContext("path", s.Path)
	}
	return fmt.Sprintf("%s@%d:%d", s.Path, info.ModTime().UnixNano(), info.Size()), nil
}

// Describe implements Source
func (s *WorkbookSource) Describe() string {
	return fmt.Sprintf("xlsx:%s#%s", s.Path, s.Sheet)
}

// LoadWorkbook reads sheet from the workbook at path. The first row is the
// header; every following row becomes one table row padded to the header
// width. Fails with a data source error when the file is missing or
// unreadable or the sheet does not exist.
func LoadWorkbook(ctx context.Context, path, sheet string) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, statError(path, err)
	}
	if info.IsDir() {
		return nil, apperrors.NewDataSourceError("path is a directory", nil).WithContext("path", path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewDataSourceError("cannot open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, apperrors.NewDataSourceError(fmt.Sprintf("sheet %q not found", sheet), err).
			WithContext("path", path).
			WithContext("sheets", f.GetSheetList())
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewDataSourceError(fmt.Sprintf("cannot read sheet %q", sheet), err).WithContext("path", path)
	}

	table := TableFromRows(rows)

	slog.InfoContext(ctx, "workbook loaded",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("columns", len(table.Columns)),
		slog.Int("rows", table.Len()))

	return table, nil
}

// TableFromRows builds a table from raw sheet rows, first row as header.
// Rows whose cells are all blank are skipped.
func TableFromRows(rows [][]string) *domain.Table {
	if len(rows) == 0 {
		return domain.NewTable()
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	table := domain.NewTable(header...)

	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		table.AddRow(row...)
	}
	return table
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func statError(path string, err error) error {
	msg := "cannot read workbook"
	if errors.Is(err, os.ErrNotExist) {
		msg = "workbook not found"
	}
	return apperrors.NewDataSourceError(msg, err).WithContext("path", path)
}

// RequireColumns fails with a data source error naming every column of cols
// missing from the table header
func RequireColumns(table *domain.Table, cols ...string) error {
	missing := table.Missing(cols...)
	if len(missing) == 0 {
		return nil
	}
	return apperrors.NewDataSourceError(
		fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil).
		WithContext("missing", missing).
		WithContext("columns", table.Columns)
}
