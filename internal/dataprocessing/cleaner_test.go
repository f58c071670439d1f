package dataprocessing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "evdash/internal/errors"
	"evdash/internal/shared/testutil"
	"evdash/pkg/contracts/domain"
)

func rebateTable(rows ...[]string) *domain.Table {
	t := domain.NewTable("Application ID", domain.ColumnCounty, domain.ColumnPostalCode,
		domain.ColumnVehicleCategory, domain.ColumnTotalAmount)
	for _, r := range rows {
		t.AddRow(r...)
	}
	return t
}

func TestCleaner_Clean(t *testing.T) {
	tests := []struct {
		name      string
		rows      [][]string
		wantRows  [][]string
		wantStats domain.CleanStats
	}{
		{
			name: "drops unknown county in any case",
			rows: [][]string{
				{"1", "Suffolk", "02118", "BEV", "3500"},
				{"2", "unknown", "00000", "BEV", "3500"},
				{"3", "UNKNOWN", "00000", "PHEV", "1500"},
				{"4", " Unknown ", "00000", "PHEV", "1500"},
			},
			wantRows:  [][]string{{"Suffolk", "02118", "BEV", "3500"}},
			wantStats: domain.CleanStats{InputRows: 4, UnknownCountyDropped: 3, Kept: 1},
		},
		{
			name: "drops rows missing any required value",
			rows: [][]string{
				{"1", "", "02118", "BEV", "3500"},
				{"2", "Suffolk", "  ", "BEV", "3500"},
				{"3", "Suffolk", "02118", "", "3500"},
				{"4", "Suffolk", "02118", "BEV"},
				{"5", "Worcester", "01608", "PHEV", "1500"},
			},
			wantRows:  [][]string{{"Worcester", "01608", "PHEV", "1500"}},
			wantStats: domain.CleanStats{InputRows: 5, MissingDropped: 4, Kept: 1},
		},
		{
			name: "placeholder values count as missing",
			rows: [][]string{
				{"1", "N/A", "02118", "BEV", "3500"},
				{"2", "#N/A", "02139", "BEV", "3500"},
				{"3", "Suffolk", "NULL", "BEV", "3500"},
				{"4", "Suffolk", "02118", "nan", "3500"},
				{"5", "Suffolk", "02118", "BEV", "3500"},
			},
			wantRows:  [][]string{{"Suffolk", "02118", "BEV", "3500"}},
			wantStats: domain.CleanStats{InputRows: 5, MissingDropped: 4, Kept: 1},
		},
		{
			name: "missing application id does not drop the row",
			rows: [][]string{
				{"", "Suffolk", "02118", "BEV", "3500"},
			},
			wantRows:  [][]string{{"Suffolk", "02118", "BEV", "3500"}},
			wantStats: domain.CleanStats{InputRows: 1, Kept: 1},
		},
		{
			name: "normalizes amounts and postal codes",
			rows: [][]string{
				{"1", "Suffolk", "2118", "BEV", "$3,500.00"},
				{"2", "Worcester", "1608.0", "PHEV", "1500"},
			},
			wantRows: [][]string{
				{"Suffolk", "02118", "BEV", "3500"},
				{"Worcester", "01608", "PHEV", "1500"},
			},
			wantStats: domain.CleanStats{InputRows: 2, Kept: 2},
		},
		{
			name: "unparseable amount counts as missing",
			rows: [][]string{
				{"1", "Suffolk", "02118", "BEV", "n/a"},
			},
			wantRows:  [][]string{},
			wantStats: domain.CleanStats{InputRows: 1, MissingDropped: 1},
		},
		{
			name:      "empty input",
			rows:      nil,
			wantRows:  [][]string{},
			wantStats: domain.CleanStats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			c := NewCleaner(logger)

			cleaned, stats := c.Clean(context.Background(), rebateTable(tt.rows...))

			assert.Equal(t, domain.RequiredColumns, cleaned.Columns)
			assert.Equal(t, tt.wantRows, cleaned.Rows)
			assert.Equal(t, tt.wantStats, stats)
		})
	}
}

func TestCleaner_Idempotent(t *testing.T) {
	c := NewCleaner(nil)
	table := rebateTable(
		[]string{"1", "Suffolk", "2118", "BEV", "$3,500"},
		[]string{"2", "unknown", "00000", "BEV", "3500"},
		[]string{"3", "Worcester", "", "PHEV", "1500"},
		[]string{"4", "Middlesex", "02139", "PHEV", "1500.50"},
	)

	once, _ := c.Clean(context.Background(), table)
	twice, stats := c.Clean(context.Background(), once)

	assert.Equal(t, once, twice)
	assert.Equal(t, domain.CleanStats{InputRows: 2, Kept: 2}, stats)
}

func TestCleaner_NoUnknownOrMissingRemain(t *testing.T) {
	c := NewCleaner(nil)
	cleaned, _ := c.Clean(context.Background(), rebateTable(
		[]string{"1", "Unknown", "01000", "BEV", "1"},
		[]string{"2", "Essex", "01915", "BEV", "1"},
		[]string{"3", "Essex", "", "BEV", "1"},
	))

	for i := 0; i < cleaned.Len(); i++ {
		for _, col := range domain.RequiredColumns {
			v, ok := cleaned.Value(i, col)
			require.True(t, ok, "row %d column %s", i, col)
			if col == domain.ColumnCounty {
				assert.NotEqual(t, "unknown", v)
			}
		}
	}
}

func TestCleaner_MissingColumnCleansToEmpty(t *testing.T) {
	table := domain.NewTable(domain.ColumnCounty, domain.ColumnPostalCode, domain.ColumnVehicleCategory)
	table.AddRow("Suffolk", "02118", "BEV")

	cleaned, stats := NewCleaner(nil).Clean(context.Background(), table)

	assert.Equal(t, 0, cleaned.Len())
	assert.Equal(t, 1, stats.MissingDropped)
}

func TestCleaner_Records(t *testing.T) {
	c := NewCleaner(nil)
	cleaned, _ := c.Clean(context.Background(), rebateTable(
		[]string{"1", "Suffolk", "02118", "BEV", "$3,500.25"},
	))

	records := c.Records(cleaned)
	require.Len(t, records, 1)
	assert.Equal(t, "Suffolk", records[0].County)
	assert.Equal(t, "02118", records[0].PostalCode)
	assert.Equal(t, "BEV", records[0].VehicleCategory)
	assert.True(t, decimal.RequireFromString("3500.25").Equal(records[0].TotalAmount))
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"3500", "3500", false},
		{"$3,500.00", "3500", false},
		{" $ 1,500.50 ", "1500.5", false},
		{"-250", "-250", false},
		{"pending", "", true},
		{"$", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleaner_LogsUnparseableAmount(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	_, stats := NewCleaner(logger).Clean(context.Background(), rebateTable(
		[]string{"1", "Suffolk", "02118", "BEV", "pending"},
	))

	assert.Equal(t, 1, stats.MissingDropped)
	records := logs.GetRecordsByLevel(slog.LevelDebug)
	require.Len(t, records, 1)
	assert.Equal(t, "amount treated as missing", records[0].Message)
	assert.Contains(t, records[0].Attrs["error"], "PARSING")
}

func TestNormalizePostalCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"02118", "02118"},
		{"2118", "02118"},
		{"2118.0", "02118"},
		{" 01608 ", "01608"},
		{"02118-1234", "02118-1234"},
		{"K1A", "K1A"},
		{"", ""},
		{".0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizePostalCode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizePostalCode(got))
		})
	}
}
