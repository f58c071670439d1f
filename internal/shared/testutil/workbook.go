package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// RebateHeader is the header row of the rebate workbook
var RebateHeader = []string{
	"Application ID",
	"Applicant: County",
	"Applicant: Postal Code",
	"Vehicle Category",
	"Total Amount",
	"Vehicle Make",
}

// RebateRow builds a row matching RebateHeader
func RebateRow(county, postalCode, category, amount string) []interface{} {
	return []interface{}{"APP", county, postalCode, category, amount, "Make"}
}

// SampleRebateRows is the three-row workbook used across end-to-end tests:
// one BEV in Suffolk, one BEV with an unknown county and one PHEV in
// Worcester.
func SampleRebateRows() [][]interface{} {
	return [][]interface{}{
		RebateRow("Suffolk", "02118", "BEV", "3500"),
		RebateRow("unknown", "00000", "BEV", "3500"),
		RebateRow("Worcester", "01608", "PHEV", "1500"),
	}
}

// WriteWorkbook saves a workbook with one sheet holding header and rows and
// returns its path inside t.TempDir()
func WriteWorkbook(t *testing.T, sheet string, header []string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))

	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, name))
	}
	for r, row := range rows {
		for col, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	path := filepath.Join(t.TempDir(), "rebates.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

// WriteRebateWorkbook writes rows under RebateHeader into a sheet named "Data"
func WriteRebateWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	return WriteWorkbook(t, "Data", RebateHeader, rows)
}
