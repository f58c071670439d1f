package exporter

import (
	"fmt"

	"evdash/pkg/contracts/domain"
)

// Table names a flat view of the report
type Table string

const (
	TableCounties    Table = "counties"
	TablePostalCodes Table = "postal-codes"
	TableEstimates   Table = "estimates"
	TableTotals      Table = "totals"
)

// TableNames lists every exportable table
func TableNames() []Table {
	return []Table{TableCounties, TablePostalCodes, TableEstimates, TableTotals}
}

// ParseTable validates a table name
func ParseTable(name string) (Table, error) {
	for _, t := range TableNames() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown export table %q", name)
}

// Rows flattens one table of the report into a header and data rows
func Rows(report *domain.DashboardReport, table Table) ([]string, [][]string, error) {
	switch table {
	case TableCounties:
		return []string{"Vehicle Category", "County", "Applications"},
			breakdownRows(report.TopCounties), nil
	case TablePostalCodes:
		return []string{"Vehicle Category", "Postal Code", "Applications"},
			breakdownRows(report.TopPostalCodes), nil
	case TableEstimates:
		rows := make([][]string, 0, len(report.Estimates))
		for _, e := range report.Estimates {
			rows = append(rows, []string{e.PostalCode, formatInt(e.RawCount), formatInt(e.EstimatedTotal)})
		}
		return []string{"Postal Code", "Rebate Count", fmt.Sprintf("Estimated %s Total", report.Estimation.Category)}, rows, nil
	case TableTotals:
		rows := make([][]string, 0, len(report.Totals))
		for _, t := range report.Totals {
			rows = append(rows, []string{t.Category, formatInt(t.Records), formatAmount(t.TotalAmount)})
		}
		return []string{"Vehicle Category", "Applications", "Total Rebate Amount"}, rows, nil
	default:
		return nil, nil, fmt.Errorf("unknown export table %q", table)
	}
}

func breakdownRows(breakdowns []domain.CategoryBreakdown) [][]string {
	rows := make([][]string, 0)
	for _, b := range breakdowns {
		for _, g := range b.Groups {
			rows = append(rows, []string{b.Category, g.Key, formatInt(g.Count)})
		}
	}
	return rows
}
