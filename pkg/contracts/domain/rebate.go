package domain

import "github.com/shopspring/decimal"

// Source column names of the rebate workbook. Matching is exact.
const (
	ColumnCounty          = "Applicant: County"
	ColumnPostalCode      = "Applicant: Postal Code"
	ColumnVehicleCategory = "Vehicle Category"
	ColumnTotalAmount     = "Total Amount"
)

// RequiredColumns lists the columns kept by cleaning, in output order
var RequiredColumns = []string{
	ColumnCounty,
	ColumnPostalCode,
	ColumnVehicleCategory,
	ColumnTotalAmount,
}

// UnknownCounty is the placeholder county excluded from analysis
const UnknownCounty = "unknown"

// RebateRecord is one cleaned rebate application
type RebateRecord struct {
	County          string          `json:"county" validate:"required"`
	PostalCode      string          `json:"postal_code" validate:"required"`
	VehicleCategory string          `json:"vehicle_category" validate:"required"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// GroupBy selects the column records are grouped on
type GroupBy string

const (
	GroupByCounty     GroupBy = "county"
	GroupByPostalCode GroupBy = "postal_code"
)

// Column returns the source column name for the grouping
func (g GroupBy) Column() string {
	switch g {
	case GroupByPostalCode:
		return ColumnPostalCode
	default:
		return ColumnCounty
	}
}

// Key extracts the grouping value from a record
func (g GroupBy) Key(r RebateRecord) string {
	if g == GroupByPostalCode {
		return r.PostalCode
	}
	return r.County
}

// Valid reports whether g is a known grouping
func (g GroupBy) Valid() bool {
	return g == GroupByCounty || g == GroupByPostalCode
}

// GroupedCount is the number of records sharing a grouping key.
// Count is always at least 1.
type GroupedCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// ScaledEstimate is the observed rebate count for a postal code scaled up
// by the inverse participation rate.
type ScaledEstimate struct {
	PostalCode     string `json:"postal_code"`
	RawCount       int    `json:"raw_count"`
	EstimatedTotal int    `json:"estimated_total"`
}

// CategoryBreakdown holds the top groups of one vehicle category
type CategoryBreakdown struct {
	Category     string         `json:"category"`
	GroupBy      GroupBy        `json:"group_by"`
	Groups       []GroupedCount `json:"groups"`
	TotalRecords int            `json:"total_records"`
}

// CategoryTotal summarises all records of one vehicle category
type CategoryTotal struct {
	Category    string          `json:"category"`
	Records     int             `json:"records"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CleanStats describes what cleaning removed
type CleanStats struct {
	InputRows            int `json:"input_rows"`
	MissingDropped       int `json:"missing_dropped"`
	UnknownCountyDropped int `json:"unknown_county_dropped"`
	Kept                 int `json:"kept"`
}
