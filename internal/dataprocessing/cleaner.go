package dataprocessing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "evdash/internal/errors"
	"evdash/pkg/contracts/domain"
)

// Cleaner reduces a raw rebate table to the analysed columns and rows
type Cleaner struct {
	logger       *slog.Logger
	unknownToken string
}

// NewCleaner creates a cleaner. A nil logger falls back to slog.Default().
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		logger:       logger.With(slog.String("component", "cleaner")),
		unknownToken: domain.UnknownCounty,
	}
}

// Clean projects the table onto the required columns, drops rows with a
// missing value in any of them and drops rows whose county is "unknown" in
// any letter case. Cleaning a cleaned table changes nothing. Columns absent
// from the input read as missing, so such a table cleans to zero rows.
func (c *Cleaner) Clean(ctx context.Context, table *domain.Table) (*domain.Table, domain.CleanStats) {
	out := domain.NewTable(domain.RequiredColumns...)
	stats := domain.CleanStats{InputRows: table.Len()}

	for i := 0; i < table.Len(); i++ {
		county, okCounty := table.Value(i, domain.ColumnCounty)
		postal, okPostal := table.Value(i, domain.ColumnPostalCode)
		category, okCategory := table.Value(i, domain.ColumnVehicleCategory)
		amount, okAmount := table.Value(i, domain.ColumnTotalAmount)

		if okAmount {
			var err error
			if amount, err = normalizeAmount(amount); err != nil {
				okAmount = false
				c.logger.DebugContext(ctx, "amount treated as missing",
					slog.Int("row", i), slog.String("error", err.Error()))
			}
		}
		if okPostal {
			postal = NormalizePostalCode(postal)
			okPostal = postal != ""
		}

		if !okCounty || !okPostal || !okCategory || !okAmount {
			stats.MissingDropped++
			continue
		}
		if strings.ToLower(county) == c.unknownToken {
			stats.UnknownCountyDropped++
			continue
		}

		out.AddRow(county, postal, category, amount)
	}
	stats.Kept = out.Len()

	c.logger.InfoContext(ctx, "rebate table cleaned",
		slog.Int("input_rows", stats.InputRows),
		slog.Int("missing_dropped", stats.MissingDropped),
		slog.Int("unknown_county_dropped", stats.UnknownCountyDropped),
		slog.Int("kept", stats.Kept))

	return out, stats
}

// Records converts a cleaned table into rebate records
func (c *Cleaner) Records(table *domain.Table) []domain.RebateRecord {
	records := make([]domain.RebateRecord, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		county, _ := table.Value(i, domain.ColumnCounty)
		postal, _ := table.Value(i, domain.ColumnPostalCode)
		category, _ := table.Value(i, domain.ColumnVehicleCategory)
		raw, _ := table.Value(i, domain.ColumnTotalAmount)

		amount, err := decimal.NewFromString(raw)
		if err != nil {
			amount = decimal.Zero
		}
		records = append(records, domain.RebateRecord{
			County:          county,
			PostalCode:      postal,
			VehicleCategory: category,
			TotalAmount:     amount,
		})
	}
	return records
}

// normalizeAmount strips currency formatting and returns the canonical
// decimal text of the amount
func normalizeAmount(s string) (string, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return "", apperrors.NewParsingError("invalid rebate amount", err).WithContext("value", s)
	}
	return d.String(), nil
}

// NormalizePostalCode trims a postal code, removes a trailing ".0" left by
// numeric cells and restores leading zeros of all-digit codes shorter than
// five characters
func NormalizePostalCode(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")
	if s == "" || len(s) >= 5 {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return strings.Repeat("0", 5-len(s)) + s
}
