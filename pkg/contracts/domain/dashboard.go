package domain

import "time"

// EstimationParameters records how BEV estimates were scaled
type EstimationParameters struct {
	Category          string  `json:"category"`
	ParticipationRate float64 `json:"participation_rate"`
	ScalingFactor     float64 `json:"scaling_factor"`
	TopN              int     `json:"top_n"`
}

// DashboardReport is everything a presenter needs to draw the dashboard.
// It is immutable once built and safe to share between readers.
type DashboardReport struct {
	Source         string               `json:"source"`
	Fingerprint    string               `json:"fingerprint"`
	GeneratedAt    time.Time            `json:"generated_at"`
	Columns        []string             `json:"columns"`
	Clean          CleanStats           `json:"clean"`
	Categories     []string             `json:"categories"`
	Totals         []CategoryTotal      `json:"totals"`
	TopCounties    []CategoryBreakdown  `json:"top_counties"`
	TopPostalCodes []CategoryBreakdown  `json:"top_postal_codes"`
	Estimates      []ScaledEstimate     `json:"estimates"`
	Estimation     EstimationParameters `json:"estimation"`
	ProcessingTime time.Duration        `json:"processing_time"`
}

// Breakdown returns the breakdown of category for the grouping
func (r *DashboardReport) Breakdown(category string, groupBy GroupBy) (CategoryBreakdown, bool) {
	list := r.TopCounties
	if groupBy == GroupByPostalCode {
		list = r.TopPostalCodes
	}
	for _, b := range list {
		if b.Category == category {
			return b, true
		}
	}
	return CategoryBreakdown{}, false
}

// HasCategory reports whether category occurs in the cleaned data
func (r *DashboardReport) HasCategory(category string) bool {
	for _, c := range r.Categories {
		if c == category {
			return true
		}
	}
	return false
}
