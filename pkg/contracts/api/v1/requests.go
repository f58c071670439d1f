// Package api contains the request and response contracts of the dashboard
// HTTP API, version v1.
package api

import (
	"time"

	"evdash/pkg/contracts/domain"
)

// MaxLimit bounds every ranking query
const MaxLimit = 10

// RankingRequest selects a category ranking and how many groups to return
type RankingRequest struct {
	Category string `json:"category" param:"category" validate:"required,category"`
	Limit    int    `json:"limit" query:"limit" validate:"min=1,max=10"`
}

// EstimatesRequest selects how many scaled estimates to return
type EstimatesRequest struct {
	Limit int `json:"limit" query:"limit" validate:"min=1,max=10"`
}

// ExportRequest selects the table of a CSV export
type ExportRequest struct {
	Table string `json:"table" query:"table" validate:"required,oneof=counties postal-codes estimates totals"`
}

// CategoriesResponse lists the vehicle categories in first-seen order
type CategoriesResponse struct {
	Categories  []string               `json:"categories"`
	Totals      []domain.CategoryTotal `json:"totals"`
	Fingerprint string                 `json:"fingerprint"`
}

// ColumnsResponse lists the source sheet header
type ColumnsResponse struct {
	Source  string   `json:"source"`
	Columns []string `json:"columns"`
}

// RankingResponse is one category ranking
type RankingResponse struct {
	Category     string                `json:"category"`
	GroupBy      domain.GroupBy        `json:"group_by"`
	Column       string                `json:"column"`
	Groups       []domain.GroupedCount `json:"groups"`
	TotalRecords int                   `json:"total_records"`
	Fingerprint  string                `json:"fingerprint"`
}

// EstimatesResponse carries the scaled estimates and their parameters
type EstimatesResponse struct {
	Estimation  domain.EstimationParameters `json:"estimation"`
	Estimates   []domain.ScaledEstimate     `json:"estimates"`
	Fingerprint string                      `json:"fingerprint"`
}

// RefreshResponse reports a forced rebuild
type RefreshResponse struct {
	Fingerprint string        `json:"fingerprint"`
	GeneratedAt time.Time     `json:"generated_at"`
	Records     int           `json:"records"`
	Duration    time.Duration `json:"duration"`
}
