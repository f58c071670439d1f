package http

import (
	"context"

	"evdash/internal/dataprocessing"
	"evdash/internal/services"
	"evdash/pkg/contracts/domain"
)

// DashboardServiceInterface defines the dashboard queries served over HTTP
type DashboardServiceInterface interface {
	Source() dataprocessing.Source
	Report(ctx context.Context) (*domain.DashboardReport, error)
	Refresh(ctx context.Context) (*domain.DashboardReport, error)
	Columns(ctx context.Context) ([]string, error)
	Categories(ctx context.Context) (*domain.DashboardReport, error)
	Ranking(ctx context.Context, category string, groupBy domain.GroupBy, limit int) (*services.RankingResult, error)
	Estimates(ctx context.Context, limit int) (*services.EstimatesResult, error)
}
