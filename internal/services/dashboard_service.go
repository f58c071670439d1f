package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"evdash/internal/dataprocessing"
	apierrors "evdash/internal/errors"
	"evdash/internal/infrastructure"
	"evdash/pkg/contracts/domain"
	"evdash/pkg/contracts/events"
)

// Broadcaster pushes events to connected dashboard clients.
// *websocket.Hub implements it.
type Broadcaster interface {
	Broadcast(messageType events.MessageType, data interface{})
}

// RankingResult is one category's top groups with the report they came from
type RankingResult struct {
	Breakdown   domain.CategoryBreakdown
	Fingerprint string
}

// EstimatesResult holds scaled estimates with the parameters that produced
// them
type EstimatesResult struct {
	Parameters  domain.EstimationParameters
	Estimates   []domain.ScaledEstimate
	Fingerprint string
}

// DashboardService answers dashboard queries from the cached report
type DashboardService struct {
	source dataprocessing.Source
	cache  *ReportCache
	hub    Broadcaster
	logger *slog.Logger
}

// NewDashboardService creates the service. hub may be nil when nobody
// listens for events.
func NewDashboardService(source dataprocessing.Source, cache *ReportCache, hub Broadcaster, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		source: source,
		cache:  cache,
		hub:    hub,
		logger: infrastructure.WithComponent(logger, "dashboard_service"),
	}
}

// Source returns the data source the dashboard is built from
func (s *DashboardService) Source() dataprocessing.Source {
	return s.source
}

// Report returns the report for the current source version
func (s *DashboardService) Report(ctx context.Context) (*domain.DashboardReport, error) {
	return s.cache.Get(ctx, s.source)
}

// Refresh rebuilds the report regardless of the source version and
// announces the outcome to connected clients
func (s *DashboardService) Refresh(ctx context.Context) (*domain.DashboardReport, error) {
	report, err := s.cache.Refresh(ctx, s.source)
	if err != nil {
		s.broadcastError(err)
		return nil, err
	}
	s.broadcastRefreshed(report)
	return report, nil
}

// Columns returns the header of the source sheet
func (s *DashboardService) Columns(ctx context.Context) ([]string, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	return report.Columns, nil
}

// Categories returns the vehicle categories in first-seen order with their
// totals
func (s *DashboardService) Categories(ctx context.Context) (*domain.DashboardReport, error) {
	return s.Report(ctx)
}

// Ranking returns at most limit top groups of category. A limit above the
// number of ranked groups returns all of them.
func (s *DashboardService) Ranking(ctx context.Context, category string, groupBy domain.GroupBy, limit int) (*RankingResult, error) {
	if !groupBy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGroupBy, groupBy)
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	if !report.HasCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrCategoryNotFound, category)
	}
	breakdown, _ := report.Breakdown(category, groupBy)
	if len(breakdown.Groups) > limit {
		breakdown.Groups = breakdown.Groups[:limit]
	}
	return &RankingResult{Breakdown: breakdown, Fingerprint: report.Fingerprint}, nil
}

// Estimates returns at most limit scaled estimates, largest first
func (s *DashboardService) Estimates(ctx context.Context, limit int) (*EstimatesResult, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	estimates := report.Estimates
	if len(estimates) > limit {
		estimates = estimates[:limit]
	}
	return &EstimatesResult{
		Parameters:  report.Estimation,
		Estimates:   estimates,
		Fingerprint: report.Fingerprint,
	}, nil
}

// Watch polls the source every interval until ctx is done and broadcasts a
// refresh event whenever the report fingerprint changes. A failing source
// is broadcast once per distinct error.
func (s *DashboardService) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastFingerprint, lastErr string
	if report, ok := s.cache.Peek(s.source); ok {
		lastFingerprint = report.Fingerprint
	} else if report, err := s.Report(ctx); err == nil {
		lastFingerprint = report.Fingerprint
	}

	s.logger.InfoContext(ctx, "watching source",
		slog.String("source", s.source.Describe()),
		slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.Report(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err.Error() != lastErr {
					lastErr = err.Error()
					s.logger.WarnContext(ctx, "source check failed", slog.String("error", lastErr))
					s.broadcastError(err)
				}
				continue
			}
			lastErr = ""
			if report.Fingerprint != lastFingerprint {
				lastFingerprint = report.Fingerprint
				s.broadcastRefreshed(report)
			}
		}
	}
}

func (s *DashboardService) broadcastRefreshed(report *domain.DashboardReport) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(events.MessageTypeDashboardRefreshed, events.DashboardRefreshed{
		Source:      report.Source,
		Fingerprint: report.Fingerprint,
		GeneratedAt: report.GeneratedAt,
		Records:     report.Clean.Kept,
		Categories:  report.Categories,
	})
}

func (s *DashboardService) broadcastError(err error) {
	if s.hub == nil {
		return
	}
	code := "PIPELINE_FAILED"
	if apierrors.IsDataSourceError(err) {
		code = "DATA_SOURCE_UNAVAILABLE"
	}
	s.hub.Broadcast(events.MessageTypeDashboardError, events.DashboardError{
		Source:  s.source.Describe(),
		Code:    code,
		Message: err.Error(),
	})
}
