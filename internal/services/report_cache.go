package services

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"evdash/internal/dataprocessing"
	"evdash/internal/infrastructure"
	"evdash/pkg/contracts/domain"
)

// ReportBuilder builds a report for one version of a source.
// *dataprocessing.Pipeline implements it.
type ReportBuilder interface {
	Build(ctx context.Context, src dataprocessing.Source, version string) (*domain.DashboardReport, error)
}

type cacheEntry struct {
	version string
	report  *domain.DashboardReport
}

// ReportCache keeps the latest report of every source and rebuilds it only
// when the source version changes. Failed builds are never cached.
type ReportCache struct {
	builder ReportBuilder
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewReportCache creates an empty cache. metrics may be nil.
func NewReportCache(builder ReportBuilder, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *ReportCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportCache{
		builder: builder,
		metrics: metrics,
		logger:  infrastructure.WithComponent(logger, "report_cache"),
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the report for the current version of src, building it on a
// miss. Concurrent callers asking for the same version share one build.
func (c *ReportCache) Get(ctx context.Context, src dataprocessing.Source) (*domain.DashboardReport, error) {
	version, err := src.Version(ctx)
	if err != nil {
		return nil, err
	}

	if report, ok := c.lookup(src.Describe(), version); ok {
		infrastructure.RecordCacheLookup(ctx, c.metrics, true)
		return report, nil
	}
	infrastructure.RecordCacheLookup(ctx, c.metrics, false)
	return c.build(ctx, src, version)
}

// Refresh drops the cached report of src and builds a new one
func (c *ReportCache) Refresh(ctx context.Context, src dataprocessing.Source) (*domain.DashboardReport, error) {
	c.Invalidate(src)
	return c.Get(ctx, src)
}

// Invalidate drops the cached report of src
func (c *ReportCache) Invalidate(src dataprocessing.Source) {
	c.mu.Lock()
	delete(c.entries, src.Describe())
	c.mu.Unlock()
}

// Peek returns the cached report of src without checking its version
func (c *ReportCache) Peek(src dataprocessing.Source) (*domain.DashboardReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[src.Describe()]
	return e.report, ok
}

func (c *ReportCache) lookup(key, version string) (*domain.DashboardReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.version != version {
		return nil, false
	}
	return e.report, true
}

func (c *ReportCache) build(ctx context.Context, src dataprocessing.Source, version string) (*domain.DashboardReport, error) {
	key := src.Describe()

	// the build outlives a cancelled caller so other waiters still get it
	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key+"\x00"+version, func() (interface{}, error) {
		report, err := c.builder.Build(buildCtx, src, version)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{version: version, report: report}
		c.mu.Unlock()

		c.logger.InfoContext(buildCtx, "report cached",
			slog.String("source", key),
			slog.String("fingerprint", report.Fingerprint))
		return report, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.DashboardReport), nil
	}
}
