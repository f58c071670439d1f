package dataprocessing

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"

	"evdash/internal/infrastructure"
	"evdash/pkg/contracts/domain"
)

const tracerName = "evdash/dataprocessing"

// PipelineConfig configures a Pipeline
type PipelineConfig struct {
	TopN       int
	Estimation EstimatorConfig
	Metrics    *infrastructure.BusinessMetrics
}

// Pipeline runs load, clean, aggregate and estimate over a source and
// assembles the dashboard report. Every step is also usable on its own.
type Pipeline struct {
	logger     *slog.Logger
	cleaner    *Cleaner
	aggregator *Aggregator
	estimator  *Estimator
	metrics    *infrastructure.BusinessMetrics
	tracer     trace.Tracer
	now        func() time.Time
}

// NewPipeline creates a pipeline. A nil logger falls back to slog.Default().
func NewPipeline(logger *slog.Logger, cfg PipelineConfig) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:     logger.With(slog.String("component", "pipeline")),
		cleaner:    NewCleaner(logger),
		aggregator: NewAggregator(logger, cfg.TopN),
		estimator:  NewEstimator(logger, cfg.Estimation),
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
}

// Estimator returns the estimator used by the pipeline
func (p *Pipeline) Estimator() *Estimator {
	return p.estimator
}

// Run builds a report from the current version of src
func (p *Pipeline) Run(ctx context.Context, src Source) (*domain.DashboardReport, error) {
	version, err := src.Version(ctx)
	if err != nil {
		return nil, err
	}
	return p.Build(ctx, src, version)
}

// Build loads src and builds a report tagged with version. A load failure
// returns the error without a partial report.
func (p *Pipeline) Build(ctx context.Context, src Source, version string) (*domain.DashboardReport, error) {
	start := p.now()
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("source", src.Describe())))
	defer span.End()

	report, err := p.build(ctx, src, version)
	duration := p.now().Sub(start)
	infrastructure.RecordPipelineRun(ctx, p.metrics, src.Describe(), duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.ErrorContext(ctx, "pipeline failed",
			slog.String("source", src.Describe()),
			slog.String("error", err.Error()))
		return nil, err
	}

	report.ProcessingTime = duration
	p.logger.InfoContext(ctx, "pipeline completed",
		slog.String("source", report.Source),
		slog.String("fingerprint", report.Fingerprint),
		slog.Int("records", report.Clean.Kept),
		slog.Int("categories", len(report.Categories)),
		slog.Duration("duration", duration))

	return report, nil
}

func (p *Pipeline) build(ctx context.Context, src Source, version string) (*domain.DashboardReport, error) {
	var raw *domain.Table
	err := p.step(ctx, "load", func(ctx context.Context) error {
		t, err := src.Load(ctx)
		if err != nil {
			return err
		}
		if err := RequireColumns(t, domain.RequiredColumns...); err != nil {
			return err
		}
		raw = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &domain.DashboardReport{
		Source:      src.Describe(),
		Fingerprint: Fingerprint(version),
		GeneratedAt: p.now().UTC(),
		Columns:     append([]string(nil), raw.Columns...),
		Estimation:  p.estimator.Parameters(),
	}

	var records []domain.RebateRecord
	_ = p.step(ctx, "clean", func(ctx context.Context) error {
		cleaned, stats := p.cleaner.Clean(ctx, raw)
		report.Clean = stats
		records = p.cleaner.Records(cleaned)
		return nil
	})

	_ = p.step(ctx, "aggregate", func(ctx context.Context) error {
		report.Categories = Categories(records)
		report.Totals = Totals(records)
		report.TopCounties = p.aggregator.Breakdowns(ctx, records, domain.GroupByCounty)
		report.TopPostalCodes = p.aggregator.Breakdowns(ctx, records, domain.GroupByPostalCode)
		return nil
	})

	_ = p.step(ctx, "estimate", func(ctx context.Context) error {
		report.Estimates = p.estimator.Estimate(ctx, records)
		return nil
	})

	return report, nil
}

func (p *Pipeline) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := p.now()
	err := fn(ctx)
	infrastructure.RecordPipelineStep(ctx, p.metrics, name, p.now().Sub(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Fingerprint derives a short stable identifier from a source version,
// used as the report ETag
func Fingerprint(version string) string {
	sum := blake2b.Sum256([]byte(version))
	return hex.EncodeToString(sum[:16])
}
