package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"evdash/pkg/contracts/domain"
)

const (
	// DefaultEstimateCategory is the category whose counts are scaled
	DefaultEstimateCategory = "BEV"

	// DefaultParticipationRate is the assumed share of BEV buyers who
	// applied for a rebate
	DefaultParticipationRate = 0.30
)

// EstimatorConfig configures an Estimator
type EstimatorConfig struct {
	Category          string
	ParticipationRate float64
	TopN              int
}

// DefaultEstimatorConfig returns the BEV / 30% / top 10 configuration
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Category:          DefaultEstimateCategory,
		ParticipationRate: DefaultParticipationRate,
		TopN:              DefaultTopN,
	}
}

// Estimator scales observed rebate counts per postal code up to an estimate
// of all vehicles in the category
type Estimator struct {
	logger        *slog.Logger
	category      string
	rate          float64
	scalingFactor float64
	topN          int
}

// NewEstimator creates an estimator. Zero config fields take the defaults;
// a participation rate outside (0, 1] is replaced by the default.
func NewEstimator(logger *slog.Logger, cfg EstimatorConfig) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultEstimatorConfig()
	if cfg.Category == "" {
		cfg.Category = def.Category
	}
	if cfg.ParticipationRate <= 0 || cfg.ParticipationRate > 1 {
		cfg.ParticipationRate = def.ParticipationRate
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	return &Estimator{
		logger:        logger.With(slog.String("component", "estimator")),
		category:      cfg.Category,
		rate:          cfg.ParticipationRate,
		scalingFactor: 1 / cfg.ParticipationRate,
		topN:          cfg.TopN,
	}
}

// ScalingFactor returns the multiplier applied to raw counts
func (e *Estimator) ScalingFactor() float64 {
	return e.scalingFactor
}

// Parameters describes the estimator for presenters
func (e *Estimator) Parameters() domain.EstimationParameters {
	return domain.EstimationParameters{
		Category:          e.category,
		ParticipationRate: e.rate,
		ScalingFactor:     e.scalingFactor,
		TopN:              e.topN,
	}
}

// Scale returns raw * scalingFactor rounded half to even
func (e *Estimator) Scale(raw int) int {
	return int(math.RoundToEven(float64(raw) * e.scalingFactor))
}

// Estimate counts records of the configured category per postal code,
// scales each count and returns the topN by estimate, ties by postal code
// ascending.
func (e *Estimator) Estimate(ctx context.Context, records []domain.RebateRecord) []domain.ScaledEstimate {
	counts := make(map[string]int)
	for _, r := range records {
		if r.VehicleCategory == e.category {
			counts[r.PostalCode]++
		}
	}

	estimates := make([]domain.ScaledEstimate, 0, len(counts))
	for postal, n := range counts {
		estimates = append(estimates, domain.ScaledEstimate{
			PostalCode:     postal,
			RawCount:       n,
			EstimatedTotal: e.Scale(n),
		})
	}

	sort.Slice(estimates, func(i, j int) bool {
		if estimates[i].EstimatedTotal != estimates[j].EstimatedTotal {
			return estimates[i].EstimatedTotal > estimates[j].EstimatedTotal
		}
		return estimates[i].PostalCode < estimates[j].PostalCode
	})
	if len(estimates) > e.topN {
		estimates = estimates[:e.topN]
	}

	e.logger.DebugContext(ctx, "estimates computed",
		slog.String("category", e.category),
		slog.Int("postal_codes", len(counts)),
		slog.Int("returned", len(estimates)))

	return estimates
}
