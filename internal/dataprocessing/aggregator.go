package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"evdash/pkg/contracts/domain"
)

// DefaultTopN is the number of groups kept per ranking
const DefaultTopN = 10

// Aggregator ranks counties and postal codes per vehicle category
type Aggregator struct {
	logger *slog.Logger
	topN   int
}

// NewAggregator creates an aggregator keeping topN groups per ranking.
// A non-positive topN means DefaultTopN.
func NewAggregator(logger *slog.Logger, topN int) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Aggregator{
		logger: logger.With(slog.String("component", "aggregator")),
		topN:   topN,
	}
}

// Categories returns the distinct vehicle categories in first-seen order
func Categories(records []domain.RebateRecord) []string {
	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, r := range records {
		if !seen[r.VehicleCategory] {
			seen[r.VehicleCategory] = true
			categories = append(categories, r.VehicleCategory)
		}
	}
	return categories
}

// CountGroups counts every group of category under groupBy, sorted by count
// descending then key ascending. Nothing is truncated, so the counts add up
// to the number of records in the category.
func CountGroups(records []domain.RebateRecord, category string, groupBy domain.GroupBy) []domain.GroupedCount {
	counts := make(map[string]int)
	for _, r := range records {
		if r.VehicleCategory != category {
			continue
		}
		counts[groupBy.Key(r)]++
	}

	groups := make([]domain.GroupedCount, 0, len(counts))
	for key, n := range counts {
		groups = append(groups, domain.GroupedCount{Key: key, Count: n})
	}
	SortGroupedCounts(groups)
	return groups
}

// SortGroupedCounts orders by count descending, ties by key ascending
func SortGroupedCounts(groups []domain.GroupedCount) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
}

// TopGroups returns at most topN of the ranked groups of category
func (a *Aggregator) TopGroups(records []domain.RebateRecord, category string, groupBy domain.GroupBy) []domain.GroupedCount {
	groups := CountGroups(records, category, groupBy)
	if len(groups) > a.topN {
		groups = groups[:a.topN]
	}
	return groups
}

// Breakdowns ranks groups for every category in first-seen order
func (a *Aggregator) Breakdowns(ctx context.Context, records []domain.RebateRecord, groupBy domain.GroupBy) []domain.CategoryBreakdown {
	categories := Categories(records)
	sizes := make(map[string]int, len(categories))
	for _, r := range records {
		sizes[r.VehicleCategory]++
	}

	breakdowns := make([]domain.CategoryBreakdown, 0, len(categories))
	for _, category := range categories {
		breakdowns = append(breakdowns, domain.CategoryBreakdown{
			Category:     category,
			GroupBy:      groupBy,
			Groups:       a.TopGroups(records, category, groupBy),
			TotalRecords: sizes[category],
		})
	}

	a.logger.DebugContext(ctx, "category breakdowns computed",
		slog.String("group_by", string(groupBy)),
		slog.Int("categories", len(breakdowns)))

	return breakdowns
}

// Totals sums record counts and rebate amounts per category in first-seen
// order
func Totals(records []domain.RebateRecord) []domain.CategoryTotal {
	index := make(map[string]int)
	totals := make([]domain.CategoryTotal, 0)
	for _, r := range records {
		i, ok := index[r.VehicleCategory]
		if !ok {
			i = len(totals)
			index[r.VehicleCategory] = i
			totals = append(totals, domain.CategoryTotal{
				Category:    r.VehicleCategory,
				TotalAmount: decimal.Zero,
			})
		}
		totals[i].Records++
		totals[i].TotalAmount = totals[i].TotalAmount.Add(r.TotalAmount)
	}
	return totals
}
