package dataprocessing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evdash/pkg/contracts/domain"
)

func TestEstimator_Scale(t *testing.T) {
	e := NewEstimator(nil, DefaultEstimatorConfig())

	tests := []struct {
		raw  int
		want int
	}{
		{0, 0},
		{1, 3},
		{2, 7},
		{3, 10},
		{1000, 3333},
		{12854, 42847},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.raw), func(t *testing.T) {
			assert.Equal(t, tt.want, e.Scale(tt.raw))
		})
	}
}

func TestEstimator_Scale_HalvesRoundToEven(t *testing.T) {
	e := NewEstimator(nil, EstimatorConfig{ParticipationRate: 0.4})

	tests := []struct {
		raw  int
		want int
	}{
		{1, 2},
		{2, 5},
		{3, 8},
		{5, 12},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.raw), func(t *testing.T) {
			assert.Equal(t, tt.want, e.Scale(tt.raw))
		})
	}
}

func TestNewEstimator_Defaults(t *testing.T) {
	tests := []struct {
		name string
		cfg  EstimatorConfig
		want domain.EstimationParameters
	}{
		{
			name: "zero config",
			cfg:  EstimatorConfig{},
			want: domain.EstimationParameters{Category: "BEV", ParticipationRate: 0.30, ScalingFactor: 1 / 0.30, TopN: 10},
		},
		{
			name: "out of range rate falls back",
			cfg:  EstimatorConfig{Category: "PHEV", ParticipationRate: 1.5, TopN: 5},
			want: domain.EstimationParameters{Category: "PHEV", ParticipationRate: 0.30, ScalingFactor: 1 / 0.30, TopN: 5},
		},
		{
			name: "custom rate",
			cfg:  EstimatorConfig{Category: "BEV", ParticipationRate: 0.5, TopN: 3},
			want: domain.EstimationParameters{Category: "BEV", ParticipationRate: 0.5, ScalingFactor: 2, TopN: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewEstimator(nil, tt.cfg).Parameters()
			assert.Equal(t, tt.want.Category, p.Category)
			assert.InDelta(t, tt.want.ParticipationRate, p.ParticipationRate, 1e-12)
			assert.InDelta(t, tt.want.ScalingFactor, p.ScalingFactor, 1e-12)
			assert.Equal(t, tt.want.TopN, p.TopN)
		})
	}
}

func TestEstimator_Estimate(t *testing.T) {
	records := []domain.RebateRecord{
		record("Suffolk", "02118", "BEV"),
		record("Suffolk", "02118", "BEV"),
		record("Suffolk", "02116", "BEV"),
		record("Essex", "01915", "BEV"),
		record("Worcester", "01608", "PHEV"),
		record("Worcester", "01608", "PHEV"),
		record("Worcester", "01608", "PHEV"),
	}

	got := NewEstimator(nil, DefaultEstimatorConfig()).Estimate(context.Background(), records)

	want := []domain.ScaledEstimate{
		{PostalCode: "02118", RawCount: 2, EstimatedTotal: 7},
		{PostalCode: "01915", RawCount: 1, EstimatedTotal: 3},
		{PostalCode: "02116", RawCount: 1, EstimatedTotal: 3},
	}
	assert.Equal(t, want, got)
}

func TestEstimator_Estimate_TopN(t *testing.T) {
	var records []domain.RebateRecord
	for i := 0; i < 25; i++ {
		for j := 0; j <= i%5; j++ {
			records = append(records, record("County", fmt.Sprintf("%05d", i), "BEV"))
		}
	}

	e := NewEstimator(nil, DefaultEstimatorConfig())
	got := e.Estimate(context.Background(), records)

	require.Len(t, got, 10)
	for i, est := range got {
		assert.Equal(t, e.Scale(est.RawCount), est.EstimatedTotal)
		if i > 0 {
			prev := got[i-1]
			assert.True(t, prev.EstimatedTotal > est.EstimatedTotal ||
				(prev.EstimatedTotal == est.EstimatedTotal && prev.PostalCode < est.PostalCode))
		}
	}
	// five postal codes have five records each
	assert.Equal(t, "00004", got[0].PostalCode)
	assert.Equal(t, 5, got[0].RawCount)
}

func TestEstimator_Estimate_NoMatchingRecords(t *testing.T) {
	got := NewEstimator(nil, DefaultEstimatorConfig()).Estimate(context.Background(), []domain.RebateRecord{
		record("Worcester", "01608", "PHEV"),
	})
	assert.Empty(t, got)
}
