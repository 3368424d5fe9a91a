package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phasebridge/transition-cli/internal/config"
	"github.com/phasebridge/transition-cli/internal/model"
)

func sig(contribution float64) model.SignalValue {
	return model.SignalValue{Contribution: contribution}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    float64
		signals []model.SignalValue
		want    float64
	}{
		{"base only", 0.5, nil, 0.5},
		{"base plus contributions", 0.5, []model.SignalValue{sig(0.2), sig(0.05)}, 0.75},
		{"insufficient signals contribute zero", 0.5, []model.SignalValue{sig(0), sig(0)}, 0.5},
		{"clamped at one", 0.9, []model.SignalValue{sig(0.2), sig(0.2)}, 1.0},
		{"clamped at zero", 0.0, []model.SignalValue{sig(-0.5)}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Aggregate(tt.base, tt.signals), 1e-9)
		})
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := []model.SignalValue{sig(0.0625), sig(0.2), sig(0.04), sig(0.05), sig(0.02), sig(0.059)}
	b := []model.SignalValue{sig(0.059), sig(0.02), sig(0.05), sig(0.04), sig(0.2), sig(0.0625)}

	assert.InDelta(t, Aggregate(0.5, a), Aggregate(0.5, b), 1e-12)
}

func TestClassify_BandBoundaries(t *testing.T) {
	t.Parallel()

	bands := config.Bands{High: 0.85, Likely: 0.65}

	tests := []struct {
		name  string
		score float64
		want  model.Confidence
	}{
		{"well above high", 0.95, model.ConfidenceHigh},
		{"exactly high", 0.85, model.ConfidenceHigh},
		{"just below high", 0.8499, model.ConfidenceLikely},
		{"exactly likely", 0.65, model.ConfidenceLikely},
		{"just below likely", 0.6499, model.ConfidencePossible},
		{"zero", 0.0, model.ConfidencePossible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.score, bands))
		})
	}
}

func TestClassify_CustomBands(t *testing.T) {
	t.Parallel()

	bands := config.Bands{High: 0.9, Likely: 0.5}

	assert.Equal(t, model.ConfidenceHigh, Classify(0.9, bands))
	assert.Equal(t, model.ConfidenceLikely, Classify(0.89, bands))
	assert.Equal(t, model.ConfidenceLikely, Classify(0.5, bands))
	assert.Equal(t, model.ConfidencePossible, Classify(0.49, bands))
}

func TestAggregateThenClassify_DefaultsReachEveryBand(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	// All signals maxed: every weight contributes fully.
	maxed := []model.SignalValue{
		sig(cfg.Weights.AgencyContinuity),
		sig(cfg.Weights.TimingProximity),
		sig(cfg.Weights.CompetitionType),
		sig(cfg.Weights.Patent),
		sig(cfg.Weights.TechArea),
		sig(cfg.Weights.VendorMatch),
	}
	top := Aggregate(cfg.Detect.BaseScore, maxed)
	assert.Equal(t, model.ConfidenceHigh, Classify(top, cfg.Bands))

	mid := Aggregate(cfg.Detect.BaseScore, []model.SignalValue{sig(cfg.Weights.TimingProximity)})
	assert.Equal(t, model.ConfidenceLikely, Classify(mid, cfg.Bands))

	assert.Equal(t, model.ConfidencePossible, Classify(Aggregate(cfg.Detect.BaseScore, nil), cfg.Bands))
}
