// Package score combines signal contributions into a likelihood score and
// classifies it into a confidence band. The model is additive: a base prior
// plus the weighted contribution of each signal, clamped to [0,1].
package score

import (
	"github.com/phasebridge/transition-cli/internal/config"
	"github.com/phasebridge/transition-cli/internal/model"
)

// Aggregate returns base plus the sum of signal contributions, clamped to
// [0,1]. Config validation guarantees base + max weights <= 1, so the clamp
// only fires on malformed inputs, never on well-configured scoring.
func Aggregate(base float64, signals []model.SignalValue) float64 {
	total := base
	for _, s := range signals {
		total += s.Contribution
	}
	if total < 0 {
		return 0
	}
	if total > 1 {
		return 1
	}
	return total
}

// Classify maps a likelihood score onto its confidence band. Band edges are
// inclusive at the lower bound: a score exactly at High is HIGH.
func Classify(score float64, bands config.Bands) model.Confidence {
	switch {
	case score >= bands.High:
		return model.ConfidenceHigh
	case score >= bands.Likely:
		return model.ConfidenceLikely
	default:
		return model.ConfidencePossible
	}
}
