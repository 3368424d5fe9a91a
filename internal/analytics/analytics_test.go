package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phasebridge/transition-cli/internal/model"
)

func days(n int) *int { return &n }

// tr builds a plausible transition and lets each case mutate the parts it
// cares about.
func tr(mut func(*model.Transition)) *model.Transition {
	t := &model.Transition{
		ID:              "t-1",
		Version:         1,
		AwardID:         "A1",
		ContractID:      "C1",
		Confidence:      model.ConfidenceLikely,
		LikelihoodScore: 0.70,
		Phase:           model.PhaseII,
		CompanyUEI:      "NOVA12345678",
		CompanyName:     "Nova Systems LLC",
		Signals: model.TransitionSignals{
			AwardAgency:      "DOD",
			ContractAgency:   "DOD",
			AwardTechArea:    "ai_ml",
			ContractTechArea: "ai_ml",
		},
	}
	if mut != nil {
		mut(t)
	}
	return t
}

func TestSummarizeCounts(t *testing.T) {
	t.Parallel()

	transitions := []*model.Transition{
		tr(func(x *model.Transition) {
			x.ID, x.ContractID = "t-1", "C1"
			x.Confidence = model.ConfidenceHigh
			x.LikelihoodScore = 0.90
			x.Signals.DaysBetween = days(45)
			x.Signals.PatentCount = 2
		}),
		tr(func(x *model.Transition) {
			x.ID, x.ContractID = "t-2", "C2"
			x.Signals.DaysBetween = days(200)
		}),
		tr(func(x *model.Transition) {
			x.ID, x.AwardID, x.ContractID = "t-3", "A2", "C3"
			x.Confidence = model.ConfidencePossible
			x.LikelihoodScore = 0.50
			x.Phase = model.PhaseI
			x.CompanyUEI = ""
			x.CompanyName = "Quark Labs"
			x.Match.AwardName = "QUARK LABS"
			x.Signals.ContractAgency = "NASA"
			x.Signals.AwardTechArea = ""
			x.Signals.ContractTechArea = ""
		}),
	}

	r := Summarize(transitions)

	assert.Equal(t, 3, r.TotalTransitions)
	assert.Equal(t, map[model.Confidence]int{
		model.ConfidenceHigh:     1,
		model.ConfidenceLikely:   1,
		model.ConfidencePossible: 1,
	}, r.CountsByConfidence)
	assert.Equal(t, map[model.Phase]int{
		model.PhaseI:  1,
		model.PhaseII: 2,
	}, r.ByPhase)
	assert.Equal(t, map[string]int{"DOD": 2, "NASA": 1}, r.ByAgency)
	assert.Equal(t, map[string]int{"ai_ml": 2, "unknown": 1}, r.ByTechArea)
	assert.Equal(t, map[string]int{"A1": 2, "A2": 1}, r.ByAward)
	assert.InDelta(t, 1.0/3.0, r.PatentBackedRate, 1e-12)
	assert.Equal(t, 2, r.Timing.Samples)
}

func TestCompanyProfiles(t *testing.T) {
	t.Parallel()

	transitions := []*model.Transition{
		tr(func(x *model.Transition) {
			x.ID, x.ContractID = "t-1", "C1"
			x.Confidence = model.ConfidenceHigh
			x.LikelihoodScore = 0.90
		}),
		tr(func(x *model.Transition) {
			x.ID, x.ContractID = "t-2", "C2"
			x.LikelihoodScore = 0.70
			x.Signals.ContractAgency = "NASA"
		}),
		tr(func(x *model.Transition) {
			x.ID, x.AwardID, x.ContractID = "t-3", "A2", "C3"
			x.CompanyUEI = ""
			x.CompanyName = "Quark Labs"
			x.Match.AwardName = "QUARK LABS"
			x.LikelihoodScore = 0.66
		}),
	}

	r := Summarize(transitions)
	require.Len(t, r.ByCompany, 2)

	nova := r.ByCompany[0]
	assert.Equal(t, "NOVA12345678", nova.Key)
	assert.Equal(t, "Nova Systems LLC", nova.Name)
	assert.Equal(t, 2, nova.Transitions)
	assert.Equal(t, 1, nova.High)
	assert.InDelta(t, 0.80, nova.AvgScore, 1e-12)
	assert.Equal(t, []string{"DOD", "NASA"}, nova.Agencies)

	quark := r.ByCompany[1]
	assert.Equal(t, "QUARK LABS", quark.Key)
	assert.Equal(t, "Quark Labs", quark.Name)
	assert.Equal(t, 1, quark.Transitions)
	assert.Equal(t, 0, quark.High)
	assert.InDelta(t, 0.66, quark.AvgScore, 1e-12)
}

func TestCompanyProfileOrderBreaksTiesByKey(t *testing.T) {
	t.Parallel()

	transitions := []*model.Transition{
		tr(func(x *model.Transition) { x.ID = "t-1"; x.CompanyUEI = "ZULU00000001" }),
		tr(func(x *model.Transition) { x.ID = "t-2"; x.ContractID = "C2"; x.CompanyUEI = "ALFA00000001" }),
	}

	r := Summarize(transitions)
	require.Len(t, r.ByCompany, 2)
	assert.Equal(t, "ALFA00000001", r.ByCompany[0].Key)
	assert.Equal(t, "ZULU00000001", r.ByCompany[1].Key)
}

func TestMergeMatchesSinglePass(t *testing.T) {
	t.Parallel()

	var transitions []*model.Transition
	agencies := []string{"DOD", "NASA", "DOE", ""}
	phases := []model.Phase{model.PhaseI, model.PhaseII, model.PhaseIII, ""}
	bands := []model.Confidence{model.ConfidenceHigh, model.ConfidenceLikely, model.ConfidencePossible}
	for i := 0; i < 24; i++ {
		i := i
		transitions = append(transitions, tr(func(x *model.Transition) {
			x.ID = string(rune('a' + i))
			x.AwardID = "A" + string(rune('0'+i%5))
			x.ContractID = "C" + string(rune('0'+i))
			x.Confidence = bands[i%len(bands)]
			x.LikelihoodScore = 0.5 + float64(i)*0.02
			x.Phase = phases[i%len(phases)]
			x.Signals.ContractAgency = agencies[i%len(agencies)]
			if i%2 == 0 {
				x.Signals.DaysBetween = days(30 * i)
			}
			if i%3 == 0 {
				x.Signals.PatentCount = i
			}
			if i%4 == 0 {
				x.CompanyUEI = ""
				x.CompanyName = "Vendor " + string(rune('A'+i%7))
				x.Match.AwardName = "VENDOR " + string(rune('A'+i%7))
			} else {
				x.CompanyUEI = "UEI" + string(rune('A'+i%7))
			}
		}))
	}

	whole := Summarize(transitions)

	// Split into three uneven batches, merge in a non-sequential order.
	batch := func(lo, hi int) *Accumulator {
		acc := NewAccumulator()
		for _, x := range transitions[lo:hi] {
			acc.Add(x)
		}
		return acc
	}
	first, second, third := batch(0, 5), batch(5, 17), batch(17, 24)

	merged := NewAccumulator()
	merged.Merge(third)
	merged.Merge(first)
	merged.Merge(second)
	require.Equal(t, whole, merged.Report())

	// Nested merges associate the same way.
	inner := NewAccumulator()
	inner.Merge(batch(5, 17))
	inner.Merge(batch(17, 24))
	outer := batch(0, 5)
	outer.Merge(inner)
	require.Equal(t, whole, outer.Report())
}

func TestAddOrderIndependent(t *testing.T) {
	t.Parallel()

	transitions := []*model.Transition{
		tr(func(x *model.Transition) { x.ID = "t-1"; x.Signals.DaysBetween = days(400) }),
		tr(func(x *model.Transition) { x.ID = "t-2"; x.ContractID = "C2"; x.Signals.DaysBetween = days(30) }),
		tr(func(x *model.Transition) { x.ID = "t-3"; x.ContractID = "C3"; x.Signals.DaysBetween = days(120) }),
	}

	forward := NewAccumulator()
	for _, x := range transitions {
		forward.Add(x)
	}
	backward := NewAccumulator()
	for i := len(transitions) - 1; i >= 0; i-- {
		backward.Add(transitions[i])
	}
	require.Equal(t, forward.Report(), backward.Report())
}

func TestTimingStatsNearestRank(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		days []int
		want TimingStats
	}{
		{
			name: "four values",
			days: []int{40, 10, 30, 20},
			want: TimingStats{Samples: 4, P25: 10, Median: 20, P75: 30, P90: 40},
		},
		{
			name: "single value",
			days: []int{100},
			want: TimingStats{Samples: 1, P25: 100, Median: 100, P75: 100, P90: 100},
		},
		{
			name: "ten values",
			days: []int{10, 1, 9, 2, 8, 3, 7, 4, 6, 5},
			want: TimingStats{Samples: 10, P25: 3, Median: 5, P75: 8, P90: 9},
		},
		{
			name: "negative gap included",
			days: []int{-20, 45, 90},
			want: TimingStats{Samples: 3, P25: -20, Median: 45, P75: 90, P90: 90},
		},
		{
			name: "empty",
			days: nil,
			want: TimingStats{},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, timingStats(tc.days))
		})
	}
}

func TestTimingAcrossMergedBatches(t *testing.T) {
	t.Parallel()

	left := NewAccumulator()
	left.Add(tr(func(x *model.Transition) { x.ID = "t-1"; x.Signals.DaysBetween = days(300) }))
	left.Add(tr(func(x *model.Transition) { x.ID = "t-2"; x.ContractID = "C2"; x.Signals.DaysBetween = days(10) }))

	right := NewAccumulator()
	right.Add(tr(func(x *model.Transition) { x.ID = "t-3"; x.ContractID = "C3"; x.Signals.DaysBetween = days(90) }))
	right.Add(tr(func(x *model.Transition) { x.ID = "t-4"; x.ContractID = "C4" }))

	left.Merge(right)
	r := left.Report()

	// The dateless transition contributes to counts but not to timing.
	assert.Equal(t, 4, r.TotalTransitions)
	assert.Equal(t, TimingStats{Samples: 3, P25: 10, Median: 90, P75: 300, P90: 300}, r.Timing)
}

func TestCompanyNameStableAcrossMergeOrder(t *testing.T) {
	t.Parallel()

	// Same vendor key arriving with two spellings: the rollup must settle on
	// the same display name no matter which batch lands first.
	a := tr(func(x *model.Transition) { x.ID = "t-1"; x.CompanyName = "Nova Systems LLC" })
	b := tr(func(x *model.Transition) { x.ID = "t-2"; x.ContractID = "C2"; x.CompanyName = "NOVA SYSTEMS" })

	ab := NewAccumulator()
	ab.Add(a)
	ab.Add(b)
	ba := NewAccumulator()
	ba.Add(b)
	ba.Add(a)

	require.Equal(t, ab.Report(), ba.Report())
	assert.Equal(t, "NOVA SYSTEMS", ab.Report().ByCompany[0].Name)
}

func TestEmptyRollup(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	acc.Add(nil)
	r := acc.Report()

	assert.Equal(t, 0, r.TotalTransitions)
	assert.Empty(t, r.ByCompany)
	assert.Zero(t, r.Timing)
	assert.Zero(t, r.PatentBackedRate)
	assert.Empty(t, r.CountsByConfidence)
}
