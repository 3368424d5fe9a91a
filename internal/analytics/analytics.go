// Package analytics rolls detected transitions up into portfolio-level
// counts, rates, and timing distributions. Accumulators are mergeable, so
// partial rollups computed over disjoint batches combine into the same
// result as a single pass over the whole collection.
package analytics

import (
	"maps"
	"math"
	"sort"

	"github.com/phasebridge/transition-cli/internal/model"
)

// unknownKey buckets records whose agency or technology area is missing, so
// per-key counts still sum to TotalTransitions.
const unknownKey = "unknown"

// TimingStats summarizes the award-completion-to-contract-start gap in days
// across every transition that carried both dates. Percentiles use the
// nearest-rank method on the merged day values.
type TimingStats struct {
	Samples int `json:"samples"`
	P25     int `json:"p25_days"`
	Median  int `json:"median_days"`
	P75     int `json:"p75_days"`
	P90     int `json:"p90_days"`
}

// CompanyTransitionProfile describes one vendor's transition record. Key is
// the vendor's UEI when any record carried one, otherwise the normalized
// vendor name from the match.
type CompanyTransitionProfile struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Transitions int      `json:"transitions"`
	High        int      `json:"high_confidence"`
	AvgScore    float64  `json:"avg_score"`
	Agencies    []string `json:"agencies"`
}

// Rollup is a derived, recomputable view over a set of transitions.
type Rollup struct {
	TotalTransitions   int                        `json:"total_transitions"`
	CountsByConfidence map[model.Confidence]int   `json:"counts_by_confidence"`
	ByPhase            map[model.Phase]int        `json:"by_phase"`
	ByAgency           map[string]int             `json:"by_agency"`
	ByTechArea         map[string]int             `json:"by_tech_area"`
	ByAward            map[string]int             `json:"by_award"`
	ByCompany          []CompanyTransitionProfile `json:"by_company"`
	Timing             TimingStats                `json:"timing"`
	PatentBackedRate   float64                    `json:"patent_backed_rate"`
}

type companyAgg struct {
	name     string
	count    int
	high     int
	scoreSum float64
	agencies map[string]struct{}
}

// Accumulator builds a Rollup incrementally. Add and Merge are associative
// and order-independent, so batches may be accumulated in parallel and
// merged in any order.
type Accumulator struct {
	total        int
	byConfidence map[model.Confidence]int
	byPhase      map[model.Phase]int
	byAgency     map[string]int
	byTechArea   map[string]int
	byAward      map[string]int
	companies    map[string]*companyAgg
	days         []int
	patentBacked int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		byConfidence: make(map[model.Confidence]int),
		byPhase:      make(map[model.Phase]int),
		byAgency:     make(map[string]int),
		byTechArea:   make(map[string]int),
		byAward:      make(map[string]int),
		companies:    make(map[string]*companyAgg),
	}
}

// Add folds one transition into the accumulator. Nil transitions are ignored.
func (a *Accumulator) Add(t *model.Transition) {
	if t == nil {
		return
	}
	a.total++
	a.byConfidence[t.Confidence]++
	a.byPhase[phaseKey(t)]++
	a.byAgency[agencyKey(t)]++
	a.byTechArea[techKey(t)]++
	a.byAward[t.AwardID]++

	key, name := companyKey(t)
	c := a.companies[key]
	if c == nil {
		c = &companyAgg{agencies: make(map[string]struct{})}
		a.companies[key] = c
	}
	c.count++
	c.scoreSum += t.LikelihoodScore
	if t.Confidence == model.ConfidenceHigh {
		c.high++
	}
	// Lexically smallest name wins so display names do not depend on the
	// order batches were merged in.
	if name != "" && (c.name == "" || name < c.name) {
		c.name = name
	}
	if ag := agencyKey(t); ag != unknownKey {
		c.agencies[ag] = struct{}{}
	}

	if t.Signals.DaysBetween != nil {
		a.days = append(a.days, *t.Signals.DaysBetween)
	}
	if t.Signals.PatentCount > 0 {
		a.patentBacked++
	}
}

// Merge folds another accumulator into this one. The other accumulator is
// left untouched and may be reused.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	a.total += other.total
	for k, n := range other.byConfidence {
		a.byConfidence[k] += n
	}
	for k, n := range other.byPhase {
		a.byPhase[k] += n
	}
	for k, n := range other.byAgency {
		a.byAgency[k] += n
	}
	for k, n := range other.byTechArea {
		a.byTechArea[k] += n
	}
	for k, n := range other.byAward {
		a.byAward[k] += n
	}
	for key, oc := range other.companies {
		c := a.companies[key]
		if c == nil {
			c = &companyAgg{agencies: make(map[string]struct{})}
			a.companies[key] = c
		}
		c.count += oc.count
		c.high += oc.high
		c.scoreSum += oc.scoreSum
		if oc.name != "" && (c.name == "" || oc.name < c.name) {
			c.name = oc.name
		}
		for ag := range oc.agencies {
			c.agencies[ag] = struct{}{}
		}
	}
	a.days = append(a.days, other.days...)
	a.patentBacked += other.patentBacked
}

// Report materializes the rollup. Company profiles are ordered by transition
// count descending, ties broken by key, so output is stable across runs.
func (a *Accumulator) Report() *Rollup {
	r := &Rollup{
		TotalTransitions:   a.total,
		CountsByConfidence: maps.Clone(a.byConfidence),
		ByPhase:            maps.Clone(a.byPhase),
		ByAgency:           maps.Clone(a.byAgency),
		ByTechArea:         maps.Clone(a.byTechArea),
		ByAward:            maps.Clone(a.byAward),
		ByCompany:          make([]CompanyTransitionProfile, 0, len(a.companies)),
		Timing:             timingStats(a.days),
	}
	for key, c := range a.companies {
		p := CompanyTransitionProfile{
			Key:         key,
			Name:        c.name,
			Transitions: c.count,
			High:        c.high,
			Agencies:    make([]string, 0, len(c.agencies)),
		}
		if c.count > 0 {
			p.AvgScore = c.scoreSum / float64(c.count)
		}
		for ag := range c.agencies {
			p.Agencies = append(p.Agencies, ag)
		}
		sort.Strings(p.Agencies)
		r.ByCompany = append(r.ByCompany, p)
	}
	sort.Slice(r.ByCompany, func(i, j int) bool {
		if r.ByCompany[i].Transitions != r.ByCompany[j].Transitions {
			return r.ByCompany[i].Transitions > r.ByCompany[j].Transitions
		}
		return r.ByCompany[i].Key < r.ByCompany[j].Key
	})
	if a.total > 0 {
		r.PatentBackedRate = float64(a.patentBacked) / float64(a.total)
	}
	return r
}

// Summarize is the one-shot path: accumulate everything and report.
func Summarize(transitions []*model.Transition) *Rollup {
	acc := NewAccumulator()
	for _, t := range transitions {
		acc.Add(t)
	}
	return acc.Report()
}

func timingStats(days []int) TimingStats {
	if len(days) == 0 {
		return TimingStats{}
	}
	sorted := make([]int, len(days))
	copy(sorted, days)
	sort.Ints(sorted)
	return TimingStats{
		Samples: len(sorted),
		P25:     nearestRank(sorted, 25),
		Median:  nearestRank(sorted, 50),
		P75:     nearestRank(sorted, 75),
		P90:     nearestRank(sorted, 90),
	}
}

// nearestRank returns the p-th percentile of a sorted slice using the
// nearest-rank method: the value at ceil(p/100 * n), 1-based.
func nearestRank(sorted []int, p float64) int {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func phaseKey(t *model.Transition) model.Phase {
	if t.Phase == "" {
		return model.PhaseUnknown
	}
	return t.Phase
}

// agencyKey prefers the buying agency: the rollup answers where production
// dollars land, not where the research started.
func agencyKey(t *model.Transition) string {
	if t.Signals.ContractAgency != "" {
		return t.Signals.ContractAgency
	}
	if t.Signals.AwardAgency != "" {
		return t.Signals.AwardAgency
	}
	return unknownKey
}

func techKey(t *model.Transition) string {
	if t.Signals.AwardTechArea != "" {
		return t.Signals.AwardTechArea
	}
	if t.Signals.ContractTechArea != "" {
		return t.Signals.ContractTechArea
	}
	return unknownKey
}

func companyKey(t *model.Transition) (key, name string) {
	name = t.CompanyName
	if name == "" {
		name = t.Match.AwardName
	}
	if t.CompanyUEI != "" {
		return t.CompanyUEI, name
	}
	if t.Match.AwardName != "" {
		return t.Match.AwardName, name
	}
	return unknownKey, name
}
