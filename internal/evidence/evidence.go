// Package evidence renders the human-readable justification bundle for a
// scored transition. Every numeric contribution in the score is backed by
// exactly one evidence entry built from the same signal outputs, and the
// builder verifies that correspondence instead of assuming it.
package evidence

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/phasebridge/transition-cli/internal/config"
	"github.com/phasebridge/transition-cli/internal/model"
	"github.com/phasebridge/transition-cli/internal/score"
)

// contributionTolerance bounds the allowed float drift between the summed
// entry contributions and score minus base.
const contributionTolerance = 1e-9

// Builder renders evidence bundles.
type Builder struct {
	bands config.Bands
}

// NewBuilder creates a Builder using the given confidence bands for the
// summary line.
func NewBuilder(bands config.Bands) *Builder {
	return &Builder{bands: bands}
}

// Build renders one evidence entry per signal plus a summary sentence.
// It returns an error when the bundle would not fully explain the score:
// a missing or misnamed entry, or entry contributions that do not sum to
// score minus base.
func (b *Builder) Build(signals model.TransitionSignals, match model.VendorMatch, base, likelihood float64) (model.EvidenceBundle, error) {
	values := signals.Values()
	entries := make([]model.EvidenceEntry, 0, len(values))

	insufficient := 0
	for _, v := range values {
		entry := model.EvidenceEntry{
			Signal:       v.Name,
			Contribution: v.Contribution,
			Snippet:      b.snippet(v, signals, match),
			Raw:          rawValues(v, signals, match),
		}
		if v.Insufficient {
			insufficient++
		}
		entries = append(entries, entry)
	}

	if err := verify(entries, values, base, likelihood); err != nil {
		return model.EvidenceBundle{}, err
	}

	band := score.Classify(likelihood, b.bands)
	summary := fmt.Sprintf("Likelihood %.3f (%s): base %.2f plus %.3f from %d signals (%d insufficient)",
		likelihood, band, base, likelihood-base, len(entries), insufficient)

	return model.EvidenceBundle{Summary: summary, Entries: entries}, nil
}

// verify enforces the completeness invariant: one entry per signal, in
// order, with contributions that reproduce the score.
func verify(entries []model.EvidenceEntry, values []model.SignalValue, base, likelihood float64) error {
	if len(entries) != len(values) {
		return eris.Errorf("evidence: %d entries for %d signals", len(entries), len(values))
	}

	var sum float64
	for i, e := range entries {
		if e.Signal != values[i].Name {
			return eris.Errorf("evidence: entry %d is %s, want %s", i, e.Signal, values[i].Name)
		}
		if e.Snippet == "" {
			return eris.Errorf("evidence: empty snippet for %s", e.Signal)
		}
		sum += e.Contribution
	}

	// The clamp in score.Aggregate only fires on misconfigured weights, but
	// a clamped score can no longer be explained entry by entry.
	if diff := math.Abs((base + sum) - likelihood); diff > contributionTolerance {
		return eris.Errorf("evidence: contributions sum to %.6f, score is %.6f", base+sum, likelihood)
	}
	return nil
}

func (b *Builder) snippet(v model.SignalValue, s model.TransitionSignals, match model.VendorMatch) string {
	if v.Insufficient {
		return v.Note
	}

	switch v.Name {
	case model.SignalAgencyContinuity:
		return agencySnippet(s)
	case model.SignalTimingProximity:
		return timingSnippet(s)
	case model.SignalCompetitionType:
		return competitionSnippet(v, s)
	case model.SignalPatent:
		return patentSnippet(s)
	case model.SignalTechArea:
		return techSnippet(v, s)
	case model.SignalVendorMatch:
		return vendorSnippet(match)
	default:
		return string(v.Name)
	}
}

func agencySnippet(s model.TransitionSignals) string {
	if !strings.EqualFold(s.AwardAgency, s.ContractAgency) {
		return fmt.Sprintf("Different agencies (%s vs %s)", s.AwardAgency, s.ContractAgency)
	}
	if s.AwardBranch != "" && strings.EqualFold(s.AwardBranch, s.ContractBranch) {
		return fmt.Sprintf("Same agency (%s) and branch (%s)", s.AwardAgency, s.AwardBranch)
	}
	return fmt.Sprintf("Same agency (%s), different or unknown branch", s.AwardAgency)
}

func timingSnippet(s model.TransitionSignals) string {
	if s.DaysBetween == nil {
		return "Timing gap unavailable"
	}
	days := *s.DaysBetween
	if days < 0 {
		return fmt.Sprintf("Contract began %d days before award completion", -days)
	}
	return fmt.Sprintf("Contract began %d days after award completion", days)
}

// competitionSnippet phrases the category from the signal score, which is
// distinct per category, so contracts imported without a raw FPDS code still
// phrase correctly.
func competitionSnippet(v model.SignalValue, s model.TransitionSignals) string {
	var phrase string
	switch {
	case v.Score >= 1.0:
		phrase = "Sole-source contract action"
	case v.Score >= 0.9:
		phrase = "Follow-on to a competed action"
	case v.Score >= 0.8:
		phrase = "Not competed under simplified acquisition"
	case v.Score >= 0.4:
		phrase = "Limited or delivery-order competition"
	default:
		phrase = "Full and open competition"
	}
	if s.CompetitionCode != "" {
		return fmt.Sprintf("%s (code %s)", phrase, s.CompetitionCode)
	}
	return phrase
}

func patentSnippet(s model.TransitionSignals) string {
	if s.PatentCount == 0 {
		return "No patents linked to award"
	}
	snippet := fmt.Sprintf("%d patent(s) linked to award", s.PatentCount)
	if s.PatentPredates {
		snippet += "; at least one filed before contract action"
	}
	if s.PatentTopicSim != nil {
		snippet += fmt.Sprintf("; best topic similarity %.2f", *s.PatentTopicSim)
	}
	return snippet
}

func techSnippet(v model.SignalValue, s model.TransitionSignals) string {
	switch {
	case v.Score >= 1.0:
		return fmt.Sprintf("Same technology area (%s)", s.AwardTechArea)
	case v.Score >= 0.5:
		return fmt.Sprintf("Related technology areas (%s, %s)", s.AwardTechArea, s.ContractTechArea)
	default:
		return fmt.Sprintf("Unrelated technology areas (%s vs %s)", s.AwardTechArea, s.ContractTechArea)
	}
}

func vendorSnippet(match model.VendorMatch) string {
	switch match.Method {
	case model.MatchUEI, model.MatchCAGE, model.MatchDUNS:
		return fmt.Sprintf("Vendor matched by %s (confidence %.2f)", strings.ToUpper(string(match.Method)), match.Confidence)
	case model.MatchFuzzyName:
		return fmt.Sprintf("Fuzzy name match %q ~ %q (similarity %.2f, confidence %.2f)",
			match.AwardName, match.ContractName, match.Similarity, match.Confidence)
	default:
		return "No vendor match"
	}
}

func rawValues(v model.SignalValue, s model.TransitionSignals, match model.VendorMatch) map[string]any {
	raw := map[string]any{
		"score":  v.Score,
		"weight": v.Weight,
	}
	if v.Insufficient {
		raw["insufficient"] = true
	}

	switch v.Name {
	case model.SignalAgencyContinuity:
		raw["award_agency"] = s.AwardAgency
		raw["contract_agency"] = s.ContractAgency
		raw["award_branch"] = s.AwardBranch
		raw["contract_branch"] = s.ContractBranch
	case model.SignalTimingProximity:
		if s.DaysBetween != nil {
			raw["days_between"] = *s.DaysBetween
		}
	case model.SignalCompetitionType:
		raw["competition_code"] = s.CompetitionCode
	case model.SignalPatent:
		raw["patent_count"] = s.PatentCount
		raw["patent_predates"] = s.PatentPredates
		if s.PatentTopicSim != nil {
			raw["topic_similarity"] = *s.PatentTopicSim
		}
	case model.SignalTechArea:
		raw["award_tech_area"] = s.AwardTechArea
		raw["contract_tech_area"] = s.ContractTechArea
	case model.SignalVendorMatch:
		raw["method"] = string(match.Method)
		raw["confidence"] = match.Confidence
		if match.Method == model.MatchFuzzyName {
			raw["similarity"] = match.Similarity
		}
	}
	return raw
}
