// Package signal computes the six transition signals for an award/contract
// pair. Every extractor is a pure function: identical inputs produce
// identical outputs, with no clock, randomness, or I/O, so batches can be
// scored in parallel and re-scored byte-identically.
package signal

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/phasebridge/transition-cli/internal/config"
	"github.com/phasebridge/transition-cli/internal/model"
	"github.com/phasebridge/transition-cli/internal/taxonomy"
)

// Params carries the configuration slices the extractors need.
type Params struct {
	Weights  config.Weights
	Timing   config.TimingConfig
	Taxonomy *taxonomy.Taxonomy
}

// Extract runs all six extractors and fills the raw supporting fields used
// for evidence and analytics.
func Extract(award *model.Award, contract *model.Contract, match model.VendorMatch, inputs *model.SignalInputs, p Params) model.TransitionSignals {
	patents := inputs.AwardPatents(award.AwardID)
	awardArea := inputs.AwardTechArea(award)
	contractArea := inputs.ContractTechArea(contract)

	s := model.TransitionSignals{
		AgencyContinuity: AgencyContinuity(award, contract, p.Weights.AgencyContinuity),
		TimingProximity:  TimingProximity(award, contract, p.Timing, p.Weights.TimingProximity),
		Competition:      Competition(contract, p.Weights.CompetitionType),
		Patent:           Patent(patents, contract.ActionDate, p.Weights.Patent),
		TechAlignment:    TechAlignment(awardArea, contractArea, p.Taxonomy, p.Weights.TechArea),
		VendorConfidence: VendorConfidence(match, p.Weights.VendorMatch),

		DaysBetween:      DaysBetween(award, contract),
		AwardAgency:      award.Agency,
		ContractAgency:   contract.Agency,
		AwardBranch:      award.Branch,
		ContractBranch:   contract.Branch,
		AwardTechArea:    awardArea,
		ContractTechArea: contractArea,
		CompetitionCode:  contract.CompetitionCode,
	}

	s.PatentCount = len(patents)
	s.PatentPredates = anyFiledBefore(patents, contract.ActionDate)
	s.PatentTopicSim = maxTopicSimilarity(patents)

	return s
}

// AgencyContinuity returns 1.0 when award and contract share agency and
// sub-agency, 0.5 for the same agency with a different (or unknown)
// sub-agency, 0 otherwise. Missing agency on either side is insufficient
// data, not a zero observation.
func AgencyContinuity(award *model.Award, contract *model.Contract, weight float64) model.SignalValue {
	aAgency := strings.TrimSpace(award.Agency)
	cAgency := strings.TrimSpace(contract.Agency)
	if aAgency == "" || cAgency == "" {
		return insufficient(model.SignalAgencyContinuity, weight, "agency missing on award or contract")
	}

	score := 0.0
	if strings.EqualFold(aAgency, cAgency) {
		score = 0.5
		aBranch := strings.TrimSpace(award.Branch)
		cBranch := strings.TrimSpace(contract.Branch)
		if aBranch != "" && strings.EqualFold(aBranch, cBranch) {
			score = 1.0
		}
	}

	return value(model.SignalAgencyContinuity, score, weight)
}

// DaysBetween returns the signed gap in days from award completion to
// contract action, or nil when either date is unknown.
func DaysBetween(award *model.Award, contract *model.Contract) *int {
	if award.CompletionDate.IsZero() || contract.ActionDate.IsZero() {
		return nil
	}
	days := int(contract.ActionDate.Sub(award.CompletionDate).Hours() / 24)
	return &days
}

// TimingProximity scores the gap between award completion and contract
// action through the configured step function. Gaps beyond the last window
// score cfg.BeyondScore; negative gaps (contract predates completion) score
// cfg.NegativeScore, weakening but not falsifying the transition story.
func TimingProximity(award *model.Award, contract *model.Contract, cfg config.TimingConfig, weight float64) model.SignalValue {
	days := DaysBetween(award, contract)
	if days == nil {
		return insufficient(model.SignalTimingProximity, weight, "completion or action date missing")
	}

	if *days < 0 {
		return value(model.SignalTimingProximity, cfg.NegativeScore, weight)
	}
	for _, w := range cfg.Windows {
		if *days <= w.MaxDays {
			return value(model.SignalTimingProximity, w.Score, weight)
		}
	}
	return value(model.SignalTimingProximity, cfg.BeyondScore, weight)
}

// competitionScores maps normalized competition categories to raw scores.
// Sole-source actions are the strongest continuation signal; winning full
// and open competition says little about a prior research relationship.
var competitionScores = map[model.CompetitionType]float64{
	model.CompetitionSoleSource:    1.0,
	model.CompetitionFollowOn:      0.9,
	model.CompetitionSAPNoncompete: 0.8,
	model.CompetitionLimited:       0.4,
	model.CompetitionFullOpen:      0.1,
}

// Competition scores the contract's competition category.
func Competition(contract *model.Contract, weight float64) model.SignalValue {
	score, ok := competitionScores[contract.Competition]
	if !ok {
		return insufficient(model.SignalCompetitionType, weight, "competition type unknown")
	}
	return value(model.SignalCompetitionType, score, weight)
}

// Patent combines patent count, filing order, and topic similarity:
// 0.4 x min(count/3, 1) + 0.3 x (any patent filed before the contract
// action) + 0.3 x max topic similarity. An award with no linked patents
// scores 0; absent patents are an observation, not missing data.
func Patent(refs []model.PatentRef, actionDate time.Time, weight float64) model.SignalValue {
	if len(refs) == 0 {
		return value(model.SignalPatent, 0, weight)
	}

	score := 0.4 * math.Min(float64(len(refs))/3.0, 1.0)
	if anyFiledBefore(refs, actionDate) {
		score += 0.3
	}
	if sim := maxTopicSimilarity(refs); sim != nil {
		score += 0.3 * *sim
	}

	return value(model.SignalPatent, score, weight)
}

func anyFiledBefore(refs []model.PatentRef, actionDate time.Time) bool {
	if actionDate.IsZero() {
		return false
	}
	for _, r := range refs {
		if !r.FiledDate.IsZero() && r.FiledDate.Before(actionDate) {
			return true
		}
	}
	return false
}

func maxTopicSimilarity(refs []model.PatentRef) *float64 {
	var best *float64
	for _, r := range refs {
		if r.TopicSimilarity == nil {
			continue
		}
		sim := clamp01(*r.TopicSimilarity)
		if best == nil || sim > *best {
			best = &sim
		}
	}
	return best
}

// TechAlignment scores technology-area overlap: exact area 1.0, related
// area 0.5, unrelated 0. A label absent from the taxonomy (or missing
// entirely) is insufficient data.
func TechAlignment(awardArea, contractArea string, tax *taxonomy.Taxonomy, weight float64) model.SignalValue {
	if strings.TrimSpace(awardArea) == "" || strings.TrimSpace(contractArea) == "" {
		return insufficient(model.SignalTechArea, weight, "technology-area label missing")
	}

	switch tax.Relation(awardArea, contractArea) {
	case taxonomy.RelationExact:
		return value(model.SignalTechArea, 1.0, weight)
	case taxonomy.RelationRelated:
		return value(model.SignalTechArea, 0.5, weight)
	case taxonomy.RelationUnrelated:
		return value(model.SignalTechArea, 0, weight)
	default:
		return insufficient(model.SignalTechArea, weight,
			fmt.Sprintf("label not in taxonomy: %q vs %q", awardArea, contractArea))
	}
}

// VendorConfidence passes the resolver's match confidence through as a
// signal, so weaker fuzzy matches drag the final score down relative to
// identifier-exact matches.
func VendorConfidence(match model.VendorMatch, weight float64) model.SignalValue {
	return value(model.SignalVendorMatch, match.Confidence, weight)
}

// value builds a SignalValue with the score clamped to [0,1] before
// weighting.
func value(name model.SignalName, score, weight float64) model.SignalValue {
	score = clamp01(score)
	return model.SignalValue{
		Name:         name,
		Score:        score,
		Weight:       weight,
		Contribution: score * weight,
	}
}

// insufficient builds a neutral zero-contribution SignalValue carrying the
// reason, which the evidence builder surfaces so absent data is never
// silently conflated with a zero observation.
func insufficient(name model.SignalName, weight float64, note string) model.SignalValue {
	return model.SignalValue{
		Name:         name,
		Weight:       weight,
		Insufficient: true,
		Note:         "insufficient data: " + note,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
