package model

import (
	"time"

	"github.com/google/uuid"
)

// MatchMethod records how an award recipient was linked to a contract vendor.
type MatchMethod string

const (
	MatchUEI       MatchMethod = "uei"
	MatchCAGE      MatchMethod = "cage"
	MatchDUNS      MatchMethod = "duns"
	MatchFuzzyName MatchMethod = "fuzzy_name"
	MatchNone      MatchMethod = "none"
)

// VendorMatch is the vendor resolution result for one award/contract pair.
// A pair with Method == MatchNone is never promoted to scoring.
type VendorMatch struct {
	Method       MatchMethod `json:"method"`
	Similarity   float64     `json:"similarity,omitempty"` // fuzzy matches only
	Confidence   float64     `json:"confidence"`
	AwardName    string      `json:"award_name,omitempty"`    // normalized recipient name
	ContractName string      `json:"contract_name,omitempty"` // normalized vendor name
}

// SignalName identifies one of the six transition signals.
type SignalName string

const (
	SignalAgencyContinuity SignalName = "agency_continuity"
	SignalTimingProximity  SignalName = "timing_proximity"
	SignalCompetitionType  SignalName = "competition_type"
	SignalPatent           SignalName = "patent"
	SignalTechArea         SignalName = "tech_area"
	SignalVendorMatch      SignalName = "vendor_match"
)

// SignalValue is one signal's scored output. Score is the raw [0,1] extractor
// output before weighting; Contribution = Score * Weight. Insufficient marks
// signals that could not compute and contributed an explicit zero.
type SignalValue struct {
	Name         SignalName `json:"name"`
	Score        float64    `json:"score"`
	Weight       float64    `json:"weight"`
	Contribution float64    `json:"contribution"`
	Insufficient bool       `json:"insufficient,omitempty"`
	Note         string     `json:"note,omitempty"`
}

// TransitionSignals holds the six sub-scores plus the raw values that back
// them. Entirely derived; persisted only inside its parent Transition.
type TransitionSignals struct {
	AgencyContinuity SignalValue `json:"agency_continuity"`
	TimingProximity  SignalValue `json:"timing_proximity"`
	Competition      SignalValue `json:"competition_type"`
	Patent           SignalValue `json:"patent"`
	TechAlignment    SignalValue `json:"tech_area"`
	VendorConfidence SignalValue `json:"vendor_match"`

	// Supporting raw values.
	DaysBetween      *int     `json:"days_between,omitempty"` // nil when a date is missing
	AwardAgency      string   `json:"award_agency,omitempty"`
	ContractAgency   string   `json:"contract_agency,omitempty"`
	AwardBranch      string   `json:"award_branch,omitempty"`
	ContractBranch   string   `json:"contract_branch,omitempty"`
	AwardTechArea    string   `json:"award_tech_area,omitempty"`
	ContractTechArea string   `json:"contract_tech_area,omitempty"`
	CompetitionCode  string   `json:"competition_code,omitempty"`
	PatentCount      int      `json:"patent_count"`
	PatentPredates   bool     `json:"patent_predates"`
	PatentTopicSim   *float64 `json:"patent_topic_sim,omitempty"`
}

// Values returns the six signals in their fixed scoring order.
func (s *TransitionSignals) Values() []SignalValue {
	return []SignalValue{
		s.AgencyContinuity,
		s.TimingProximity,
		s.Competition,
		s.Patent,
		s.TechAlignment,
		s.VendorConfidence,
	}
}

// Confidence is the discrete band derived from a likelihood score.
type Confidence string

const (
	ConfidenceHigh     Confidence = "HIGH"
	ConfidenceLikely   Confidence = "LIKELY"
	ConfidencePossible Confidence = "POSSIBLE"
)

// EvidenceEntry explains one signal's contribution in human-readable form.
type EvidenceEntry struct {
	Signal       SignalName     `json:"signal"`
	Snippet      string         `json:"snippet"`
	Contribution float64        `json:"contribution"`
	Raw          map[string]any `json:"raw,omitempty"`
}

// EvidenceBundle is the per-transition justification: one entry per signal
// plus a one-line summary.
type EvidenceBundle struct {
	Summary string          `json:"summary"`
	Entries []EvidenceEntry `json:"entries"`
}

// Transition is a scored, evidenced claim that an award likely led to a
// contract. Immutable once created; re-scoring produces a new version.
type Transition struct {
	ID              string            `json:"transition_id"`
	Version         int               `json:"version"`
	AwardID         string            `json:"award_id"`
	ContractID      string            `json:"contract_id"`
	Match           VendorMatch       `json:"vendor_match"`
	Signals         TransitionSignals `json:"signals"`
	BaseScore       float64           `json:"base_score"`
	LikelihoodScore float64           `json:"likelihood_score"`
	Confidence      Confidence        `json:"confidence"`
	DetectedAt      time.Time         `json:"detected_at"`
	Evidence        EvidenceBundle    `json:"evidence"`

	// Denormalized rollup keys, so analytics never re-joins award records.
	Phase       Phase  `json:"phase,omitempty"`
	CompanyUEI  string `json:"company_uei,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// transitionNS namespaces the deterministic v5 transition IDs.
var transitionNS = uuid.MustParse("f7b3a1d2-4c8e-4b5a-9e2f-d41c0a6e8b73")

// TransitionID derives the deterministic ID for an award/contract pair.
// Scoring the same pair twice yields the same ID; versioning, not the ID,
// distinguishes re-scores.
func TransitionID(awardID, contractID string) string {
	return uuid.NewSHA1(transitionNS, []byte(awardID+"|"+contractID)).String()
}

// PatentRef is an externally supplied patent reference tied to an award.
// TopicSimilarity is an opaque [0,1] input from an upstream classifier.
type PatentRef struct {
	PatentNumber    string    `json:"patent_number"`
	Title           string    `json:"title,omitempty"`
	FiledDate       time.Time `json:"filed_date,omitempty"`
	TopicSimilarity *float64  `json:"topic_similarity,omitempty"`
}

// SignalInputs carries the optional per-record inputs supplied by other
// subsystems. All maps may be nil; extractors treat absence as neutral.
type SignalInputs struct {
	Patents           map[string][]PatentRef `json:"patents,omitempty"`             // by award ID
	AwardTechAreas    map[string]string      `json:"award_tech_areas,omitempty"`    // by award ID
	ContractTechAreas map[string]string      `json:"contract_tech_areas,omitempty"` // by contract ID
}

// AwardTechArea returns the technology-area label for an award, preferring
// the label carried on the award record over the external input map.
func (in *SignalInputs) AwardTechArea(a *Award) string {
	if a.TechArea != "" {
		return a.TechArea
	}
	if in == nil || in.AwardTechAreas == nil {
		return ""
	}
	return in.AwardTechAreas[a.AwardID]
}

// ContractTechArea returns the technology-area label for a contract, if an
// external classifier supplied one.
func (in *SignalInputs) ContractTechArea(c *Contract) string {
	if in == nil || in.ContractTechAreas == nil {
		return ""
	}
	return in.ContractTechAreas[c.ContractID]
}

// AwardPatents returns the patent references tied to an award.
func (in *SignalInputs) AwardPatents(awardID string) []PatentRef {
	if in == nil || in.Patents == nil {
		return nil
	}
	return in.Patents[awardID]
}
