package model

import (
	"strings"
	"time"
)

// CompetitionType is the normalized competition category of a contract action.
type CompetitionType string

const (
	CompetitionSoleSource    CompetitionType = "sole_source"
	CompetitionFollowOn      CompetitionType = "follow_on"
	CompetitionSAPNoncompete CompetitionType = "sap_noncompete"
	CompetitionLimited       CompetitionType = "limited"
	CompetitionFullOpen      CompetitionType = "full_open"
	CompetitionUnknown       CompetitionType = "unknown"
)

// Contract is a federal contract or order record. Contracts are produced by
// upstream ingestion and are immutable here.
type Contract struct {
	ContractID      string          `json:"contract_id"`
	PIID            string          `json:"piid,omitempty"`
	FAIN            string          `json:"fain,omitempty"`
	ParentPIID      string          `json:"parent_piid,omitempty"` // task orders
	Agency          string          `json:"agency"`
	Branch          string          `json:"branch,omitempty"` // sub-agency
	ActionDate      time.Time       `json:"action_date"`
	ObligatedAmount float64         `json:"obligated_amount,omitempty"`
	BaseAmount      float64         `json:"base_amount,omitempty"`
	OptionAmount    float64         `json:"option_amount,omitempty"`
	Competition     CompetitionType `json:"competition"`
	CompetitionCode string          `json:"competition_code,omitempty"` // raw extent-competed code
	Vendor          Identity        `json:"vendor"`
	ParentUEI       string          `json:"parent_uei,omitempty"`
	ParentName      string          `json:"parent_name,omitempty"`
	NAICS           string          `json:"naics,omitempty"`
	PSC             string          `json:"psc,omitempty"`
	Description     string          `json:"description,omitempty"`
}

// CompetitionFromCode maps FPDS extent-competed codes onto the normalized
// competition categories.
//
//	A   full and open competition
//	B   not available for competition
//	C   not competed
//	D   full and open after exclusion of sources
//	E   follow-on to competed action
//	F   competed under simplified acquisition procedures
//	G   not competed under simplified acquisition procedures
//	CDO competitive delivery order
//	NDO non-competitive delivery order
func CompetitionFromCode(code string) CompetitionType {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "B", "C", "NDO":
		return CompetitionSoleSource
	case "E":
		return CompetitionFollowOn
	case "G":
		return CompetitionSAPNoncompete
	case "D", "F", "CDO":
		return CompetitionLimited
	case "A":
		return CompetitionFullOpen
	default:
		return CompetitionUnknown
	}
}
