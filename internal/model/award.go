// Package model defines the award, contract, and transition entities shared
// across the detection pipeline.
package model

import (
	"strings"
	"time"
)

// Phase identifies the research program phase of an award.
type Phase string

const (
	PhaseI       Phase = "Phase I"
	PhaseII      Phase = "Phase II"
	PhaseIII     Phase = "Phase III"
	PhaseUnknown Phase = "Unknown"
)

// Identity carries the vendor identity fields shared by award recipients and
// contract vendors. Identifier fields are optional; matching handles absence.
type Identity struct {
	Name  string `json:"name"`
	UEI   string `json:"uei,omitempty"`
	DUNS  string `json:"duns,omitempty"`
	CAGE  string `json:"cage,omitempty"`
	State string `json:"state,omitempty"`
	City  string `json:"city,omitempty"`
}

// Award is a small-business research funding record. Awards are produced by
// upstream ingestion and are immutable here.
type Award struct {
	AwardID        string    `json:"award_id"`
	Phase          Phase     `json:"phase"`
	Program        string    `json:"program,omitempty"` // SBIR or STTR
	Agency         string    `json:"agency"`
	Branch         string    `json:"branch,omitempty"` // sub-agency
	Amount         float64   `json:"amount,omitempty"`
	AwardDate      time.Time `json:"award_date"`
	CompletionDate time.Time `json:"completion_date,omitempty"`
	Recipient      Identity  `json:"recipient"`
	TechArea       string    `json:"tech_area,omitempty"` // optional classifier label
}

// NormalizePhase maps the free-form phase strings found in award feeds
// ("Phase I", "1", "II", "PHASE-2") onto the Phase constants.
func NormalizePhase(s string) Phase {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.TrimPrefix(n, "PHASE")
	n = strings.Trim(n, " -_.")
	switch n {
	case "I", "1", "ONE":
		return PhaseI
	case "II", "2", "TWO":
		return PhaseII
	case "III", "3", "THREE":
		return PhaseIII
	default:
		return PhaseUnknown
	}
}
