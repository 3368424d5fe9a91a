// Package resolve matches award recipients to contract vendors. Exact
// federal identifiers (UEI, CAGE, DUNS) are tried first; fuzzy name
// matching is the last resort and carries a confidence discount.
package resolve

import (
	"github.com/phasebridge/transition-cli/internal/config"
	"github.com/phasebridge/transition-cli/internal/model"
)

// identifierConfidence is the confidence assigned to exact identifier
// matches. Federal identifiers are near-authoritative but registrations
// do occasionally go stale or get reassigned.
const identifierConfidence = 0.99

// Resolver matches award recipients to contract vendors.
type Resolver struct {
	cfg config.ResolverConfig
}

// NewResolver creates a Resolver with the given fuzzy-match settings.
func NewResolver(cfg config.ResolverConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Match resolves whether the award recipient and contract vendor are the
// same entity. The ladder is UEI, then CAGE, then DUNS, then fuzzy name;
// empty identifiers never match. Match is pure and deterministic.
func (r *Resolver) Match(award *model.Award, contract *model.Contract) model.VendorMatch {
	m := model.VendorMatch{
		Method:       model.MatchNone,
		AwardName:    NormalizeName(award.Recipient.Name),
		ContractName: NormalizeName(contract.Vendor.Name),
	}

	if uei := NormalizeID(award.Recipient.UEI); uei != "" && uei == NormalizeID(contract.Vendor.UEI) {
		m.Method = model.MatchUEI
		m.Confidence = identifierConfidence
		return m
	}

	if cage := NormalizeID(award.Recipient.CAGE); cage != "" && cage == NormalizeID(contract.Vendor.CAGE) {
		m.Method = model.MatchCAGE
		m.Confidence = identifierConfidence
		return m
	}

	if duns := NormalizeDUNS(award.Recipient.DUNS); duns != "" && duns == NormalizeDUNS(contract.Vendor.DUNS) {
		m.Method = model.MatchDUNS
		m.Confidence = identifierConfidence
		return m
	}

	if sim := Similarity(award.Recipient.Name, contract.Vendor.Name); sim >= r.cfg.FuzzyThreshold {
		m.Method = model.MatchFuzzyName
		m.Similarity = sim
		m.Confidence = sim * r.cfg.FuzzyDiscount
		return m
	}

	return m
}
