package detect

import (
	"sort"
	"strings"

	"github.com/phasebridge/transition-cli/internal/config"
	"github.com/phasebridge/transition-cli/internal/model"
	"github.com/phasebridge/transition-cli/internal/resolve"
)

// Blocker narrows the contract universe for one award to a candidate set
// worth scoring. Implementations trade recall for candidate volume; the
// scoring stage never sees pairs a Blocker withheld.
type Blocker interface {
	Candidates(award *model.Award) []*model.Contract
}

// Index is the build-once blocking structure. Contracts are keyed by each
// vendor identifier and by agency with a date-sorted slice, so candidate
// lookup is a handful of map hits and one binary search instead of a scan
// over the full contract universe.
type Index struct {
	cfg config.BlockConfig

	byUEI    map[string][]*model.Contract
	byCAGE   map[string][]*model.Contract
	byDUNS   map[string][]*model.Contract
	byAgency map[string][]*model.Contract // sorted by ActionDate
}

var _ Blocker = (*Index)(nil)

// NewIndex builds the blocking index over a contract universe.
func NewIndex(contracts []*model.Contract, cfg config.BlockConfig) *Index {
	idx := &Index{
		cfg:      cfg,
		byUEI:    make(map[string][]*model.Contract),
		byCAGE:   make(map[string][]*model.Contract),
		byDUNS:   make(map[string][]*model.Contract),
		byAgency: make(map[string][]*model.Contract),
	}

	for _, c := range contracts {
		if uei := resolve.NormalizeID(c.Vendor.UEI); uei != "" {
			idx.byUEI[uei] = append(idx.byUEI[uei], c)
		}
		if cage := resolve.NormalizeID(c.Vendor.CAGE); cage != "" {
			idx.byCAGE[cage] = append(idx.byCAGE[cage], c)
		}
		if duns := resolve.NormalizeDUNS(c.Vendor.DUNS); duns != "" {
			idx.byDUNS[duns] = append(idx.byDUNS[duns], c)
		}
		if key := agencyKey(c.Agency); key != "" && !c.ActionDate.IsZero() {
			idx.byAgency[key] = append(idx.byAgency[key], c)
		}
	}

	for _, list := range idx.byAgency {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ActionDate.Before(list[j].ActionDate)
		})
	}

	return idx
}

// Candidates returns the union of the identifier blocks and the agency date
// window, preserving first-seen order and deduplicating by contract ID.
// The full cross product of awards and contracts is never formed.
func (idx *Index) Candidates(award *model.Award) []*model.Contract {
	var out []*model.Contract
	seen := make(map[string]bool)

	add := func(list []*model.Contract) {
		for _, c := range list {
			if seen[c.ContractID] {
				continue
			}
			seen[c.ContractID] = true
			out = append(out, c)
		}
	}

	if uei := resolve.NormalizeID(award.Recipient.UEI); uei != "" {
		add(idx.byUEI[uei])
	}
	if cage := resolve.NormalizeID(award.Recipient.CAGE); cage != "" {
		add(idx.byCAGE[cage])
	}
	if duns := resolve.NormalizeDUNS(award.Recipient.DUNS); duns != "" {
		add(idx.byDUNS[duns])
	}

	add(idx.agencyWindow(award))

	return out
}

// agencyWindow returns the award agency's contracts whose action date falls
// in [completion - MaxDaysBefore, completion + MaxDaysAfter].
func (idx *Index) agencyWindow(award *model.Award) []*model.Contract {
	key := agencyKey(award.Agency)
	if key == "" || award.CompletionDate.IsZero() {
		return nil
	}
	list := idx.byAgency[key]
	if len(list) == 0 {
		return nil
	}

	lo := award.CompletionDate.AddDate(0, 0, -idx.cfg.MaxDaysBefore)
	hi := award.CompletionDate.AddDate(0, 0, idx.cfg.MaxDaysAfter)

	start := sort.Search(len(list), func(i int) bool {
		return !list[i].ActionDate.Before(lo)
	})

	var window []*model.Contract
	for i := start; i < len(list) && !list[i].ActionDate.After(hi); i++ {
		window = append(window, list[i])
	}
	return window
}

func agencyKey(agency string) string {
	return strings.ToUpper(strings.TrimSpace(agency))
}
