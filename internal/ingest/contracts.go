package ingest

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/phasebridge/transition-cli/internal/model"
)

// ReadContracts loads federal contract action records from a CSV or XLSX
// feed file. The alias lists accept both USAspending bulk-download column
// names (award_id_piid, extent_competed_code) and the shorter names used in
// curated extracts.
func ReadContracts(path string) ([]*model.Contract, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("ingest: %s: contracts file has no header row", filepath.Base(path))
	}

	colIdx := mapColumns(rows[0])

	contracts := make([]*model.Contract, 0, len(rows)-1)
	skipped := 0
	for _, record := range rows[1:] {
		c := contractFromRecord(record, colIdx)
		if c == nil {
			skipped++
			continue
		}
		contracts = append(contracts, c)
	}

	log := zap.L().With(zap.String("component", "ingest"))
	if skipped > 0 {
		log.Warn("skipped contract rows without an id",
			zap.Int("count", skipped), zap.String("file", filepath.Base(path)))
	}
	log.Debug("loaded contracts", zap.Int("count", len(contracts)), zap.String("file", filepath.Base(path)))

	return contracts, nil
}

func contractFromRecord(record []string, colIdx map[string]int) *model.Contract {
	piid := firstNonEmpty(record, colIdx, "piid", "award id piid")

	// PIID is the natural key when the feed lacks a synthetic one.
	id := firstNonEmpty(record, colIdx, "contract id", "contract award unique key", "contract transaction unique key")
	if id == "" {
		id = piid
	}
	if id == "" {
		return nil
	}

	code := firstNonEmpty(record, colIdx, "competition code", "extent competed code")
	label := firstNonEmpty(record, colIdx, "competition", "extent competed")

	return &model.Contract{
		ContractID:      id,
		PIID:            piid,
		FAIN:            firstNonEmpty(record, colIdx, "fain", "award id fain"),
		ParentPIID:      firstNonEmpty(record, colIdx, "parent piid", "parent award id piid"),
		Agency:          firstNonEmpty(record, colIdx, "agency", "awarding agency name"),
		Branch:          firstNonEmpty(record, colIdx, "branch", "awarding sub agency name", "sub agency"),
		ActionDate:      parseDate(firstNonEmpty(record, colIdx, "action date", "date signed", "period of performance start date")),
		ObligatedAmount: parseMoney(firstNonEmpty(record, colIdx, "obligated amount", "total dollars obligated", "federal action obligation", "dollars obligated")),
		BaseAmount:      parseMoney(firstNonEmpty(record, colIdx, "base amount", "base and exercised options value")),
		OptionAmount:    parseMoney(firstNonEmpty(record, colIdx, "option amount", "base and all options value")),
		Competition:     normalizeCompetition(code, label),
		CompetitionCode: code,
		Vendor: model.Identity{
			Name:  sanitizeText(firstNonEmpty(record, colIdx, "vendor name", "recipient name", "vendor")),
			UEI:   firstNonEmpty(record, colIdx, "vendor uei", "recipient uei", "uei"),
			DUNS:  firstNonEmpty(record, colIdx, "vendor duns", "recipient duns", "duns"),
			CAGE:  firstNonEmpty(record, colIdx, "cage code", "vendor cage", "cage"),
			State: firstNonEmpty(record, colIdx, "vendor state", "recipient state code", "state"),
			City:  sanitizeText(firstNonEmpty(record, colIdx, "vendor city", "recipient city name", "city")),
		},
		ParentUEI:   firstNonEmpty(record, colIdx, "parent uei", "recipient parent uei", "ultimate parent uei"),
		ParentName:  sanitizeText(firstNonEmpty(record, colIdx, "parent name", "recipient parent name", "ultimate parent name")),
		NAICS:       firstNonEmpty(record, colIdx, "naics", "naics code"),
		PSC:         firstNonEmpty(record, colIdx, "psc", "product or service code"),
		Description: sanitizeText(firstNonEmpty(record, colIdx, "description", "transaction description", "award description", "prime award base transaction description")),
	}
}
