package ingest

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/phasebridge/transition-cli/internal/model"
)

// ReadAwards loads research award records from a CSV or XLSX feed file.
// Column names follow either the SBIR.gov export style ("Company",
// "Award Amount") or the USAspending style (recipient_name, recipient_uei);
// both resolve through the same alias lists.
func ReadAwards(path string) ([]*model.Award, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("ingest: %s: awards file has no header row", filepath.Base(path))
	}

	colIdx := mapColumns(rows[0])

	awards := make([]*model.Award, 0, len(rows)-1)
	skipped := 0
	for _, record := range rows[1:] {
		a := awardFromRecord(record, colIdx)
		if a == nil {
			skipped++
			continue
		}
		awards = append(awards, a)
	}

	log := zap.L().With(zap.String("component", "ingest"))
	if skipped > 0 {
		log.Warn("skipped award rows without an award id",
			zap.Int("count", skipped), zap.String("file", filepath.Base(path)))
	}
	log.Debug("loaded awards", zap.Int("count", len(awards)), zap.String("file", filepath.Base(path)))

	return awards, nil
}

func awardFromRecord(record []string, colIdx map[string]int) *model.Award {
	id := firstNonEmpty(record, colIdx, "award id", "contract", "agency tracking number", "tracking number")
	if id == "" {
		return nil
	}

	return &model.Award{
		AwardID:        id,
		Phase:          model.NormalizePhase(getCol(record, colIdx, "phase")),
		Program:        strings.ToUpper(getCol(record, colIdx, "program")),
		Agency:         firstNonEmpty(record, colIdx, "agency", "awarding agency name"),
		Branch:         firstNonEmpty(record, colIdx, "branch", "awarding sub agency name", "sub agency"),
		Amount:         parseMoney(firstNonEmpty(record, colIdx, "award amount", "amount", "obligated amount")),
		AwardDate:      parseDate(firstNonEmpty(record, colIdx, "award date", "proposal award date", "award start date proposal award date", "period of performance start date")),
		CompletionDate: parseDate(firstNonEmpty(record, colIdx, "completion date", "contract end date", "award end date contract end date", "period of performance current end date")),
		Recipient: model.Identity{
			Name:  sanitizeText(firstNonEmpty(record, colIdx, "company", "firm", "company name", "recipient name")),
			UEI:   firstNonEmpty(record, colIdx, "uei", "company uei", "recipient uei"),
			DUNS:  firstNonEmpty(record, colIdx, "duns", "company duns", "recipient duns"),
			CAGE:  firstNonEmpty(record, colIdx, "cage", "cage code"),
			State: firstNonEmpty(record, colIdx, "state", "company state", "recipient state code"),
			City:  sanitizeText(firstNonEmpty(record, colIdx, "city", "company city", "recipient city name")),
		},
		TechArea: firstNonEmpty(record, colIdx, "tech area", "technology area", "research area"),
	}
}
