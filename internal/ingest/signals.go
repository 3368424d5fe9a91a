package ingest

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/phasebridge/transition-cli/internal/model"
)

// ReadPatents loads patent references keyed by award ID from a CSV or XLSX
// file. Rows missing either key are skipped.
func ReadPatents(path string) (map[string][]model.PatentRef, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("ingest: %s: patents file has no header row", filepath.Base(path))
	}

	colIdx := mapColumns(rows[0])

	patents := make(map[string][]model.PatentRef)
	total := 0
	for _, record := range rows[1:] {
		awardID := firstNonEmpty(record, colIdx, "award id", "contract", "agency tracking number")
		num := firstNonEmpty(record, colIdx, "patent number", "patent")
		if awardID == "" || num == "" {
			continue
		}

		ref := model.PatentRef{
			PatentNumber: num,
			Title:        sanitizeText(firstNonEmpty(record, colIdx, "title", "patent title")),
			FiledDate:    parseDate(firstNonEmpty(record, colIdx, "filed date", "filing date", "date filed")),
		}
		if s := firstNonEmpty(record, colIdx, "topic similarity", "similarity"); s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				ref.TopicSimilarity = &v
			}
		}

		patents[awardID] = append(patents[awardID], ref)
		total++
	}

	zap.L().With(zap.String("component", "ingest")).Debug("loaded patents",
		zap.Int("count", total), zap.Int("awards", len(patents)), zap.String("file", filepath.Base(path)))

	return patents, nil
}

// ReadTechLabels loads classifier labels from a CSV or XLSX file with id,
// label, and kind columns. Kind "award" and "contract" rows land in separate
// maps; any other kind is skipped.
func ReadTechLabels(path string) (awardAreas, contractAreas map[string]string, err error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, eris.Errorf("ingest: %s: labels file has no header row", filepath.Base(path))
	}

	colIdx := mapColumns(rows[0])

	awardAreas = make(map[string]string)
	contractAreas = make(map[string]string)
	skipped := 0
	for _, record := range rows[1:] {
		id := firstNonEmpty(record, colIdx, "id", "record id")
		label := firstNonEmpty(record, colIdx, "label", "tech area")
		kind := strings.ToLower(firstNonEmpty(record, colIdx, "kind", "record kind"))
		if id == "" || label == "" {
			continue
		}

		switch kind {
		case "award":
			awardAreas[id] = label
		case "contract":
			contractAreas[id] = label
		default:
			skipped++
		}
	}

	if skipped > 0 {
		zap.L().With(zap.String("component", "ingest")).Warn("skipped label rows with unknown kind",
			zap.Int("count", skipped), zap.String("file", filepath.Base(path)))
	}

	return awardAreas, contractAreas, nil
}
