package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/phasebridge/transition-cli/internal/model"
)

// normalizeCol lowercases, strips parentheses, and folds underscores to
// spaces so SBIR.gov headers like "Award Start Date (Proposal Award Date)"
// and USAspending headers like "recipient_uei" resolve through one alias
// list.
func normalizeCol(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// mapColumns builds a normalized column name to index map from a header row.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[normalizeCol(col)] = i
	}
	return m
}

// getCol gets a trimmed column value by normalized name, empty if absent.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[normalizeCol(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// firstNonEmpty returns the first non-empty value among the named columns.
// Feeds disagree on column names ("Company" vs "recipient_name"), so field
// reads go through alias lists with the preferred name first.
func firstNonEmpty(record []string, colIdx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getCol(record, colIdx, name); v != "" {
			return v
		}
	}
	return ""
}

// sanitizeText strips invalid UTF-8 byte sequences from free-text fields.
// The stream decoder catches mis-encoded files up front, but single bad
// bytes deep in an otherwise-UTF-8 file still slip through.
func sanitizeText(s string) string {
	return strings.ToValidUTF8(s, "")
}

// dateLayouts covers the formats observed across SBIR.gov exports,
// USAspending downloads, and hand-maintained fixture files.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// parseDate tries each known layout in order, returning the zero time when
// none matches. Callers treat the zero time as an absent date.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseMoney parses currency strings as federal feeds print them: optional
// dollar sign, thousands separators, and accounting-style parentheses for
// negatives. Unparseable values come back as zero.
func parseMoney(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	if neg {
		return -v
	}
	return v
}

// normalizeCompetition resolves the competition category from the raw
// extent-competed code and the spelled-out label, preferring the code.
// USAspending puts labels like "NOT COMPETED" in extent_competed while FPDS
// extracts carry the single-letter codes.
func normalizeCompetition(code, label string) model.CompetitionType {
	if ct := model.CompetitionFromCode(code); ct != model.CompetitionUnknown {
		return ct
	}

	// Some feeds put the bare code in the label column.
	if len(strings.TrimSpace(label)) <= 3 {
		return model.CompetitionFromCode(label)
	}

	l := strings.ToUpper(label)
	switch {
	case strings.Contains(l, "NOT AVAILABLE FOR COMPETITION"):
		return model.CompetitionSoleSource
	case strings.Contains(l, "NOT COMPETED UNDER SAP"),
		strings.Contains(l, "NOT COMPETED UNDER SIMPLIFIED"):
		return model.CompetitionSAPNoncompete
	case strings.Contains(l, "NON-COMPETITIVE DELIVERY ORDER"):
		return model.CompetitionSoleSource
	case strings.Contains(l, "COMPETITIVE DELIVERY ORDER"):
		return model.CompetitionLimited
	case strings.Contains(l, "NOT COMPETED"):
		return model.CompetitionSoleSource
	case strings.Contains(l, "FOLLOW"):
		return model.CompetitionFollowOn
	case strings.Contains(l, "AFTER EXCLUSION"):
		return model.CompetitionLimited
	case strings.Contains(l, "UNDER SAP"), strings.Contains(l, "SIMPLIFIED"):
		return model.CompetitionLimited
	case strings.Contains(l, "FULL AND OPEN"):
		return model.CompetitionFullOpen
	default:
		return model.CompetitionUnknown
	}
}
