package resolve

import (
	"regexp"
	"strings"
)

// legalSuffixes lists common legal entity suffixes to strip during name
// normalization. Award recipients and contract vendors frequently register
// the same company with different suffixes across systems.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LP", " L.P.", " L.P",
	" LLP", " L.L.P.", " L.L.P",
	" PC", " P.C.", " P.C",
	" PA", " P.A.", " P.A",
	" CO", " CO.",
	" PLC", " P.L.C.",
	" DBA", " D/B/A",
	" PLLC",
}

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	nonDigitRe   = regexp.MustCompile(`\D`)
)

// NormalizeName standardizes an entity name for matching by:
//  1. Trimming whitespace
//  2. Converting to uppercase
//  3. Removing legal suffixes (LLC, Inc, Corp, etc.), repeatedly, so
//     "ACME HOLDINGS CO LLC" reduces to "ACME HOLDINGS"
//  4. Stripping punctuation (commas, periods, dashes, ampersands)
//  5. Collapsing multiple spaces into single spaces
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	// Strip stacked suffixes until none remain.
	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range legalSuffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSuffix(name, suffix)
				stripped = true
				break
			}
		}
	}

	// Remove common punctuation.
	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
		"/", " ",
	).Replace(name)

	// Collapse multiple spaces.
	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	return name
}

// NormalizeID standardizes a UEI or CAGE code: trimmed, uppercased.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeDUNS reduces a DUNS number to its digits. Feeds carry DUNS both
// as "123456789" and "12-345-6789".
func NormalizeDUNS(duns string) string {
	return nonDigitRe.ReplaceAllString(duns, "")
}
