package resolve

import "strings"

// Similarity computes Jaccard similarity on the normalized word sets of two
// entity names. Returns a value in [0,1]; identical normalized names score 1.
func Similarity(a, b string) float64 {
	wordsA := wordSet(NormalizeName(a))
	wordsB := wordSet(NormalizeName(b))

	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}

	union := len(wordsA)
	for w := range wordsB {
		if !wordsA[w] {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
