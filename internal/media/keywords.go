package media

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords filtered out of free-text keyword extraction.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "for", "are", "but", "not", "you", "your", "our", "all",
		"can", "has", "have", "had", "was", "were", "will", "with", "this",
		"that", "these", "those", "from", "they", "them", "their", "its",
		"into", "than", "then", "when", "what", "where", "which", "while",
		"who", "whom", "why", "how", "out", "about", "over", "under", "again",
		"more", "most", "some", "such", "only", "very", "just", "also", "now",
		"get", "got", "new", "one", "two", "per", "via", "any", "each", "own",
		"too", "off", "here", "there", "been", "being", "does", "doing", "did",
	} {
		stopWords[w] = struct{}{}
	}
}

// ExtractKeywords returns the top terms of text by frequency, lowercased,
// with stop words and short tokens removed. Ties keep first-seen order so
// extraction is deterministic.
func ExtractKeywords(text string, top int) []string {
	if top <= 0 || strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		if _, skip := stopWords[tok]; skip {
			continue
		}
		if _, ok := counts[tok]; !ok {
			firstSeen[tok] = i
		}
		counts[tok]++
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(a, b int) bool {
		if counts[terms[a]] != counts[terms[b]] {
			return counts[terms[a]] > counts[terms[b]]
		}
		return firstSeen[terms[a]] < firstSeen[terms[b]]
	})

	if len(terms) > top {
		terms = terms[:top]
	}
	return terms
}
