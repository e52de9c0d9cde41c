package keywords

import (
	"regexp"
	"sort"
	"strings"

	"github.com/paperbase/paperbase/config"
)

const minTermLength = 3

var wordRegex = regexp.MustCompile(`\b\w+\b`)

// Extractor derives a bounded set of salient terms from document text for
// tagging and quick-scan display. Extraction is deterministic and
// side-effect-free: the same text always yields the same keywords.
type Extractor struct {
	stopwords map[string]struct{}
	limit     int
}

func New(cfg *config.Config) *Extractor {
	stopwords := cfg.GetStopwords()
	if len(stopwords) == 0 {
		stopwords = defaultStopwords
	}

	stopwordSet := make(map[string]struct{}, len(stopwords))
	for _, word := range stopwords {
		stopwordSet[strings.ToLower(word)] = struct{}{}
	}

	return &Extractor{
		stopwords: stopwordSet,
		limit:     cfg.GetKeywordLimit(),
	}
}

// Extract tokenizes on word boundaries, lowercases, strips stopwords and
// short terms, and returns the top terms by in-document frequency, ties
// broken lexicographically. Empty text yields an empty slice.
func (e *Extractor) Extract(text string) []string {
	frequencies := make(map[string]int)

	for _, word := range wordRegex.FindAllString(strings.ToLower(text), -1) {
		if len(word) < minTermLength {
			continue
		}
		if _, ok := e.stopwords[word]; ok {
			continue
		}
		frequencies[word]++
	}

	terms := make([]string, 0, len(frequencies))
	for term := range frequencies {
		terms = append(terms, term)
	}

	sort.Slice(terms, func(i, j int) bool {
		if frequencies[terms[i]] != frequencies[terms[j]] {
			return frequencies[terms[i]] > frequencies[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > e.limit {
		terms = terms[:e.limit]
	}

	return terms
}

var defaultStopwords = []string{
	"the", "a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that", "to",
	"was", "were", "will", "with", "this", "but", "not", "have", "had",
	"do", "does", "did", "would", "could", "should", "been",
}
