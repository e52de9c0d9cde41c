package keywords

import (
	"regexp"
	"strings"
	"testing"

	"github.com/paperbase/paperbase/config"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Setenv("ENV", "test")

	cfg, err := config.Load("test")
	require.NoError(t, err, "could not load config")

	return New(cfg)
}

var extractTestCases = []struct {
	name     string
	input    string
	expected []string
}{
	{
		name:     "Empty text",
		input:    "",
		expected: []string{},
	},
	{
		name:     "Whitespace only",
		input:    "   \n\t  ",
		expected: []string{},
	},
	{
		name:     "Stopwords and short words are dropped",
		input:    "the cat is on a mat",
		expected: []string{"cat", "mat"},
	},
	{
		name:     "Frequency wins over order of appearance",
		input:    "alpha beta beta gamma beta gamma",
		expected: []string{"beta", "gamma", "alpha"},
	},
	{
		name:     "Ties broken lexicographically",
		input:    "zebra apple zebra apple",
		expected: []string{"apple", "zebra"},
	},
	{
		name:     "Terms are lowercased and deduplicated",
		input:    "Invoice INVOICE invoice Total",
		expected: []string{"invoice", "total"},
	},
	{
		name:     "Numbers count as terms",
		input:    "Invoice 2024 Total: 500",
		expected: []string{"2024", "500", "invoice", "total"},
	},
}

func TestExtract(t *testing.T) {
	extractor := newTestExtractor(t)

	for _, testCase := range extractTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)

			terms := extractor.Extract(testCase.input)

			assert.Equal(testCase.expected, terms)
		})
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	assert := require.New(t)
	extractor := newTestExtractor(t)

	text := "Meeting notes from the quarterly review: revenue, revenue targets, planning, review actions"

	first := extractor.Extract(text)
	for i := 0; i < 10; i++ {
		assert.Equal(first, extractor.Extract(text), "extraction should be deterministic")
	}
}

func TestExtractRespectsLimit(t *testing.T) {
	assert := require.New(t)
	extractor := newTestExtractor(t)

	var builder strings.Builder
	for _, word := range []string{
		"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf",
		"hotel", "india", "juliett", "kilo", "lima", "mike", "november",
	} {
		builder.WriteString(word + " ")
	}

	terms := extractor.Extract(builder.String())
	assert.Len(terms, extractor.limit)
}

// Every extracted keyword must be lowercase, distinct, and actually occur
// as a normalized token in the source text.
func TestExtractRoundTrip(t *testing.T) {
	assert := require.New(t)
	extractor := newTestExtractor(t)

	text := "Invoice 2024\nTotal: 500\nThank you for your business, again: Invoice terms attached."

	terms := extractor.Extract(text)
	assert.NotEmpty(terms)

	tokens := make(map[string]struct{})
	for _, token := range regexp.MustCompile(`\b\w+\b`).FindAllString(strings.ToLower(text), -1) {
		tokens[token] = struct{}{}
	}

	seen := make(map[string]struct{})
	for _, term := range terms {
		assert.Equal(strings.ToLower(term), term, "keyword should be lowercase")

		_, duplicate := seen[term]
		assert.False(duplicate, "keyword should be distinct: %s", term)
		seen[term] = struct{}{}

		_, occurs := tokens[term]
		assert.True(occurs, "keyword should occur in source text: %s", term)
	}
}
