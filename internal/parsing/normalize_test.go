package parsing

import (
	"testing"

	"github.com/jonathan/skillsense/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phraseTexts(phrases []types.CandidatePhrase) []string {
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = p.Text
	}
	return out
}

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Lowercases", "Python", "python"},
		{"Keeps dotted names", "Node.js", "node.js"},
		{"Keeps plus suffix", "C++", "c++"},
		{"Keeps sharp suffix", "C#", "c#"},
		{"Keeps hyphenated names", "Scikit-Learn", "scikit-learn"},
		{"Collapses whitespace", "  Machine   Learning ", "machine learning"},
		{"Strips punctuation", "REST API!", "rest api"},
		{"Removes diacritics", "Pándás", "pandas"},
		{"Empty string", "", ""},
		{"Whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Key(tt.input))
		})
	}
}

func TestNormalizer_KeyDropsStopwords(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	assert.Equal(t, "ruby rails", n.Key("Ruby on Rails"))
	assert.Equal(t, "go", n.Key("Go"))
	// Every token is a stopword: the unfiltered key is kept.
	assert.Equal(t, "it", n.Key("IT"))
}

func TestNormalize_ExactScenarioSentence(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	texts := phraseTexts(n.Phrases("I have 3 years of Python experience"))
	require.NotEmpty(t, texts)
	assert.Equal(t, "3 years python experience", texts[0], "whole clause comes first")
	assert.Contains(t, texts, "python")
	assert.Contains(t, texts, "years python")
	assert.NotContains(t, texts, "i")
	assert.NotContains(t, texts, "of")
}

func TestNormalize_SplitsLinesAndSentences(t *testing.T) {
	n := NewNormalizer(Options{MinTokens: 1, MaxNgram: 0})

	phrases := n.Phrases("Built APIs in Go.\nDeployed to Kubernetes; wrote SQL, tuned Postgres")
	assert.Equal(t, []string{"built apis go", "deployed kubernetes", "wrote sql", "tuned postgres"}, phraseTexts(phrases))

	for i, p := range phrases {
		assert.Equal(t, i, p.Span.Sentence)
		assert.Equal(t, 0, p.Span.Start)
	}
}

func TestNormalize_DottedNamesAreNotSentenceBreaks(t *testing.T) {
	n := NewNormalizer(Options{MinTokens: 1, MaxNgram: 0})

	texts := phraseTexts(n.Phrases("Worked with Node.js and Vue.js daily."))
	assert.Equal(t, []string{"worked node.js vue.js daily"}, texts)
}

func TestNormalize_NgramSpans(t *testing.T) {
	n := NewNormalizer(Options{MinTokens: 1, MaxNgram: 2})

	phrases := n.Phrases("python pandas sql")
	assert.Equal(t, []string{
		"python pandas sql",
		"python", "pandas", "sql",
		"python pandas", "pandas sql",
	}, phraseTexts(phrases))

	assert.Equal(t, types.Span{Sentence: 0, Start: 1, End: 3}, phrases[5].Span)
}

func TestNormalize_MinTokens(t *testing.T) {
	n := NewNormalizer(Options{MinTokens: 2, MaxNgram: 2})

	texts := phraseTexts(n.Phrases("Python.\nmachine learning engineer"))
	assert.NotContains(t, texts, "python", "single-token clause is below the minimum")
	assert.Contains(t, texts, "machine learning engineer")
	assert.Contains(t, texts, "machine learning")
	assert.NotContains(t, texts, "machine", "unigrams are below the minimum")
}

func TestNormalize_EmptyInput(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	assert.Empty(t, n.Phrases(""))
	assert.Empty(t, n.Phrases("   \n\t  "))
	assert.Empty(t, n.Phrases("the and of"))
}

func TestNormalize_DeterministicAndRestartable(t *testing.T) {
	n := NewNormalizer(DefaultOptions())
	seq := n.Normalize("Python, SQL and Docker.\nLed a team of 5 engineers")

	var first, second []types.CandidatePhrase
	for p := range seq {
		first = append(first, p)
	}
	for p := range seq {
		second = append(second, p)
	}

	assert.Equal(t, first, second)
	assert.Equal(t, first, n.Phrases("Python, SQL and Docker.\nLed a team of 5 engineers"))
}

func TestNormalize_StopsWhenConsumerBreaks(t *testing.T) {
	n := NewNormalizer(DefaultOptions())

	count := 0
	for range n.Normalize("one two three\nfour five six") {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestNormalize_KeepsDuplicates(t *testing.T) {
	n := NewNormalizer(Options{MinTokens: 1, MaxNgram: 0})

	texts := phraseTexts(n.Phrases("Python\nPython"))
	assert.Equal(t, []string{"python", "python"}, texts)
}

func TestNormalize_CustomStopwords(t *testing.T) {
	n := NewNormalizer(Options{MinTokens: 1, Stopwords: []string{"expert"}})

	texts := phraseTexts(n.Phrases("Expert in Go"))
	assert.Equal(t, []string{"in go"}, texts)
}

func TestContainsPhrase(t *testing.T) {
	assert.True(t, ContainsPhrase("built rest api services", "rest api"))
	assert.False(t, ContainsPhrase("built rest apis", "rest api"))
	assert.False(t, ContainsPhrase("good engineer", "go"))
	assert.True(t, ContainsPhrase("go", "go"))
	assert.False(t, ContainsPhrase("go", ""))
}

func TestTokenCount(t *testing.T) {
	assert.Equal(t, 0, TokenCount(""))
	assert.Equal(t, 1, TokenCount("python"))
	assert.Equal(t, 3, TokenCount("ruby on rails"))
}
