// Package parsing turns raw text into normalized candidate phrases and lookup keys.
package parsing

import (
	"iter"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/jonathan/skillsense/internal/types"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// lineBreak separates lines; clauseBreak separates sentences and clauses within a line.
	lineBreak   = regexp.MustCompile(`\r?\n|\r`)
	clauseBreak = regexp.MustCompile(`[.!?;:,]+(?:\s+|$)|[•·|()\[\]]`)

	// tokenPattern keeps interior joiners so "node.js", "scikit-learn", "ci/cd", "c++" and "c#" survive.
	tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:[.\-/][\p{L}\p{N}]+)*[+#]*`)
)

// defaultStopwords never contains single-letter or short words that are also skill names (go, r, c).
var defaultStopwords = []string{
	"a", "about", "also", "am", "an", "and", "any", "are", "as", "at",
	"be", "been", "being", "but", "by", "can", "did", "do", "does", "etc",
	"for", "from", "had", "has", "have", "he", "her", "his", "i", "ll",
	"in", "including", "into", "is", "it", "its", "m", "me", "my", "of", "on",
	"or", "our", "over", "re", "s", "she", "so", "such", "t", "than", "that",
	"the", "their", "them", "then", "there", "these", "they", "this", "those", "to",
	"too", "us", "used", "using", "ve", "very", "was", "we", "well", "were", "what",
	"when", "which", "while", "who", "will", "with", "within", "would", "you", "your",
}

// Options controls phrase generation.
type Options struct {
	// MinTokens discards phrases with fewer tokens after stopword removal.
	MinTokens int
	// MaxNgram emits every run of 1..MaxNgram consecutive tokens in addition to the whole clause.
	// Zero emits whole clauses only.
	MaxNgram int
	// Stopwords replaces the default stopword set when non-nil.
	Stopwords []string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{MinTokens: 1, MaxNgram: 3}
}

// Normalizer splits text into candidate phrases. It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	minTokens int
	maxNgram  int
	stopwords map[string]struct{}
}

// NewNormalizer creates a Normalizer. Non-positive MinTokens is treated as 1.
func NewNormalizer(opts Options) *Normalizer {
	words := opts.Stopwords
	if words == nil {
		words = defaultStopwords
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}

	minTokens := opts.MinTokens
	if minTokens < 1 {
		minTokens = 1
	}
	maxNgram := opts.MaxNgram
	if maxNgram < 0 {
		maxNgram = 0
	}

	return &Normalizer{minTokens: minTokens, maxNgram: maxNgram, stopwords: stop}
}

// Fold removes diacritics and lowercases. The result does not depend on locale.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Tokenize folds s and returns its word tokens in order.
func Tokenize(s string) []string {
	return tokenPattern.FindAllString(Fold(s), -1)
}

// Key returns the canonical lookup form of a term: folded tokens joined by single spaces.
func Key(s string) string {
	return strings.Join(Tokenize(s), " ")
}

// Key returns the lookup form of a term with stopwords removed.
// When every token is a stopword the unfiltered form is returned so the term stays addressable.
func (n *Normalizer) Key(s string) string {
	tokens := Tokenize(s)
	filtered := n.filter(tokens)
	if len(filtered) == 0 {
		return strings.Join(tokens, " ")
	}
	return strings.Join(filtered, " ")
}

// Normalize yields the candidate phrases of raw. The sequence is lazy and may be ranged over
// any number of times; each pass produces the same phrases in the same order.
// Duplicates are not removed.
func (n *Normalizer) Normalize(raw string) iter.Seq[types.CandidatePhrase] {
	return func(yield func(types.CandidatePhrase) bool) {
		sentence := 0
		for _, line := range lineBreak.Split(raw, -1) {
			for _, clause := range clauseBreak.Split(line, -1) {
				tokens := n.filter(Tokenize(clause))
				if len(tokens) == 0 {
					continue
				}
				idx := sentence
				sentence++
				if !n.emit(tokens, idx, yield) {
					return
				}
			}
		}
	}
}

// Phrases collects Normalize into a slice.
func (n *Normalizer) Phrases(raw string) []types.CandidatePhrase {
	return slices.Collect(n.Normalize(raw))
}

// emit yields the whole clause and its n-grams. Returns false when the consumer stopped.
func (n *Normalizer) emit(tokens []string, sentence int, yield func(types.CandidatePhrase) bool) bool {
	if len(tokens) >= n.minTokens {
		whole := types.CandidatePhrase{
			Text: strings.Join(tokens, " "),
			Span: types.Span{Sentence: sentence, Start: 0, End: len(tokens)},
		}
		if !yield(whole) {
			return false
		}
	}

	for size := max(1, n.minTokens); size <= n.maxNgram && size < len(tokens); size++ {
		for start := 0; start+size <= len(tokens); start++ {
			p := types.CandidatePhrase{
				Text: strings.Join(tokens[start:start+size], " "),
				Span: types.Span{Sentence: sentence, Start: start, End: start + size},
			}
			if !yield(p) {
				return false
			}
		}
	}
	return true
}

func (n *Normalizer) filter(tokens []string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, stop := n.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ContainsPhrase reports whether needle occurs in hay as whole tokens.
// Both arguments must already be in Key form.
func ContainsPhrase(hay, needle string) bool {
	if needle == "" || hay == "" {
		return false
	}
	return strings.Contains(" "+hay+" ", " "+needle+" ")
}

// TokenCount returns the number of space-separated tokens in a Key-form string.
func TokenCount(key string) int {
	if key == "" {
		return 0
	}
	return strings.Count(key, " ") + 1
}
