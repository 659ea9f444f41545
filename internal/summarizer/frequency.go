package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	// DefaultMaxSentences is used when a caller asks for a non-positive length.
	DefaultMaxSentences = 3
	// MaxUnpunctuatedRunes caps the summary of text with no sentence endings.
	MaxUnpunctuatedRunes = 280
)

// FrequencySummarizer builds an extractive summary: sentences are scored by
// the normalized frequency of their content words and the best ones are
// returned in document order.
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`[^.!?]+[.!?]+`),
		stopwords:       stopwords(),
	}
}

type scoredSentence struct {
	pos   int
	text  string
	score float64
}

// Summarize returns up to maxSentences sentences of text joined by spaces.
// Text without sentence punctuation is cut to its first MaxUnpunctuatedRunes
// characters at a word boundary.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	raw := s.sentencePattern.FindAllString(text, -1)
	if len(raw) == 0 {
		return truncate(strings.Join(strings.Fields(text), " "), MaxUnpunctuatedRunes), nil
	}

	sentences := make([]scoredSentence, 0, len(raw))
	tokens := make([][]string, 0, len(raw))
	freq := map[string]float64{}
	for _, r := range raw {
		sent := strings.Join(strings.Fields(r), " ")
		if sent == "" {
			continue
		}
		toks := s.contentTokens(sent)
		for _, tok := range toks {
			freq[tok]++
		}
		sentences = append(sentences, scoredSentence{pos: len(sentences), text: sent})
		tokens = append(tokens, toks)
	}

	peak := 0.0
	for _, v := range freq {
		peak = math.Max(peak, v)
	}
	for i := range sentences {
		if len(tokens[i]) == 0 || peak == 0 {
			continue
		}
		total := 0.0
		for _, tok := range tokens[i] {
			total += freq[tok] / peak
		}
		// dampen the advantage of long sentences
		sentences[i].score = total / math.Sqrt(float64(len(tokens[i])))
	}

	sort.SliceStable(sentences, func(i, j int) bool { return sentences[i].score > sentences[j].score })
	if maxSentences < len(sentences) {
		sentences = sentences[:maxSentences]
	}
	sort.Slice(sentences, func(i, j int) bool { return sentences[i].pos < sentences[j].pos })

	out := make([]string, len(sentences))
	for i, sent := range sentences {
		out[i] = sent.text
	}
	return strings.Join(out, " "), nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

func (s *FrequencySummarizer) contentTokens(text string) []string {
	all := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := all[:0]
	for _, tok := range all {
		if _, ok := s.stopwords[tok]; !ok {
			out = append(out, tok)
		}
	}
	return out
}

func stopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
