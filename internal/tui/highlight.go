package tui

import (
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// highlightBestSentence renders text with the sentence sharing the most
// distinct words with question emphasised. Ties go to the earliest sentence.
func highlightBestSentence(text, question string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var sentences []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	words := wordSet(question)
	if len(words) == 0 {
		return strings.Join(sentences, " ")
	}

	best, bestScore := -1, 0
	for i, s := range sentences {
		if score := sharedWords(words, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		sentences[best] = highlightStyle.Render(sentences[best])
	}
	return strings.Join(sentences, " ")
}

func wordSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func sharedWords(words map[string]struct{}, sentence string) int {
	n := 0
	for t := range wordSet(sentence) {
		if _, ok := words[t]; ok {
			n++
		}
	}
	return n
}
