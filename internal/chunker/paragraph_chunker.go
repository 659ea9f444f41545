package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxSize is the default chunk bound in characters.
	DefaultMaxSize = 500
	// DefaultOverlap is the default number of characters carried between chunks.
	DefaultOverlap = 100
)

// ParagraphChunker splits text on blank lines and breaks paragraphs longer
// than maxSize at sentence boundaries. Lengths are counted in characters.
//
// When a long paragraph is cut, trailing whole sentences of the emitted chunk
// totalling at most overlap characters are repeated at the start of the next
// chunk, provided the next chunk still fits in maxSize.
type ParagraphChunker struct {
	maxSize     int
	overlap     int
	sentenceEnd *regexp.Regexp
}

func NewParagraphChunker(maxSize, overlap int) *ParagraphChunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 4
	}
	return &ParagraphChunker{
		maxSize:     maxSize,
		overlap:     overlap,
		sentenceEnd: regexp.MustCompile(`[.!?][\s\p{Zs}]+`),
	}
}

// MaxSize returns the configured chunk bound.
func (c *ParagraphChunker) MaxSize() int { return c.maxSize }

// Overlap returns the effective overlap after clamping.
func (c *ParagraphChunker) Overlap() int { return c.overlap }

// Chunk returns the chunks of text in document order. Empty paragraphs
// produce nothing.
func (c *ParagraphChunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	for _, paragraph := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		if utf8.RuneCountInString(paragraph) <= c.maxSize {
			chunks = append(chunks, paragraph)
			continue
		}
		chunks = append(chunks, c.splitParagraph(paragraph)...)
	}
	return chunks
}

func (c *ParagraphChunker) splitParagraph(paragraph string) []string {
	var (
		chunks []string
		buf    []string
		size   int // length of strings.Join(buf, " ")
	)
	for _, sentence := range c.sentences(paragraph) {
		n := utf8.RuneCountInString(sentence)
		if len(buf) == 0 {
			buf, size = append(buf, sentence), n
			continue
		}
		if size+1+n <= c.maxSize {
			buf, size = append(buf, sentence), size+1+n
			continue
		}
		chunks = append(chunks, strings.TrimSpace(strings.Join(buf, " ")))
		buf, size = c.carry(buf, n)
		if len(buf) == 0 {
			buf, size = append(buf, sentence), n
		} else {
			buf, size = append(buf, sentence), size+1+n
		}
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.TrimSpace(strings.Join(buf, " ")))
	}
	return chunks
}

// carry picks the trailing sentences of a flushed buffer that are repeated
// in the next chunk. next is the length of the sentence that will follow them.
func (c *ParagraphChunker) carry(flushed []string, next int) ([]string, int) {
	if c.overlap == 0 {
		return nil, 0
	}
	start, size := len(flushed), 0
	for i := len(flushed) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(flushed[i])
		if size > 0 {
			n++
		}
		if size+n > c.overlap {
			break
		}
		start, size = i, size+n
	}
	if start == len(flushed) || size+1+next > c.maxSize {
		return nil, 0
	}
	return append([]string(nil), flushed[start:]...), size
}

// sentences splits a paragraph after '.', '!' or '?' followed by whitespace,
// including Unicode spaces such as NBSP.
// Text without terminal punctuation is a single sentence.
func (c *ParagraphChunker) sentences(paragraph string) []string {
	var out []string
	start := 0
	for _, loc := range c.sentenceEnd.FindAllStringIndex(paragraph, -1) {
		out = appendSentence(out, paragraph[start:loc[0]+1])
		start = loc[1]
	}
	return appendSentence(out, paragraph[start:])
}

func appendSentence(out []string, s string) []string {
	if strings.TrimSpace(s) == "" {
		return out
	}
	return append(out, s)
}
