package domain

import (
	"context"
	"errors"
	"strconv"
)

// Document is a single uploaded file, held only while it is being ingested.
type Document struct {
	Fingerprint string
	Filename    string
	Data        []byte
}

// Chunk is a bounded segment of a document's text prepared for embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// ChunkID builds the index key of the chunk at position index of a document.
func ChunkID(fingerprint string, index int) string {
	return fingerprint + "_" + strconv.Itoa(index)
}

// Chunker splits extracted text into ordered chunk texts.
type Chunker interface {
	Chunk(text string) []string
}

// Extractor turns uploaded bytes into plain text.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

// Embedder converts texts into fixed-length vectors, one per input, in order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorStore persists chunk vectors and supports nearest-neighbour search.
// Search returns results most similar first.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
	Close() error
}

// Generator answers a question from the supplied context.
type Generator interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// ErrUnsupportedFormat is the cause of an ExtractionError for content the
// extractor cannot decode at all.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ExtractionError reports that text could not be extracted from an upload.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return "extract text from " + strconv.Quote(e.Filename) + ": " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }
