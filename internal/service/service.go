// Package service wires extraction, chunking, embedding, indexing and answer
// generation into the ingestion and question answering paths.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

// Fixed user-facing messages.
const (
	MsgEmptyQuestion     = "Please enter a question."
	MsgNoContext         = "No relevant information found in the document to answer this question."
	MsgGenerationFailed  = "Sorry, I encountered an error while generating the answer."
	DefaultSummaryLength = 3
)

var (
	// ErrEmbedding marks ingestion failures raised by the embedding provider.
	ErrEmbedding = errors.New("embedding failed")
	// ErrIndexing marks ingestion failures raised by the vector index.
	ErrIndexing = errors.New("indexing failed")
)

// Status tells how a question was handled.
type Status string

const (
	StatusAnswered      Status = "answered"
	StatusEmptyQuestion Status = "empty_question"
	StatusNoContext     Status = "no_context"
)

// IngestResult reports the outcome of a single ingestion.
type IngestResult struct {
	Fingerprint string
	Filename    string
	ChunkCount  int
	// Skipped is set when the document matched the session's last fingerprint.
	Skipped bool
	Summary string
}

// Answer is the response to a question. Text is always suitable for display.
type Answer struct {
	Status  Status
	Text    string
	Context string
	Sources []domain.SearchResult
}

// Options configure a Service.
type Options struct {
	TopK             int
	SummarySentences int
}

// Service runs ingestion and question answering against one vector index.
type Service struct {
	extractor  domain.Extractor
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      domain.VectorStore
	generator  domain.Generator
	summarizer domain.Summarizer
	logger     *zap.Logger

	topK             int
	summarySentences int
}

// NewService builds a service. summarizer and logger may be nil.
func NewService(
	extractor domain.Extractor,
	chunker domain.Chunker,
	embedder domain.Embedder,
	store domain.VectorStore,
	generator domain.Generator,
	summarizer domain.Summarizer,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.TopK <= 0 {
		opts.TopK = vectorstore.DefaultTopK
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = DefaultSummaryLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractor:        extractor,
		chunker:          chunker,
		embedder:         embedder,
		store:            store,
		generator:        generator,
		summarizer:       summarizer,
		logger:           logger,
		topK:             opts.TopK,
		summarySentences: opts.SummarySentences,
	}
}

// Fingerprint returns the content identifier of a document.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Ingest extracts, chunks, embeds and indexes one document. Re-ingesting the
// session's last successful document is a no-op. The session's fingerprint
// only moves forward after the index accepted every chunk.
func (s *Service) Ingest(ctx context.Context, sess *Session, data []byte, filename string) (IngestResult, error) {
	start := time.Now()
	doc := domain.Document{Fingerprint: Fingerprint(data), Filename: filename, Data: data}
	log := s.logger.With(zap.String("session", sess.ID), zap.String("file", filename), zap.String("fingerprint", doc.Fingerprint))

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.fingerprint == doc.Fingerprint {
		res := sess.resultLocked()
		res.Filename = filename
		res.Skipped = true
		log.Info("document already ingested, skipping")
		return res, nil
	}

	text, err := s.extractor.Extract(doc.Filename, doc.Data)
	if err != nil {
		log.Warn("extraction failed", zap.Error(err))
		return IngestResult{}, err
	}

	texts := s.chunker.Chunk(text)
	res := IngestResult{Fingerprint: doc.Fingerprint, Filename: filename, ChunkCount: len(texts)}
	if len(texts) == 0 {
		log.Info("document produced no chunks")
		sess.recordLocked(res)
		return res, nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		log.Error("embedding failed", zap.Error(err))
		return IngestResult{}, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		log.Error("embedding count mismatch", zap.Int("chunks", len(texts)), zap.Int("vectors", len(vectors)))
		return IngestResult{}, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(texts))
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{
			ID:         domain.ChunkID(doc.Fingerprint, i),
			DocumentID: doc.Fingerprint,
			Index:      i,
			Text:       t,
		}
	}
	if err := s.store.Upsert(ctx, chunks, vectors); err != nil {
		log.Error("indexing failed", zap.Error(err))
		return IngestResult{}, fmt.Errorf("%w: %w", ErrIndexing, err)
	}

	res.Summary = s.summarize(text, log)
	sess.recordLocked(res)
	log.Info("document ingested",
		zap.Int("chunks", len(chunks)),
		zap.String("embedder", s.embedder.Name()),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

func (s *Service) summarize(text string, log *zap.Logger) string {
	if s.summarizer == nil {
		return ""
	}
	summary, err := s.summarizer.Summarize(text, s.summarySentences)
	if err != nil {
		log.Warn("summary failed", zap.Error(err))
		return ""
	}
	return summary
}

// Answer retrieves context for question and asks the generator. It never
// fails: retrieval problems read as "nothing found" and generation problems
// as a fixed apology.
func (s *Service) Answer(ctx context.Context, question string) Answer {
	if strings.TrimSpace(question) == "" {
		return Answer{Status: StatusEmptyQuestion, Text: MsgEmptyQuestion}
	}
	start := time.Now()

	results := s.retrieve(ctx, question)
	if len(results) == 0 {
		return Answer{Status: StatusNoContext, Text: MsgNoContext}
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Text
	}
	contextText := strings.Join(parts, "\n\n")

	text, err := s.generator.Generate(ctx, question, contextText)
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		text = MsgGenerationFailed
	}
	s.logger.Info("question answered",
		zap.Int("chunks", len(results)),
		zap.Bool("generated", err == nil),
		zap.Duration("took", time.Since(start)))
	return Answer{Status: StatusAnswered, Text: text, Context: contextText, Sources: results}
}

func (s *Service) retrieve(ctx context.Context, question string) []domain.SearchResult {
	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil || len(vectors) != 1 {
		s.logger.Warn("question embedding failed", zap.Error(err), zap.Int("vectors", len(vectors)))
		return nil
	}
	results, err := s.store.Search(ctx, vectors[0], s.topK)
	if err != nil {
		s.logger.Warn("search failed", zap.Error(err))
		return nil
	}
	return results
}
