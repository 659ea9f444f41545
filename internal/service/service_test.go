package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/hashing"
	"ragqa/internal/extract"
	"ragqa/internal/vectorstore/memory"
)

type fakeEmbedder struct {
	inner domain.Embedder
	calls int
	err   error
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.inner.Embed(ctx, texts)
}

type fakeStore struct {
	*memory.Storage
	upserts   int
	upsertErr error
	searchErr error
}

func (f *fakeStore) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.Storage.Upsert(ctx, chunks, vectors)
}

func (f *fakeStore) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.Storage.Search(ctx, vector, topK)
}

type fakeGenerator struct {
	calls    int
	question string
	context  string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, question, contextText string) (string, error) {
	f.calls++
	f.question, f.context = question, contextText
	if f.err != nil {
		return "", f.err
	}
	return "generated answer", nil
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(string, int) (string, error) {
	return "", errors.New("boom")
}

type fixture struct {
	svc   *Service
	emb   *fakeEmbedder
	store *fakeStore
	gen   *fakeGenerator
}

func newFixture(t *testing.T, maxSize int) *fixture {
	t.Helper()
	f := &fixture{
		emb:   &fakeEmbedder{inner: hashing.NewEmbedder(1024)},
		store: &fakeStore{Storage: memory.NewStorage()},
		gen:   &fakeGenerator{},
	}
	f.svc = NewService(
		extract.New(),
		chunker.NewParagraphChunker(maxSize, 0),
		f.emb,
		f.store,
		f.gen,
		nil,
		Options{},
		nil,
	)
	return f
}

const sampleDoc = "Go was designed at Google.\n\nGoroutines are lightweight threads managed by the runtime.\n\nChannels connect goroutines."

func TestIngest_ChunksAndIndexes(t *testing.T) {
	f := newFixture(t, 500)
	sess := NewSession()

	res, err := f.svc.Ingest(context.Background(), sess, []byte(sampleDoc), "go.txt")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunkCount)
	assert.False(t, res.Skipped)
	assert.Equal(t, Fingerprint([]byte(sampleDoc)), res.Fingerprint)
	assert.Equal(t, res.Fingerprint, sess.LastFingerprint())
	assert.Equal(t, 3, f.store.Len())
	assert.Equal(t, 1, f.emb.calls, "all chunks are embedded in one call")
	assert.Equal(t, 1, f.store.upserts)

	results, err := f.store.Storage.Search(context.Background(), mustEmbed(t, "Goroutines"), 3)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, r := range results {
		ids[r.Chunk.ID] = true
		assert.Equal(t, res.Fingerprint, r.Chunk.DocumentID)
	}
	for i := 0; i < 3; i++ {
		assert.True(t, ids[domain.ChunkID(res.Fingerprint, i)])
	}
}

func mustEmbed(t *testing.T, text string) []float64 {
	t.Helper()
	v, err := hashing.NewEmbedder(1024).Embed(context.Background(), []string{text})
	require.NoError(t, err)
	return v[0]
}

func TestIngest_SameContentIsSkipped(t *testing.T) {
	f := newFixture(t, 500)
	sess := NewSession()
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, sess, []byte(sampleDoc), "a.txt")
	require.NoError(t, err)

	second, err := f.svc.Ingest(ctx, sess, []byte(sampleDoc), "renamed.txt")
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.ChunkCount, second.ChunkCount)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, 1, f.emb.calls)
	assert.Equal(t, 1, f.store.upserts)
}

func TestIngest_DifferentContentSameName(t *testing.T) {
	f := newFixture(t, 500)
	sess := NewSession()
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, sess, []byte("First version."), "doc.txt")
	require.NoError(t, err)
	second, err := f.svc.Ingest(ctx, sess, []byte("Second version."), "doc.txt")
	require.NoError(t, err)

	assert.False(t, second.Skipped)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, 2, f.emb.calls)
	assert.Equal(t, 2, f.store.Len())
}

func TestIngest_SessionsAreIndependent(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, NewSession(), []byte(sampleDoc), "a.txt")
	require.NoError(t, err)
	res, err := f.svc.Ingest(ctx, NewSession(), []byte(sampleDoc), "a.txt")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, f.emb.calls)
}

func TestIngest_ExtractionError(t *testing.T) {
	f := newFixture(t, 500)
	sess := NewSession()

	_, err := f.svc.Ingest(context.Background(), sess, []byte("not a pdf"), "broken.pdf")
	var extErr *domain.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "broken.pdf", extErr.Filename)
	assert.Empty(t, sess.LastFingerprint())
	assert.Zero(t, f.emb.calls)
	assert.Zero(t, f.store.upserts)
}

func TestIngest_EmbeddingErrorKeepsFingerprint(t *testing.T) {
	f := newFixture(t, 500)
	sess := NewSession()
	ctx := context.Background()

	f.emb.err = errors.New("provider down")
	_, err := f.svc.Ingest(ctx, sess, []byte(sampleDoc), "a.txt")
	require.ErrorIs(t, err, ErrEmbedding)
	assert.Empty(t, sess.LastFingerprint())
	assert.Zero(t, f.store.upserts)

	f.emb.err = nil
	res, err := f.svc.Ingest(ctx, sess, []byte(sampleDoc), "a.txt")
	require.NoError(t, err)
	assert.False(t, res.Skipped, "a failed attempt must not make the retry a no-op")
}

func TestIngest_IndexingError(t *testing.T) {
	f := newFixture(t, 500)
	sess := NewSession()

	f.store.upsertErr = errors.New("disk full")
	_, err := f.svc.Ingest(context.Background(), sess, []byte(sampleDoc), "a.txt")
	require.ErrorIs(t, err, ErrIndexing)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, sess.LastFingerprint())
}

func TestIngest_EmptyDocument(t *testing.T) {
	f := newFixture(t, 500)
	sess := NewSession()

	res, err := f.svc.Ingest(context.Background(), sess, []byte("\n\n  \n\n"), "blank.txt")
	require.NoError(t, err)
	assert.Zero(t, res.ChunkCount)
	assert.Equal(t, res.Fingerprint, sess.LastFingerprint())
	assert.Zero(t, f.emb.calls)
	assert.Zero(t, f.store.upserts)
}

func TestIngest_SummaryFailureIsIgnored(t *testing.T) {
	f := newFixture(t, 500)
	f.svc.summarizer = failingSummarizer{}
	sess := NewSession()

	res, err := f.svc.Ingest(context.Background(), sess, []byte(sampleDoc), "a.txt")
	require.NoError(t, err)
	assert.Empty(t, res.Summary)
	assert.Equal(t, res.Fingerprint, sess.LastFingerprint())
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	f := newFixture(t, 500)
	for _, q := range []string{"", "   ", "\n\t"} {
		ans := f.svc.Answer(context.Background(), q)
		assert.Equal(t, StatusEmptyQuestion, ans.Status)
		assert.Equal(t, MsgEmptyQuestion, ans.Text)
	}
	assert.Zero(t, f.emb.calls)
	assert.Zero(t, f.gen.calls)
}

func TestAnswer_NoContext(t *testing.T) {
	f := newFixture(t, 500)
	ans := f.svc.Answer(context.Background(), "What is Go?")
	assert.Equal(t, StatusNoContext, ans.Status)
	assert.Equal(t, MsgNoContext, ans.Text)
	assert.Zero(t, f.gen.calls)
}

func TestAnswer_UsesTopChunksAsContext(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, NewSession(), []byte(sampleDoc), "go.txt")
	require.NoError(t, err)

	ans := f.svc.Answer(ctx, "How lightweight are threads in the runtime?")
	assert.Equal(t, StatusAnswered, ans.Status)
	assert.Equal(t, "generated answer", ans.Text)
	require.Len(t, ans.Sources, 3)
	assert.Equal(t, "Goroutines are lightweight threads managed by the runtime.", ans.Sources[0].Chunk.Text)

	parts := strings.Split(ans.Context, "\n\n")
	require.Len(t, parts, 3)
	for i, p := range parts {
		assert.Equal(t, ans.Sources[i].Chunk.Text, p)
	}
	assert.Equal(t, "How lightweight are threads in the runtime?", f.gen.question)
	assert.Equal(t, ans.Context, f.gen.context)
}

func TestAnswer_TopKLimitsContext(t *testing.T) {
	f := newFixture(t, 500)
	f.svc.topK = 1
	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, NewSession(), []byte(sampleDoc), "go.txt")
	require.NoError(t, err)

	ans := f.svc.Answer(ctx, "channels")
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "Channels connect goroutines.", ans.Context)
}

func TestAnswer_RetrievalErrorsDegrade(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, NewSession(), []byte(sampleDoc), "go.txt")
	require.NoError(t, err)

	f.store.searchErr = errors.New("index offline")
	ans := f.svc.Answer(ctx, "What is Go?")
	assert.Equal(t, StatusNoContext, ans.Status)

	f.store.searchErr = nil
	f.emb.err = errors.New("provider down")
	ans = f.svc.Answer(ctx, "What is Go?")
	assert.Equal(t, StatusNoContext, ans.Status)
	assert.Zero(t, f.gen.calls)
}

func TestAnswer_GenerationErrorApologizes(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, NewSession(), []byte(sampleDoc), "go.txt")
	require.NoError(t, err)

	f.gen.err = errors.New("status 500: secret upstream detail")
	ans := f.svc.Answer(ctx, "What is Go?")
	assert.Equal(t, StatusAnswered, ans.Status)
	assert.Equal(t, MsgGenerationFailed, ans.Text)
	assert.NotContains(t, ans.Text, "secret")
	assert.NotEmpty(t, ans.Context)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Fingerprint(nil))
	assert.Len(t, Fingerprint([]byte("x")), 64)
}

func TestSession_LastResult(t *testing.T) {
	sess := NewSessionWithID("abc")
	_, ok := sess.LastResult()
	assert.False(t, ok)

	f := newFixture(t, 500)
	_, err := f.svc.Ingest(context.Background(), sess, []byte(sampleDoc), "go.txt")
	require.NoError(t, err)
	res, ok := sess.LastResult()
	require.True(t, ok)
	assert.Equal(t, "go.txt", res.Filename)
	assert.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, "abc", sess.ID)
}
