package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"

	"ragqa/internal/domain"
)

// DefaultTopK is used when a search asks for k <= 0.
const DefaultTopK = 3

// ErrDimensionMismatch is returned when a vector does not match the width of
// vectors already stored in the collection.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Storage persists vectors and supports similarity search.
type Storage interface {
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every chunk against query and returns the best topK, most
// similar first. Equal scores keep the input order.
func Rank(query []float64, chunks []domain.Chunk, vectors [][]float64, topK int) []domain.SearchResult {
	if topK <= 0 {
		topK = DefaultTopK
	}
	results := make([]domain.SearchResult, len(chunks))
	for i := range chunks {
		results[i] = domain.SearchResult{Chunk: chunks[i], Score: Cosine(query, vectors[i])}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK]
}

// CheckBatch validates an upsert batch against the expected dimension.
// A dimension of 0 means the collection is still empty and takes the
// width of the first vector.
func CheckBatch(chunks []domain.Chunk, vectors [][]float64, dimension int) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, errors.New("chunks and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) == 0 {
			return 0, errors.New("empty vector")
		}
		if dimension == 0 {
			dimension = len(v)
		}
		if len(v) != dimension {
			return 0, ErrDimensionMismatch
		}
	}
	return dimension, nil
}
