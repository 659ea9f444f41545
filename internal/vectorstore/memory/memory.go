package memory

import (
	"context"
	"sync"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Entries are keyed by chunk id; re-inserting an id replaces it in place.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	positions map[string]int
	vectors   [][]float64
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{positions: make(map[string]int)} }

func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, err := vectorstore.CheckBatch(chunks, vectors, s.dimension)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	s.dimension = dim
	for i, ch := range chunks {
		if pos, ok := s.positions[ch.ID]; ok {
			s.chunks[pos] = ch
			s.vectors[pos] = vectors[i]
			continue
		}
		s.positions[ch.ID] = len(s.chunks)
		s.chunks = append(s.chunks, ch)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, vectorstore.ErrDimensionMismatch
	}
	return vectorstore.Rank(vector, s.chunks, s.vectors, topK), nil
}

// Len returns the number of stored entries.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Storage) Close() error { return nil }
