package service

import (
	"sync"

	"github.com/google/uuid"
)

// Session carries the per-user ingestion state: the fingerprint of the last
// document that was ingested successfully.
type Session struct {
	ID string

	mu          sync.Mutex
	fingerprint string
	filename    string
	chunkCount  int
	summary     string
}

// NewSession returns an empty session with a random id.
func NewSession() *Session {
	return NewSessionWithID(uuid.NewString())
}

// NewSessionWithID returns an empty session with the given id.
func NewSessionWithID(id string) *Session {
	return &Session{ID: id}
}

// LastFingerprint returns the fingerprint of the last successful ingestion,
// or "" if nothing has been ingested yet.
func (s *Session) LastFingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fingerprint
}

// LastResult describes the last successful ingestion.
func (s *Session) LastResult() (IngestResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fingerprint == "" {
		return IngestResult{}, false
	}
	return s.resultLocked(), true
}

func (s *Session) resultLocked() IngestResult {
	return IngestResult{
		Fingerprint: s.fingerprint,
		Filename:    s.filename,
		ChunkCount:  s.chunkCount,
		Summary:     s.summary,
	}
}

func (s *Session) recordLocked(res IngestResult) {
	s.fingerprint = res.Fingerprint
	s.filename = res.Filename
	s.chunkCount = res.ChunkCount
	s.summary = res.Summary
}
