package httpapi

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"ragqa/internal/service"
)

// sessionTable maps X-Session-ID values to ingestion sessions. A session
// expires ttl after its last use and the table holds at most size entries.
type sessionTable struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *service.Session]
}

func newSessionTable(size int, ttl time.Duration) *sessionTable {
	return &sessionTable{cache: expirable.NewLRU[string, *service.Session](size, nil, ttl)}
}

// get returns the session for id, creating it when unknown or expired. An
// empty id gets a fresh random one.
func (t *sessionTable) get(id string) *service.Session {
	if id == "" {
		id = uuid.NewString()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if sess, ok := t.cache.Get(id); ok {
		// Get does not extend the ttl; re-adding does
		t.cache.Add(id, sess)
		return sess
	}
	sess := service.NewSessionWithID(id)
	t.cache.Add(id, sess)
	return sess
}

func (t *sessionTable) len() int {
	return t.cache.Len()
}
