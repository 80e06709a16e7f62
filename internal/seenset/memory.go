package seenset

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps the seen set in process memory only. It is the
// degradation target when redis is unavailable and the default store in
// tests. Entries never expire; the set lives as long as the process.
type MemoryStore struct {
	cache *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (s *MemoryStore) Has(_ context.Context, orderID string) bool {
	_, found := s.cache.Get(orderID)
	return found
}

func (s *MemoryStore) MarkSeen(_ context.Context, orderID string) {
	s.cache.Set(orderID, struct{}{}, gocache.NoExpiration)
}

func (s *MemoryStore) Reset(_ context.Context) {
	s.cache.Flush()
}

func (s *MemoryStore) Len(_ context.Context) int {
	return s.cache.ItemCount()
}
