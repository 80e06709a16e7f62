package seenset

import (
	"context"
	"sync"

	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/metrics"
)

// FallbackStore wraps a durable backend and degrades permanently to
// in-memory tracking on the first storage failure. Degradation is logged
// once; after a reload within the same session alerts may then re-fire,
// which is the accepted trade-off over failing hard.
type FallbackStore struct {
	backend durable
	memory  *MemoryStore
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	degraded bool
}

func NewFallbackStore(backend durable, log *logger.Logger, m *metrics.Metrics) *FallbackStore {
	return &FallbackStore{
		backend: backend,
		memory:  NewMemoryStore(),
		logger:  log.WithComponent("seenset"),
		metrics: m,
	}
}

func (s *FallbackStore) degrade(err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()
	if already {
		return
	}

	s.logger.Error(err, "seen-set storage failed, degrading to in-memory tracking for this session")
	s.metrics.SeenSetDegradations.Inc()
}

func (s *FallbackStore) isDegraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *FallbackStore) Has(ctx context.Context, orderID string) bool {
	if s.memory.Has(ctx, orderID) {
		return true
	}
	if s.isDegraded() {
		return false
	}
	ok, err := s.backend.Has(ctx, orderID)
	if err != nil {
		s.degrade(err)
		return false
	}
	return ok
}

func (s *FallbackStore) MarkSeen(ctx context.Context, orderID string) {
	// The memory mirror is always written so a mid-session degradation
	// never forgets IDs marked before the failure.
	s.memory.MarkSeen(ctx, orderID)
	defer s.metrics.SeenSetSize.Set(float64(s.Len(ctx)))
	if s.isDegraded() {
		return
	}
	if err := s.backend.MarkSeen(ctx, orderID); err != nil {
		s.degrade(err)
	}
}

func (s *FallbackStore) Reset(ctx context.Context) {
	s.memory.Reset(ctx)
	defer s.metrics.SeenSetSize.Set(0)
	if s.isDegraded() {
		return
	}
	if err := s.backend.Reset(ctx); err != nil {
		s.degrade(err)
	}
}

func (s *FallbackStore) Len(ctx context.Context) int {
	if !s.isDegraded() {
		if n, err := s.backend.Len(ctx); err == nil {
			return n
		}
	}
	return s.memory.Len(ctx)
}
