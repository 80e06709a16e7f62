package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restohub/orderwatch/internal/alert"
	"github.com/restohub/orderwatch/internal/model"
	"github.com/restohub/orderwatch/internal/relevance"
	"github.com/restohub/orderwatch/internal/seenset"
	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/metrics"
)

// These tests wire the reconciler to the real alert controller instead of
// a recording fake, exercising the full decision-to-terminal-state path.

func newIntegration(t *testing.T) (*Reconciler, *alert.Controller, seenset.Store) {
	t.Helper()
	seen := seenset.NewMemoryStore()
	m := metrics.NewMetricsWith("test_integration", prometheus.NewRegistry())
	ctrl := alert.NewController(alert.Config{}, alert.NopCue{}, seen, logger.Discard(), m)
	t.Cleanup(ctrl.Stop)

	rec := NewReconciler(Config{}, relevance.NewFilter(relevance.DefaultWindows()), seen, ctrl, logger.Discard(), m)
	return rec, ctrl, seen
}

func TestFullPathChannelRace(t *testing.T) {
	rec, ctrl, _ := newIntegration(t)
	ctx := context.Background()

	rec.handlePoll(nil)

	order := model.OrderSnapshot{
		ID:          "A",
		OrderNumber: "2001",
		Status:      model.OrderStatusPending,
		CreatedAt:   time.Now(),
		Total:       27.0,
	}

	// Both channels report the same order within one tick interval.
	rec.handlePush(ctx, order, false)
	rec.handlePoll([]model.OrderSnapshot{order})

	history := ctrl.History()
	require.Len(t, history, 1, "exactly one firing transition")
	assert.Equal(t, "A", history[0].OrderID)
	assert.True(t, ctrl.IsNotifying("A"))
}

func TestFullPathAckThenReplay(t *testing.T) {
	rec, ctrl, seen := newIntegration(t)
	ctx := context.Background()

	rec.handlePoll(nil)

	order := model.OrderSnapshot{
		ID:          "A",
		OrderNumber: "2002",
		Status:      model.OrderStatusPending,
		CreatedAt:   time.Now(),
		Total:       13.5,
	}
	rec.handlePoll([]model.OrderSnapshot{order})
	require.True(t, ctrl.IsNotifying("A"))

	require.NoError(t, ctrl.Acknowledge(ctx, "A"))
	assert.True(t, seen.Has(ctx, "A"))

	// Replays on either channel after acknowledgment stay silent.
	rec.handlePoll([]model.OrderSnapshot{order})
	rec.handlePush(ctx, order, false)

	assert.Len(t, ctrl.History(), 1)
	assert.False(t, ctrl.IsNotifying("A"))
}
