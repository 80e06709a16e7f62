package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restohub/orderwatch/internal/model"
	"github.com/restohub/orderwatch/internal/seenset"
	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/metrics"
)

type countingCue struct {
	mu    sync.Mutex
	plays int
	fail  bool
}

func (c *countingCue) Play(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plays++
	if c.fail {
		return errors.New("audio blocked")
	}
	return nil
}

func (c *countingCue) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plays
}

func newTestController(t *testing.T, cfg Config) (*Controller, seenset.Store, *countingCue) {
	t.Helper()
	seen := seenset.NewMemoryStore()
	cue := &countingCue{}
	m := metrics.NewMetricsWith(fmt.Sprintf("test_alert_%d", time.Now().UnixNano()), prometheus.NewRegistry())
	c := NewController(cfg, cue, seen, logger.Discard(), m)
	t.Cleanup(c.Stop)
	return c, seen, cue
}

func orderSnap(id string) model.OrderSnapshot {
	return model.OrderSnapshot{
		ID:          id,
		OrderNumber: "104",
		Status:      model.OrderStatusPending,
		CreatedAt:   time.Now(),
		Total:       18.90,
	}
}

func TestFireCreatesFiringAlert(t *testing.T) {
	c, _, cue := newTestController(t, Config{})

	a := c.Fire(orderSnap("ord-1"))

	require.NotNil(t, a)
	assert.Equal(t, model.AlertStateFiring, a.State)
	assert.Equal(t, "ord-1", a.OrderID)
	assert.True(t, c.IsNotifying("ord-1"))

	// The cue plays immediately on fire.
	require.Eventually(t, func() bool { return cue.count() >= 1 },
		time.Second, 10*time.Millisecond)
}

func TestFireTwiceReturnsExistingAlert(t *testing.T) {
	c, _, _ := newTestController(t, Config{})

	first := c.Fire(orderSnap("ord-1"))
	second := c.Fire(orderSnap("ord-1"))

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, c.History(), 1)
}

func TestAcknowledgeMarksSeenAndStopsNotifying(t *testing.T) {
	c, seen, _ := newTestController(t, Config{})
	ctx := context.Background()

	c.Fire(orderSnap("ord-1"))
	require.NoError(t, c.Acknowledge(ctx, "ord-1"))

	assert.False(t, c.IsNotifying("ord-1"))
	assert.True(t, seen.Has(ctx, "ord-1"))

	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, model.AlertStateAcknowledged, history[0].State)
	require.NotNil(t, history[0].ResolvedAt)
}

func TestAcknowledgeByAlertID(t *testing.T) {
	c, _, _ := newTestController(t, Config{})

	a := c.Fire(orderSnap("ord-1"))
	require.NoError(t, c.Acknowledge(context.Background(), a.ID.String()))
	assert.False(t, c.IsNotifying("ord-1"))
}

func TestAcknowledgeUnknownAlert(t *testing.T) {
	c, _, _ := newTestController(t, Config{})

	err := c.Acknowledge(context.Background(), "never-fired")
	assert.ErrorIs(t, err, ErrUnknownAlert)
}

func TestExpiryResolvesUnacknowledgedAlert(t *testing.T) {
	c, seen, _ := newTestController(t, Config{Expiry: 30 * time.Millisecond})
	ctx := context.Background()

	c.Fire(orderSnap("ord-1"))

	require.Eventually(t, func() bool { return !c.IsNotifying("ord-1") },
		time.Second, 5*time.Millisecond)

	assert.True(t, seen.Has(ctx, "ord-1"))
	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, model.AlertStateExpired, history[0].State)
}

func TestAcknowledgeAfterExpiryIsNoOp(t *testing.T) {
	c, seen, _ := newTestController(t, Config{Expiry: 20 * time.Millisecond})
	ctx := context.Background()

	c.Fire(orderSnap("ord-1"))
	require.Eventually(t, func() bool { return !c.IsNotifying("ord-1") },
		time.Second, 5*time.Millisecond)

	// The timeout/click race resolves to a no-op, not an error, and the
	// order stays marked seen exactly once.
	require.NoError(t, c.Acknowledge(ctx, "ord-1"))
	assert.True(t, seen.Has(ctx, "ord-1"))
	assert.Equal(t, 1, seen.Len(ctx))

	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, model.AlertStateExpired, history[0].State)
}

func TestAcknowledgeAfterHistoryEvictionIsNoOp(t *testing.T) {
	c, seen, _ := newTestController(t, Config{HistoryCap: 2})
	ctx := context.Background()

	c.Fire(orderSnap("ord-1"))
	require.NoError(t, c.Acknowledge(ctx, "ord-1"))

	// Evict the resolved record from the capped history.
	for i := 2; i <= 4; i++ {
		c.Fire(orderSnap(fmt.Sprintf("ord-%d", i)))
	}
	for _, a := range c.History() {
		require.NotEqual(t, "ord-1", a.OrderID)
	}

	// The order is still marked seen, so a late re-ack is a no-op
	// rather than an error.
	require.NoError(t, c.Acknowledge(ctx, "ord-1"))
	assert.True(t, seen.Has(ctx, "ord-1"))
	assert.ErrorIs(t, c.Acknowledge(ctx, "never-fired"), ErrUnknownAlert)
}

func TestHistoryBoundedMostRecentFirst(t *testing.T) {
	c, _, _ := newTestController(t, Config{HistoryCap: 3})

	for i := 1; i <= 5; i++ {
		snap := orderSnap(fmt.Sprintf("ord-%d", i))
		c.Fire(snap)
	}

	history := c.History()
	require.Len(t, history, 3)
	assert.Equal(t, "ord-5", history[0].OrderID)
	assert.Equal(t, "ord-4", history[1].OrderID)
	assert.Equal(t, "ord-3", history[2].OrderID)
}

func TestActiveReturnsMostRecentFiring(t *testing.T) {
	c, _, _ := newTestController(t, Config{})

	assert.Nil(t, c.Active())

	base := time.Now()
	times := []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}
	i := 0
	c.now = func() time.Time { tm := times[i]; i++; return tm }

	c.Fire(orderSnap("ord-1"))
	c.Fire(orderSnap("ord-2"))
	c.Fire(orderSnap("ord-3"))

	active := c.Active()
	require.NotNil(t, active)
	assert.Equal(t, "ord-3", active.OrderID)

	// Resolving the prominent alert promotes the next most recent.
	c.now = time.Now
	require.NoError(t, c.Acknowledge(context.Background(), "ord-3"))
	active = c.Active()
	require.NotNil(t, active)
	assert.Equal(t, "ord-2", active.OrderID)
}

func TestCueRepeatsUntilAcknowledged(t *testing.T) {
	c, _, cue := newTestController(t, Config{CueRepeat: 20 * time.Millisecond})

	c.Fire(orderSnap("ord-1"))
	require.Eventually(t, func() bool { return cue.count() >= 2 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Acknowledge(context.Background(), "ord-1"))
	time.Sleep(50 * time.Millisecond)
	settled := cue.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, cue.count(), "cue must stop after acknowledgment")
}

func TestCueFailureNeverEscalates(t *testing.T) {
	c, _, cue := newTestController(t, Config{})
	cue.fail = true

	// Fire must not panic or error even with audio permanently blocked.
	a := c.Fire(orderSnap("ord-1"))
	require.NotNil(t, a)
	require.Eventually(t, func() bool { return cue.count() >= 2 },
		time.Second, 10*time.Millisecond) // initial play plus its single retry
	assert.True(t, c.IsNotifying("ord-1"))
}

func TestStopTearsDownAllTimers(t *testing.T) {
	c, _, cue := newTestController(t, Config{CueRepeat: 10 * time.Millisecond})

	c.Fire(orderSnap("ord-1"))
	c.Fire(orderSnap("ord-2"))
	c.Stop()

	// No cue loop may keep firing audio after teardown.
	settled := cue.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, cue.count())
}
