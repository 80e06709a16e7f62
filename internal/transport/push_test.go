package transport

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restohub/orderwatch/internal/model"
	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/messaging"
	"github.com/restohub/orderwatch/pkg/metrics"
)

type pushCapture struct {
	mu    sync.Mutex
	snaps []model.OrderSnapshot
}

func (s *pushCapture) SubmitPush(snap model.OrderSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *pushCapture) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.snaps))
	for i, snap := range s.snaps {
		out[i] = snap.ID
	}
	return out
}

// stubListener replays a fixed set of envelopes.
type stubListener struct {
	envs []messaging.Envelope
}

func (l *stubListener) Listen(_ context.Context) (<-chan messaging.Envelope, error) {
	out := make(chan messaging.Envelope, len(l.envs))
	for _, env := range l.envs {
		out <- env
	}
	close(out)
	return out, nil
}

func (l *stubListener) Close() error { return nil }

func envelope(t *testing.T, event string, data any) messaging.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return messaging.Envelope{Event: event, Data: raw}
}

func TestPushListenerForwardsNewOrderEvents(t *testing.T) {
	source := &stubListener{envs: []messaging.Envelope{
		envelope(t, NewOrderEvent, map[string]any{
			"orderId":     "ord-1",
			"orderNumber": "101",
			"status":      "pending",
			"createdAt":   time.Now().UTC().Format(time.RFC3339),
			"total":       31.0,
		}),
		envelope(t, "admin:order_updated", map[string]any{"orderId": "ord-2"}),
	}}

	sink := &pushCapture{}
	m := metrics.NewMetricsWith("test_push", prometheus.NewRegistry())
	l := NewPushListener(source, sink, logger.Discard(), m)

	require.NoError(t, l.Run(context.Background()))

	// The push payload uses orderId; the boundary coerces it to the
	// snapshot ID. Unrelated events pass by untouched.
	assert.Equal(t, []string{"ord-1"}, sink.ids())
}

func TestPushListenerDropsInvalidPayloads(t *testing.T) {
	source := &stubListener{envs: []messaging.Envelope{
		{Event: NewOrderEvent, Data: json.RawMessage(`{"orderId": 12`)},
		envelope(t, NewOrderEvent, map[string]any{"orderId": "ord-1", "status": "pending"}),
	}}

	sink := &pushCapture{}
	m := metrics.NewMetricsWith("test_push_invalid", prometheus.NewRegistry())
	l := NewPushListener(source, sink, logger.Discard(), m)

	require.NoError(t, l.Run(context.Background()))
	assert.Empty(t, sink.ids())
}
