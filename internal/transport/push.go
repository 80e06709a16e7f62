package transport

import (
	"context"
	"encoding/json"

	"github.com/restohub/orderwatch/internal/model"
	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/messaging"
	"github.com/restohub/orderwatch/pkg/metrics"
)

// NewOrderEvent is the push event name announcing an order to the admin
// room.
const NewOrderEvent = "admin:new_order"

// PushSink receives individual order events from the push channel.
type PushSink interface {
	SubmitPush(snap model.OrderSnapshot)
}

// PushListener consumes envelopes from a messaging.Listener, validates
// new-order payloads at the boundary and forwards them. Reconnection is
// the listener's problem; this adapter just sees a quiet channel.
type PushListener struct {
	source  messaging.Listener
	sink    PushSink
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewPushListener(source messaging.Listener, sink PushSink, log *logger.Logger, m *metrics.Metrics) *PushListener {
	return &PushListener{
		source:  source,
		sink:    sink,
		logger:  log.WithComponent("push"),
		metrics: m,
	}
}

// Run consumes the push channel until ctx is cancelled or the listener
// closes its envelope stream.
func (l *PushListener) Run(ctx context.Context) error {
	envs, err := l.source.Listen(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-envs:
			if !ok {
				return nil
			}
			l.handle(env)
		}
	}
}

func (l *PushListener) handle(env messaging.Envelope) {
	if env.Event != NewOrderEvent {
		return
	}

	var w model.WireOrder
	if err := json.Unmarshal(env.Data, &w); err != nil {
		l.metrics.PushEventsTotal.WithLabelValues("malformed").Inc()
		l.logger.Debug("dropping malformed push payload", "error", err.Error())
		return
	}

	snap, err := w.Snapshot()
	if err != nil {
		l.metrics.PushEventsTotal.WithLabelValues("malformed").Inc()
		l.logger.Debug("dropping invalid push payload", "error", err.Error())
		return
	}

	l.metrics.PushEventsTotal.WithLabelValues("received").Inc()
	l.sink.SubmitPush(snap)
}
