// Package transport contains the two adapters feeding the reconciler:
// the interval poll of the order list and the push-channel listener.
// Each degrades independently; as long as one of them is alive the
// kitchen keeps getting alerts.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/restohub/orderwatch/internal/model"
	"github.com/restohub/orderwatch/pkg/circuitbreaker"
	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/metrics"
)

// PollSink receives complete order snapshots from the poll loop.
type PollSink interface {
	SubmitPoll(snaps []model.OrderSnapshot)
}

type PollerConfig struct {
	BaseURL  string
	Interval time.Duration
	Timeout  time.Duration
}

func (c *PollerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Poller fetches the order list on a fixed cadence. A new tick is armed
// only after the previous fetch settles, so in-flight polls never
// overlap and results are always applied in order.
type Poller struct {
	cfg     PollerConfig
	client  *http.Client
	cb      *circuitbreaker.CircuitBreaker
	sink    PollSink
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewPoller(cfg PollerConfig, sink PollSink, log *logger.Logger, m *metrics.Metrics) *Poller {
	cfg.applyDefaults()
	return &Poller{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "orders-poll",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		sink:    sink,
		logger:  log.WithComponent("poller"),
		metrics: m,
	}
}

// Run polls until ctx is cancelled. Fetch failures are logged and
// retried next tick, never escalated; the push channel covers the gap.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("starting order poll loop", "interval", p.cfg.Interval.String())

	for {
		p.tick(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("stopping order poll loop")
			return
		case <-time.After(p.cfg.Interval):
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	start := time.Now()
	snaps, err := p.fetch(ctx)
	p.metrics.PollLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.PollsTotal.WithLabelValues("error").Inc()
		p.logger.Debug("order poll failed", "error", err.Error())
		return
	}

	p.metrics.PollsTotal.WithLabelValues("success").Inc()
	p.sink.SubmitPoll(snaps)
}

func (p *Poller) fetch(ctx context.Context) ([]model.OrderSnapshot, error) {
	var snaps []model.OrderSnapshot

	err := p.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/orders", nil)
		if err != nil {
			return err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d from order list", resp.StatusCode)
		}

		var body model.OrderListResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("failed to decode order list: %w", err)
		}
		if !body.Success {
			return fmt.Errorf("order list request unsuccessful")
		}

		snaps = p.coerce(body.Orders)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// coerce validates each wire order, dropping malformed entries so one bad
// row never poisons a whole poll.
func (p *Poller) coerce(orders []model.WireOrder) []model.OrderSnapshot {
	snaps := make([]model.OrderSnapshot, 0, len(orders))
	for _, w := range orders {
		snap, err := w.Snapshot()
		if err != nil {
			p.logger.Debug("dropping malformed order entry", "error", err.Error())
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps
}
