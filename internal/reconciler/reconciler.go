// Package reconciler merges the two unreliable delivery channels, the
// order-list poll and the push stream, into a single sequence of
// new-order decisions with an at-most-once guarantee per order and
// session. Every external input becomes a typed message consumed
// one-at-a-time by a single goroutine, which is what makes the guarantee
// hold without locks around the decision logic.
package reconciler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/restohub/orderwatch/internal/model"
	"github.com/restohub/orderwatch/internal/relevance"
	"github.com/restohub/orderwatch/internal/seenset"
	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/metrics"
)

// AlertSink receives the reconciler's decisions. Implemented by the alert
// controller.
type AlertSink interface {
	Fire(snap model.OrderSnapshot) *model.Alert
	IsNotifying(orderID string) bool
}

type Config struct {
	// DeferDelay is how long a push event that raced the first poll is
	// held before its single retry.
	DeferDelay time.Duration
	// QueueSize bounds the inbound message channel.
	QueueSize int
}

func (c *Config) applyDefaults() {
	if c.DeferDelay <= 0 {
		c.DeferDelay = 2 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
}

type pollMsg struct {
	snaps []model.OrderSnapshot
}

type pushMsg struct {
	snap     model.OrderSnapshot
	deferred bool
}

type Reconciler struct {
	cfg     Config
	filter  *relevance.Filter
	seen    seenset.Store
	sink    AlertSink
	logger  *logger.Logger
	metrics *metrics.Metrics

	now func() time.Time

	msgs chan any
	done chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// prev holds the previous poll's id -> status projection. Owned by
	// the run goroutine, never read elsewhere.
	prev  map[string]model.OrderStatus
	epoch atomic.Bool
}

func NewReconciler(cfg Config, filter *relevance.Filter, seen seenset.Store, sink AlertSink, log *logger.Logger, m *metrics.Metrics) *Reconciler {
	cfg.applyDefaults()
	return &Reconciler{
		cfg:     cfg,
		filter:  filter,
		seen:    seen,
		sink:    sink,
		logger:  log.WithComponent("reconciler"),
		metrics: m,
		now:     time.Now,
		msgs:    make(chan any, cfg.QueueSize),
		done:    make(chan struct{}),
		prev:    make(map[string]model.OrderStatus),
	}
}

// Start launches the decision loop. Must be called exactly once.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop shuts the loop down and releases anything still queued.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// EpochComplete reports whether the initial order list has been loaded.
// No decision fires before this flips true.
func (r *Reconciler) EpochComplete() bool {
	return r.epoch.Load()
}

// SubmitPoll hands a full poll snapshot to the decision loop.
func (r *Reconciler) SubmitPoll(snaps []model.OrderSnapshot) {
	r.submit(pollMsg{snaps: snaps})
}

// SubmitPush hands a single push event to the decision loop.
func (r *Reconciler) SubmitPush(snap model.OrderSnapshot) {
	r.submit(pushMsg{snap: snap})
}

func (r *Reconciler) submit(m any) {
	select {
	case r.msgs <- m:
	case <-r.done:
	}
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-r.msgs:
			switch msg := m.(type) {
			case pollMsg:
				r.handlePoll(msg.snaps)
			case pushMsg:
				r.handlePush(ctx, msg.snap, msg.deferred)
			}
		}
	}
}

// handlePoll applies the poll-side dedup algorithm. The previous ID set is
// replaced before any decision side effects run so a slow alert pipeline
// can never cause the same order to be evaluated twice against a stale
// baseline.
func (r *Reconciler) handlePoll(snaps []model.OrderSnapshot) {
	cur := make(map[string]model.OrderStatus, len(snaps))
	for _, s := range snaps {
		cur[s.ID] = s.Status
	}

	if !r.epoch.Load() {
		// The first full list is the session baseline; it completes the
		// epoch and fires nothing, which is what keeps a page reload
		// from re-alerting every open order.
		r.prev = cur
		r.epoch.Store(true)
		r.logger.Info("initial order list loaded", "orders", len(snaps))
		return
	}

	var candidates []model.OrderSnapshot
	for _, s := range snaps {
		prevStatus, existed := r.prev[s.ID]
		switch {
		case !existed:
			candidates = append(candidates, s)
		case !prevStatus.ActionableNew() && s.Status.ActionableNew():
			// A known order transitioned into a state requiring kitchen
			// action, e.g. confirmed by another staff member.
			candidates = append(candidates, s)
		}
	}

	r.prev = cur

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	now := r.now()
	for _, s := range candidates {
		r.decide(s, now, model.SourcePoll)
	}
}

func (r *Reconciler) handlePush(ctx context.Context, snap model.OrderSnapshot, deferred bool) {
	if !r.epoch.Load() {
		if deferred {
			r.metrics.PushEventsTotal.WithLabelValues("dropped").Inc()
			r.logger.Debug("dropping push event, initial load still pending", "order_id", snap.ID)
			return
		}
		// Push can race the first poll; hold the event once instead of
		// losing it.
		r.metrics.DeferredPushEvents.Inc()
		retry := snap
		time.AfterFunc(r.cfg.DeferDelay, func() {
			select {
			case <-ctx.Done():
			default:
				r.submit(pushMsg{snap: retry, deferred: true})
			}
		})
		return
	}

	r.decide(snap, r.now(), model.SourcePush)
}

// decide runs the shared qualification pipeline: relevance window, seen
// set, then the currently-notifying guard that settles ties between the
// two channels in favor of whichever arrived first.
func (r *Reconciler) decide(snap model.OrderSnapshot, now time.Time, source model.Source) {
	if !r.filter.IsRelevant(snap, now, source, true) {
		r.metrics.StaleOrdersFiltered.Inc()
		return
	}
	ctx := context.Background()
	if r.seen.Has(ctx, snap.ID) {
		r.metrics.DuplicatesSuppressed.WithLabelValues("seen").Inc()
		return
	}
	if r.sink.IsNotifying(snap.ID) {
		r.metrics.DuplicatesSuppressed.WithLabelValues("notifying").Inc()
		return
	}

	r.sink.Fire(snap)
	r.logger.Debug("new order decision",
		"order_id", snap.ID, "source", string(source))
}
