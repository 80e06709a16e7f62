// Package alert owns the lifecycle of active order notifications: firing,
// audible cue repetition, acknowledgment and auto-expiry. Every fired
// decision gets its own record and timers even though the UI only makes
// the latest one prominent.
package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/restohub/orderwatch/internal/model"
	"github.com/restohub/orderwatch/internal/seenset"
	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/metrics"
)

// ErrUnknownAlert is returned when acknowledging an ID that never fired
// this session.
var ErrUnknownAlert = errors.New("unknown alert")

// CuePlayer plays the audible new-order cue. Playback is best-effort:
// failures are retried once and otherwise swallowed, never surfaced.
type CuePlayer interface {
	Play(ctx context.Context) error
}

type Config struct {
	Expiry     time.Duration
	CueRepeat  time.Duration
	HistoryCap int
}

func (c *Config) applyDefaults() {
	if c.Expiry <= 0 {
		c.Expiry = 2 * time.Minute
	}
	if c.CueRepeat <= 0 {
		c.CueRepeat = 10 * time.Second
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 20
	}
}

type entry struct {
	alert  *model.Alert
	stop   chan struct{}
	expiry *time.Timer
}

// Controller tracks every firing alert, repeats the cue until the alert
// is acknowledged or expires, and marks orders seen on either terminal
// transition. All state is guarded by a single mutex; callers arrive from
// the reconciler goroutine, expiry timers and HTTP handlers.
type Controller struct {
	cfg     Config
	cue     CuePlayer
	seen    seenset.Store
	logger  *logger.Logger
	metrics *metrics.Metrics

	// cueLimiter paces audio across alert bursts so a rush of orders
	// does not turn the kitchen speaker into a siren.
	cueLimiter *rate.Limiter

	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	notifying map[string]*entry
	history   []*model.Alert
}

func NewController(cfg Config, cue CuePlayer, seen seenset.Store, log *logger.Logger, m *metrics.Metrics) *Controller {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:        cfg,
		cue:        cue,
		seen:       seen,
		logger:     log.WithComponent("alert"),
		metrics:    m,
		cueLimiter: rate.NewLimiter(rate.Every(time.Second), 3),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		notifying:  make(map[string]*entry),
	}
}

// Fire transitions an order into the firing state. A second Fire for an
// order that is already notifying returns the existing record; the dedup
// guards upstream make that a defect rather than a normal path, so it is
// not counted as a new alert.
func (c *Controller) Fire(snap model.OrderSnapshot) *model.Alert {
	c.mu.Lock()

	if e, ok := c.notifying[snap.ID]; ok {
		c.mu.Unlock()
		return e.alert
	}

	a := &model.Alert{
		ID:          uuid.New(),
		OrderID:     snap.ID,
		OrderNumber: snap.OrderNumber,
		Total:       snap.Total,
		State:       model.AlertStateFiring,
		FiredAt:     c.now(),
	}

	e := &entry{alert: a, stop: make(chan struct{})}
	orderID := snap.ID
	e.expiry = time.AfterFunc(c.cfg.Expiry, func() {
		c.Expire(orderID)
	})
	c.notifying[orderID] = e

	c.history = append([]*model.Alert{a}, c.history...)
	if len(c.history) > c.cfg.HistoryCap {
		c.history = c.history[:c.cfg.HistoryCap]
	}

	c.metrics.DecisionsFired.Inc()
	c.metrics.CurrentlyNotifying.Set(float64(len(c.notifying)))
	c.metrics.HistorySize.Set(float64(len(c.history)))
	c.mu.Unlock()

	c.logger.Info("new order alert firing",
		"order_id", orderID, "order_number", snap.OrderNumber)

	c.wg.Add(1)
	go c.cueLoop(e)

	return a
}

// cueLoop plays the cue immediately and then repeats it until the alert
// reaches a terminal state or the controller shuts down.
func (c *Controller) cueLoop(e *entry) {
	defer c.wg.Done()

	c.playCue()

	ticker := time.NewTicker(c.cfg.CueRepeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.playCue()
		case <-e.stop:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) playCue() {
	if !c.cueLimiter.Allow() {
		return
	}
	if err := c.cue.Play(c.ctx); err != nil {
		// Single silent retry; audio may be blocked until the user
		// interacts with the dashboard.
		if err = c.cue.Play(c.ctx); err != nil {
			c.metrics.CueFailures.Inc()
			c.logger.Debug("cue playback failed", "error", err.Error())
		}
	}
}

// Acknowledge resolves an alert by order ID or alert ID. Acknowledging an
// alert that already expired (a timeout/click race) is a no-op, not an
// error; acknowledging an ID that never fired is ErrUnknownAlert.
func (c *Controller) Acknowledge(ctx context.Context, id string) error {
	c.mu.Lock()
	e, ok := c.resolveLocked(id)
	if !ok {
		resolved := c.alreadyResolvedLocked(id)
		c.mu.Unlock()
		// The capped history may have evicted the terminal record; the
		// seen set is the durable evidence that the order was already
		// resolved, so a late re-ack stays a no-op.
		if resolved || c.seen.Has(ctx, id) {
			return nil
		}
		return ErrUnknownAlert
	}
	c.finishLocked(e, model.AlertStateAcknowledged)
	c.mu.Unlock()

	c.seen.MarkSeen(ctx, e.alert.OrderID)
	c.metrics.AlertsAcknowledged.Inc()
	c.logger.Debug("alert acknowledged", "order_id", e.alert.OrderID)
	return nil
}

// Expire resolves an alert that was never acknowledged. Idempotent.
func (c *Controller) Expire(orderID string) {
	c.mu.Lock()
	e, ok := c.notifying[orderID]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.finishLocked(e, model.AlertStateExpired)
	c.mu.Unlock()

	c.seen.MarkSeen(context.Background(), orderID)
	c.metrics.AlertsExpired.Inc()
	c.logger.Debug("alert expired unacknowledged", "order_id", orderID)
}

// resolveLocked finds a notifying entry by order ID or alert UUID.
func (c *Controller) resolveLocked(id string) (*entry, bool) {
	if e, ok := c.notifying[id]; ok {
		return e, true
	}
	for _, e := range c.notifying {
		if e.alert.ID.String() == id {
			return e, true
		}
	}
	return nil, false
}

// alreadyResolvedLocked reports whether id belongs to an alert that
// already reached a terminal state this session.
func (c *Controller) alreadyResolvedLocked(id string) bool {
	for _, a := range c.history {
		if a.State.Terminal() && (a.OrderID == id || a.ID.String() == id) {
			return true
		}
	}
	return false
}

// finishLocked applies a terminal transition: stops timers, stops the cue
// loop and drops the order from the currently-notifying set.
func (c *Controller) finishLocked(e *entry, state model.AlertState) {
	e.expiry.Stop()
	close(e.stop)
	now := c.now()
	e.alert.State = state
	e.alert.ResolvedAt = &now
	delete(c.notifying, e.alert.OrderID)
	c.metrics.CurrentlyNotifying.Set(float64(len(c.notifying)))
}

// IsNotifying reports whether the order has a firing, unacknowledged
// alert. The reconciler uses this as its second-channel dedup guard.
func (c *Controller) IsNotifying(orderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.notifying[orderID]
	return ok
}

// Active returns the most recently fired alert that is still firing, or
// nil. Only this one is visually prominent in the dashboard.
func (c *Controller) Active() *model.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	var latest *entry
	for _, e := range c.notifying {
		if latest == nil || e.alert.FiredAt.After(latest.alert.FiredAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest.alert
	return &cp
}

// History returns the bounded notification history, most recent first.
func (c *Controller) History() []model.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Alert, len(c.history))
	for i, a := range c.history {
		out[i] = *a
	}
	return out
}

// Stop tears the controller down: every expiry timer is stopped and every
// cue loop exits, so nothing keeps firing audio after logout.
func (c *Controller) Stop() {
	c.mu.Lock()
	for _, e := range c.notifying {
		e.expiry.Stop()
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
