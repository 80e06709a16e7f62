package alerts

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/restohub/orderwatch/internal/alert"
	"github.com/restohub/orderwatch/internal/reconciler"
	"github.com/restohub/orderwatch/internal/seenset"
	apperrors "github.com/restohub/orderwatch/pkg/errors"
	"github.com/restohub/orderwatch/pkg/httputil"
)

// Handler exposes the notification core to the dashboard frontend.
type Handler struct {
	ctrl *alert.Controller
	rec  *reconciler.Reconciler
	seen seenset.Store
}

func NewHandler(ctrl *alert.Controller, rec *reconciler.Reconciler, seen seenset.Store) *Handler {
	return &Handler{
		ctrl: ctrl,
		rec:  rec,
		seen: seen,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alerts")
	{
		alerts.GET("/active", h.GetActive)
		alerts.GET("/history", h.ListHistory)
		alerts.POST("/:id/ack", h.Acknowledge)
	}
	session := r.Group("/session")
	{
		session.GET("/status", h.SessionStatus)
		session.POST("/reset", h.ResetSession)
	}
}

// GetActive returns the most recent firing alert, or null when the
// kitchen has nothing pending.
func (h *Handler) GetActive(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.ctrl.Active())
}

// ListHistory returns the bounded notification history, newest first.
func (h *Handler) ListHistory(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.ctrl.History())
}

// Acknowledge resolves an alert by order ID or alert ID. Re-acknowledging
// an alert that already expired succeeds; the race between the staff
// click and the timeout is not an error.
func (h *Handler) Acknowledge(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		httputil.RespondWithError(c, apperrors.BadRequest("alert id is required", nil))
		return
	}

	if err := h.ctrl.Acknowledge(c.Request.Context(), id); err != nil {
		if errors.Is(err, alert.ErrUnknownAlert) {
			httputil.RespondWithError(c, apperrors.NotFound("alert", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"acknowledged": id})
}

// SessionStatus reports the epoch gate and tracking counters, mostly for
// the dashboard to decide when to start rendering alert UI.
func (h *Handler) SessionStatus(c *gin.Context) {
	ctx := c.Request.Context()
	httputil.RespondWithSuccess(c, gin.H{
		"epoch_complete": h.rec.EpochComplete(),
		"seen_orders":    h.seen.Len(ctx),
	})
}

// ResetSession wipes the seen set, simulating a fresh session. Everything
// currently on screen becomes eligible to alert again.
func (h *Handler) ResetSession(c *gin.Context) {
	h.seen.Reset(c.Request.Context())
	httputil.RespondWithSuccess(c, gin.H{"reset": true})
}
