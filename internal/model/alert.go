package model

import (
	"time"

	"github.com/google/uuid"
)

type AlertState string

const (
	AlertStateFiring       AlertState = "firing"
	AlertStateAcknowledged AlertState = "acknowledged"
	AlertStateExpired      AlertState = "expired"
)

// Terminal reports whether the alert can no longer change state.
func (s AlertState) Terminal() bool {
	return s == AlertStateAcknowledged || s == AlertStateExpired
}

// Alert is the record of a single new-order notification. One exists per
// fired decision; it is terminal once acknowledged or expired.
type Alert struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     string     `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	Total       float64    `json:"total"`
	State       AlertState `json:"state"`
	FiredAt     time.Time  `json:"fired_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
