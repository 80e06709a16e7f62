package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ActionableNew reports whether the status means the kitchen has to act on
// a freshly arrived order, as opposed to one already in progress or done.
func (s OrderStatus) ActionableNew() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// OrderSnapshot is a read-only projection of an order as reported by the
// ordering backend. The notification core never mutates orders, it only
// observes successive snapshots.
type OrderSnapshot struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	Total       float64     `json:"total"`
}

// Source identifies which transport channel produced a snapshot or event.
type Source string

const (
	SourcePoll Source = "poll"
	SourcePush Source = "push"
)

var validate = validator.New()

// wireOrder is the shape orders arrive in over both transports. Payloads
// are validated and coerced here so everything past the adapter boundary
// can assume well-typed data.
type wireOrder struct {
	ID          string  `json:"id" validate:"required"`
	OrderID     string  `json:"orderId"`
	OrderNumber string  `json:"orderNumber" validate:"required"`
	Status      string  `json:"status" validate:"required,oneof=pending confirmed preparing ready delivered cancelled"`
	CreatedAt   string  `json:"createdAt" validate:"required"`
	Total       float64 `json:"total" validate:"gte=0"`
}

// WireOrder mirrors wireOrder for decoding at the transport boundary.
type WireOrder wireOrder

// Snapshot validates the wire payload and coerces it into an OrderSnapshot.
func (w WireOrder) Snapshot() (OrderSnapshot, error) {
	// The push payload carries orderId instead of id.
	if w.ID == "" {
		w.ID = w.OrderID
	}
	if err := validate.Struct(wireOrder(w)); err != nil {
		return OrderSnapshot{}, fmt.Errorf("invalid order payload: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, w.CreatedAt)
	if err != nil {
		return OrderSnapshot{}, fmt.Errorf("invalid createdAt %q: %w", w.CreatedAt, err)
	}

	return OrderSnapshot{
		ID:          w.ID,
		OrderNumber: w.OrderNumber,
		Status:      OrderStatus(w.Status),
		CreatedAt:   createdAt,
		Total:       w.Total,
	}, nil
}

// OrderListResponse is the envelope returned by GET /orders.
type OrderListResponse struct {
	Success bool        `json:"success"`
	Orders  []WireOrder `json:"orders"`
}
