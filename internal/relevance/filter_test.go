package relevance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/restohub/orderwatch/internal/model"
)

func snap(status model.OrderStatus, createdAt time.Time) model.OrderSnapshot {
	return model.OrderSnapshot{
		ID:          "ord-1",
		OrderNumber: "1042",
		Status:      status,
		CreatedAt:   createdAt,
		Total:       24.50,
	}
}

func TestEpochGateSuppressesEverything(t *testing.T) {
	f := NewFilter(DefaultWindows())
	now := time.Now()

	s := snap(model.OrderStatusPending, now)
	assert.False(t, f.IsRelevant(s, now, model.SourcePush, false))
	assert.False(t, f.IsRelevant(s, now, model.SourcePoll, false))
	assert.True(t, f.IsRelevant(s, now, model.SourcePush, true))
}

func TestOnlyActionableStatusesQualify(t *testing.T) {
	f := NewFilter(DefaultWindows())
	now := time.Now()

	actionable := []model.OrderStatus{model.OrderStatusPending, model.OrderStatusConfirmed}
	for _, status := range actionable {
		assert.True(t, f.IsRelevant(snap(status, now), now, model.SourcePoll, true), "status %s", status)
	}

	inert := []model.OrderStatus{
		model.OrderStatusPreparing,
		model.OrderStatusReady,
		model.OrderStatusDelivered,
		model.OrderStatusCancelled,
	}
	for _, status := range inert {
		assert.False(t, f.IsRelevant(snap(status, now), now, model.SourcePoll, true), "status %s", status)
	}
}

func TestWindowBoundaries(t *testing.T) {
	windows := Windows{Push: 2 * time.Minute, Poll: 10 * time.Minute}
	f := NewFilter(windows)
	now := time.Now()

	tests := []struct {
		name     string
		source   model.Source
		age      time.Duration
		relevant bool
	}{
		{"push just inside", model.SourcePush, windows.Push - time.Second, true},
		{"push just outside", model.SourcePush, windows.Push + time.Second, false},
		{"poll just inside", model.SourcePoll, windows.Poll - time.Second, true},
		{"poll just outside", model.SourcePoll, windows.Poll + time.Second, false},
		{"push exactly at boundary", model.SourcePush, windows.Push, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := snap(model.OrderStatusPending, now.Add(-tt.age))
			assert.Equal(t, tt.relevant, f.IsRelevant(s, now, tt.source, true))
		})
	}
}

func TestStaleOrderNeverRelevantEvenIfUnseen(t *testing.T) {
	f := NewFilter(DefaultWindows())
	now := time.Now()

	// A week-old pending order resurfacing after a server hiccup must
	// not come back as "new".
	old := snap(model.OrderStatusPending, now.Add(-7*24*time.Hour))
	assert.False(t, f.IsRelevant(old, now, model.SourcePoll, true))
	assert.False(t, f.IsRelevant(old, now, model.SourcePush, true))
}

func TestZeroWindowsFallBackToDefaults(t *testing.T) {
	f := NewFilter(Windows{})
	assert.Equal(t, DefaultWindows().Push, f.Window(model.SourcePush))
	assert.Equal(t, DefaultWindows().Poll, f.Window(model.SourcePoll))
}
