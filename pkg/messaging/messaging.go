package messaging

import (
	"context"
	"encoding/json"
)

// Envelope is a single frame received from the push channel.
type Envelope struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Listener is the interface for push-channel transports. Listen returns a
// channel of envelopes that stays open across reconnects and is closed only
// when ctx is cancelled or Close is called.
type Listener interface {
	Listen(ctx context.Context) (<-chan Envelope, error)
	Close() error
}
