// Package ws implements the push-channel Listener over a websocket
// connection to the ordering backend.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/restohub/orderwatch/pkg/logger"
	"github.com/restohub/orderwatch/pkg/messaging"
)

const joinEvent = "join"

type Config struct {
	URL          string
	Room         string
	DialTimeout  time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	PingInterval time.Duration
}

// Client maintains a websocket connection to the push channel, rejoining
// its room after every reconnect. Disconnects are never surfaced to the
// consumer; the envelope channel simply goes quiet until the connection
// is re-established.
type Client struct {
	cfg    Config
	logger *logger.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed chan struct{}
	once   sync.Once

	onReconnect func()
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 30 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	return &Client{
		cfg:    cfg,
		logger: log.WithComponent("push-ws"),
		closed: make(chan struct{}),
	}
}

// OnReconnect registers a hook invoked on every reconnection attempt,
// used for metrics.
func (c *Client) OnReconnect(fn func()) {
	c.onReconnect = fn
}

func (c *Client) Listen(ctx context.Context) (<-chan messaging.Envelope, error) {
	out := make(chan messaging.Envelope, 64)

	go func() {
		defer close(out)
		backoff := c.cfg.ReconnectMin

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			default:
			}

			conn, err := c.dial(ctx)
			if err != nil {
				c.logger.Debug("push channel dial failed", "error", err.Error(), "retry_in", backoff.String())
				if c.onReconnect != nil {
					c.onReconnect()
				}
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				case <-c.closed:
					return
				}
				backoff = min(backoff*2, c.cfg.ReconnectMax)
				continue
			}

			backoff = c.cfg.ReconnectMin
			c.setConn(conn)
			c.logger.Info("push channel connected", "room", c.cfg.Room)

			if err := c.readLoop(ctx, conn, out); err != nil {
				c.logger.Debug("push channel dropped", "error", err.Error())
			}
			// The read side is done with this connection either way;
			// without the explicit close a server-side disconnect leaks
			// the descriptor until GC.
			conn.Close()
			c.setConn(nil)
		}
	}()

	return out, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	join := messaging.Envelope{Event: joinEvent, Room: c.cfg.Room}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- messaging.Envelope) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-c.closed:
				conn.Close()
				return
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env messaging.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.logger.Debug("discarding malformed frame", "error", err.Error())
			continue
		}

		select {
		case out <- env:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return nil
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) Close() error {
	c.once.Do(func() { close(c.closed) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
