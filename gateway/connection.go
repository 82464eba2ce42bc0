package gateway

import (
	"chat-gateway/domain/event"
	"chat-gateway/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Connection wraps a websocket and serialises outbound writes through a
// buffered queue. The queue is never closed, the close channel ends the write loop.
type Connection struct {
	ID     string
	UserID string

	ws           *websocket.Conn
	log          *slog.Logger
	send         chan []byte
	close        chan struct{}
	once         sync.Once
	pingInterval time.Duration
	readTimeout  time.Duration
}

func NewConnection(ws *websocket.Conn, userID string, log *slog.Logger, bufferSize int, pingInterval, readTimeout time.Duration) *Connection {
	id := uuid.NewString()
	return &Connection{
		ID:           id,
		UserID:       userID,
		ws:           ws,
		log:          log.With("connection_id", id, "user_id", userID),
		send:         make(chan []byte, bufferSize),
		close:        make(chan struct{}),
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// Start launches the write loop. It must be called exactly once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Emit enqueues a frame. A peer too slow to drain its queue is disconnected.
func (c *Connection) Emit(_ context.Context, out event.Outbound) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode %s: %w", out.Event, err)
	}
	select {
	case <-c.close:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.close:
		return errors.ErrConnectionClosed
	default:
		c.log.Warn("Send buffer full, closing connection", "event", out.Event)
		c.Close(websocket.ClosePolicyViolation, "send buffer full")
		return errors.ErrBufferFull
	}
}

// Close is idempotent.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// ReadLoop hands every text frame to onFrame until the peer goes away.
func (c *Connection) ReadLoop(maxFrameBytes int64, onFrame func(frame []byte)) error {
	c.ws.SetReadLimit(maxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
		if kind != websocket.TextMessage {
			c.log.Debug("Ignoring non text frame", "kind", kind)
			continue
		}
		onFrame(data)
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed", "error", err)
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "error", err)
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
