// Package ws adapts gorilla/websocket connections to the core.Conn
// contract: a buffered send channel drained by a single write pump, and a
// read pump feeding the router.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avatarlab/actiond/internal/protocol"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const writeWait = 5 * time.Second

// Socket is the slice of *websocket.Conn the adapter uses; an interface so
// tests can stand in for the network.
type Socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Conn implements core.Conn over a websocket. TrySend never blocks: a full
// send buffer is a backpressure error, not a stall of the caller's loop.
type Conn struct {
	id   string
	sock Socket
	send chan protocol.Envelope

	mu     sync.RWMutex
	closed bool
}

func NewConn(id string, sock Socket) *Conn {
	return &Conn{
		id:   id,
		sock: sock,
		send: make(chan protocol.Envelope, 64),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) TrySend(env protocol.Envelope) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- env:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.sock.Close()
	c.mu.Unlock()
}

// WritePump drains the send channel to the wire in FIFO order, keeping the
// per-command ack-before-effect ordering intact. Pings keep idle
// connections alive.
func (c *Conn) WritePump(ctx context.Context, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-c.send:
			if !ok {
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				log.Error().Err(err).Str("module", "ws").Str("client", c.id).Msg("marshal event")
				continue
			}
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("client", c.id).Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump feeds inbound frames to handle until the transport ends. The
// caller owns teardown; this only reads.
func (c *Conn) ReadPump(ctx context.Context, readLimit int64, pongWait time.Duration, handle func([]byte)) {
	c.sock.SetReadLimit(readLimit)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.sock.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "ws").Str("client", c.id).Msg("read error")
				}
				return
			}
			handle(data)
		}
	}
}
