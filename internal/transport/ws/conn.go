package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/partydeck/game-server/internal/domain"
)

// wsConn adapts a gorilla connection to the registry's Sender. Send only
// enqueues; the write loop owns the socket, so the dispatcher never
// blocks on transport I/O. A full buffer means the client stopped
// reading and gets dropped.
type wsConn struct {
	conn *websocket.Conn

	out    chan domain.Event
	closed chan struct{}
	once   sync.Once
}

func newWsConn(c *websocket.Conn, sendBuffer int) *wsConn {
	return &wsConn{
		conn:   c,
		out:    make(chan domain.Event, sendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(ev domain.Event) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	case c.out <- ev:
		return nil
	default:
		return domain.ErrSlowConsumer
	}
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return c.conn.Close()
}

// writeLoop drains the outbox and keeps the connection alive with pings.
// A failed write closes the socket; the read loop then unwinds through
// the disconnect path.
func (c *wsConn) writeLoop(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteJSON(ev); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
