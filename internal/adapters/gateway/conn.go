package gateway

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

// Connection lifecycle. The pre-auth states are transient: a connection
// that fails the handshake goes straight to Closed without ever being
// registered, and no inbound event is dispatched outside Active.
type connState int32

const (
	stateConnecting connState = iota
	stateAuthenticating
	stateActive
	stateClosing
	stateClosed
)

// wsClient is one live transport session. It implements core.Pusher: the
// router fans out through TrySend, which never blocks: a full send buffer
// means the event is dropped for this connection only.
type wsClient struct {
	id   domain.ConnID
	user domain.UserID // set on Authenticating -> Active
	conn *websocket.Conn
	send chan core.Frame

	state atomic.Int32

	mu     sync.RWMutex
	closed bool
}

func newWSClient(id domain.ConnID, conn *websocket.Conn, buffer int) *wsClient {
	if buffer <= 0 {
		buffer = 64
	}
	return &wsClient{
		id:   id,
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *wsClient) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (c *wsClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
	c.state.Store(int32(stateClosed))
}

func (c *wsClient) is(s connState) bool {
	return connState(c.state.Load()) == s
}

// advance moves the state machine forward; returns false if another
// goroutine already moved it past from (e.g. concurrent teardown).
func (c *wsClient) advance(from, to connState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}
