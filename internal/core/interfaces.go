package core

import (
	"errors"

	"github.com/dkeye/Pulse/internal/domain"
)

// Frame is one marshalled outbound event.
type Frame []byte

var (
	// ErrBackpressure means the target's send buffer is full. The event is
	// dropped for that target only; delivery is fire-and-forget.
	ErrBackpressure = errors.New("backpressure")
	// ErrConnClosed means the transport is gone and the handle should be
	// pruned from every registry.
	ErrConnClosed = errors.New("connection closed")
)

// Pusher is the outbound half of a live connection.
// Owned by the gateway adapter; the adapter must Close() it. Registries and
// the router only ever hold it through the connection table, never directly.
type Pusher interface {
	TrySend(Frame) error
	Close()
}

// DeliveryResult reports fan-out stats for one event.
type DeliveryResult struct {
	Sent    int
	Dropped []domain.ConnID
	Dead    []domain.ConnID
}
