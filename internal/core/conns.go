package core

import (
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/dkeye/Pulse/internal/domain"
)

type connEntry struct {
	owner  domain.UserID
	pusher Pusher
}

// Conns is the table of live connection handles, keyed by connection id.
// The gateway is the only writer; the router reads it to resolve fan-out
// targets. Backed by a sharded concurrent map so lookups during broadcast
// never contend with registrations on other shards.
type Conns struct {
	m cmap.ConcurrentMap[string, connEntry]
}

func NewConns() *Conns {
	return &Conns{m: cmap.New[connEntry]()}
}

func (c *Conns) Add(id domain.ConnID, owner domain.UserID, p Pusher) {
	c.m.Set(string(id), connEntry{owner: owner, pusher: p})
}

func (c *Conns) Get(id domain.ConnID) (Pusher, bool) {
	e, ok := c.m.Get(string(id))
	if !ok {
		return nil, false
	}
	return e.pusher, true
}

func (c *Conns) Owner(id domain.ConnID) (domain.UserID, bool) {
	e, ok := c.m.Get(string(id))
	if !ok {
		return "", false
	}
	return e.owner, true
}

// Remove retires the handle and returns it so the caller can Close it.
func (c *Conns) Remove(id domain.ConnID) (Pusher, bool) {
	var p Pusher
	removed := c.m.RemoveCb(string(id), func(_ string, e connEntry, exists bool) bool {
		if exists {
			p = e.pusher
		}
		return exists
	})
	return p, removed
}

func (c *Conns) Count() int { return c.m.Count() }

// Each visits a snapshot of all live handles. The snapshot is taken shard by
// shard; handles added or removed mid-walk may or may not be seen.
func (c *Conns) Each(fn func(id domain.ConnID, owner domain.UserID, p Pusher)) {
	for item := range c.m.IterBuffered() {
		fn(domain.ConnID(item.Key), item.Val.owner, item.Val.pusher)
	}
}
