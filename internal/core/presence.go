package core

import (
	mapset "github.com/deckarep/golang-set/v2"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/dkeye/Pulse/internal/domain"
)

// Presence maps a user to the set of their currently open connections.
// A user is online iff the set is non-empty; the transition in or out of
// that state is detected atomically with the mutation so online/offline
// broadcasts fire exactly once, with no flapping.
//
// Values are copy-on-write: every mutation publishes a fresh set under the
// shard lock, so readers always see an immutable snapshot and broadcast
// never holds a lock.
type Presence struct {
	users cmap.ConcurrentMap[string, mapset.Set[domain.ConnID]]
}

func NewPresence() *Presence {
	return &Presence{users: cmap.New[mapset.Set[domain.ConnID]]()}
}

// Register adds a connection to the user's set. Idempotent. The returned
// flag is true only when this was the user's first connection; the caller
// uses it to decide whether to announce the user as online.
func (p *Presence) Register(user domain.UserID, conn domain.ConnID) (wentOnline bool) {
	p.users.Upsert(string(user), nil, func(exist bool, cur, _ mapset.Set[domain.ConnID]) mapset.Set[domain.ConnID] {
		if !exist || cur == nil || cur.Cardinality() == 0 {
			wentOnline = true
			return mapset.NewThreadUnsafeSet(conn)
		}
		if cur.Contains(conn) {
			return cur
		}
		next := cur.Clone()
		next.Add(conn)
		return next
	})
	return wentOnline
}

// Unregister removes a connection from the user's set. Idempotent. When the
// set empties the entry is deleted, not left empty, and the returned flag
// reports the offline transition exactly once.
func (p *Presence) Unregister(user domain.UserID, conn domain.ConnID) (wentOffline bool) {
	key := string(user)
	p.users.Upsert(key, nil, func(exist bool, cur, _ mapset.Set[domain.ConnID]) mapset.Set[domain.ConnID] {
		if !exist || cur == nil || !cur.Contains(conn) {
			if cur != nil {
				return cur
			}
			return mapset.NewThreadUnsafeSet[domain.ConnID]()
		}
		next := cur.Clone()
		next.Remove(conn)
		if next.Cardinality() == 0 {
			wentOffline = true
		}
		return next
	})
	// Prune the entry if it is still empty. A register that slipped in
	// between refills the set and the prune backs off.
	p.users.RemoveCb(key, func(_ string, v mapset.Set[domain.ConnID], exists bool) bool {
		return exists && (v == nil || v.Cardinality() == 0)
	})
	return wentOffline
}

func (p *Presence) IsOnline(user domain.UserID) bool {
	set, ok := p.users.Get(string(user))
	return ok && set != nil && set.Cardinality() > 0
}

// ConnectionsOf returns a snapshot of the user's live connection ids.
func (p *Presence) ConnectionsOf(user domain.UserID) []domain.ConnID {
	set, ok := p.users.Get(string(user))
	if !ok || set == nil {
		return nil
	}
	return set.ToSlice()
}

// OnlineUserIDs lists every user with at least one live connection.
func (p *Presence) OnlineUserIDs() []domain.UserID {
	out := make([]domain.UserID, 0, p.users.Count())
	for item := range p.users.IterBuffered() {
		if item.Val != nil && item.Val.Cardinality() > 0 {
			out = append(out, domain.UserID(item.Key))
		}
	}
	return out
}
