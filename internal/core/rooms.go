package core

import (
	mapset "github.com/deckarep/golang-set/v2"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/dkeye/Pulse/internal/domain"
)

// Rooms is the membership table: room id -> set of joined connections.
// Conversation rooms, stream audiences, per-user private rooms and the
// discovery feed all live in the same table under different id namespaces.
//
// A reverse index (connection -> rooms) makes LeaveAll proportional to the
// number of rooms the connection actually joined. Both tables use the same
// copy-on-write discipline as Presence.
type Rooms struct {
	rooms  cmap.ConcurrentMap[string, mapset.Set[domain.ConnID]]
	joined cmap.ConcurrentMap[string, mapset.Set[domain.RoomID]]
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  cmap.New[mapset.Set[domain.ConnID]](),
		joined: cmap.New[mapset.Set[domain.RoomID]](),
	}
}

// Join adds the connection to the room, implicitly creating it, and returns
// the membership size after the join. Idempotent.
func (r *Rooms) Join(room domain.RoomID, conn domain.ConnID) (size int) {
	r.rooms.Upsert(string(room), nil, func(exist bool, cur, _ mapset.Set[domain.ConnID]) mapset.Set[domain.ConnID] {
		if !exist || cur == nil {
			size = 1
			return mapset.NewThreadUnsafeSet(conn)
		}
		if cur.Contains(conn) {
			size = cur.Cardinality()
			return cur
		}
		next := cur.Clone()
		next.Add(conn)
		size = next.Cardinality()
		return next
	})
	r.joined.Upsert(string(conn), nil, func(exist bool, cur, _ mapset.Set[domain.RoomID]) mapset.Set[domain.RoomID] {
		if !exist || cur == nil {
			return mapset.NewThreadUnsafeSet(room)
		}
		if cur.Contains(room) {
			return cur
		}
		next := cur.Clone()
		next.Add(room)
		return next
	})
	return size
}

// Leave removes the connection from the room and returns the remaining
// membership size. A room with zero members is pruned: it is
// indistinguishable from one that never existed.
func (r *Rooms) Leave(room domain.RoomID, conn domain.ConnID) (size int) {
	size = r.leaveRoom(room, conn)
	r.joined.Upsert(string(conn), nil, func(exist bool, cur, _ mapset.Set[domain.RoomID]) mapset.Set[domain.RoomID] {
		if !exist || cur == nil {
			return mapset.NewThreadUnsafeSet[domain.RoomID]()
		}
		if !cur.Contains(room) {
			return cur
		}
		next := cur.Clone()
		next.Remove(room)
		return next
	})
	r.joined.RemoveCb(string(conn), func(_ string, v mapset.Set[domain.RoomID], exists bool) bool {
		return exists && (v == nil || v.Cardinality() == 0)
	})
	return size
}

// LeaveAll removes the connection from every room it belongs to and returns
// the affected room ids. Part of the disconnect path: it must run before
// the connection id is considered retired.
func (r *Rooms) LeaveAll(conn domain.ConnID) []domain.RoomID {
	var roomsOf mapset.Set[domain.RoomID]
	r.joined.RemoveCb(string(conn), func(_ string, v mapset.Set[domain.RoomID], exists bool) bool {
		if exists {
			roomsOf = v
		}
		return exists
	})
	if roomsOf == nil || roomsOf.Cardinality() == 0 {
		return nil
	}
	affected := make([]domain.RoomID, 0, roomsOf.Cardinality())
	roomsOf.Each(func(room domain.RoomID) bool {
		r.leaveRoom(room, conn)
		affected = append(affected, room)
		return false
	})
	return affected
}

// MembersOf returns an immutable snapshot of the room's members.
func (r *Rooms) MembersOf(room domain.RoomID) mapset.Set[domain.ConnID] {
	set, ok := r.rooms.Get(string(room))
	if !ok || set == nil {
		return mapset.NewThreadUnsafeSet[domain.ConnID]()
	}
	return set
}

// SizeOf is the live viewer/member count: always the cardinality of the
// membership set, never a separately tracked counter.
func (r *Rooms) SizeOf(room domain.RoomID) int {
	set, ok := r.rooms.Get(string(room))
	if !ok || set == nil {
		return 0
	}
	return set.Cardinality()
}

// Count reports how many non-empty rooms exist.
func (r *Rooms) Count() int {
	n := 0
	for item := range r.rooms.IterBuffered() {
		if item.Val != nil && item.Val.Cardinality() > 0 {
			n++
		}
	}
	return n
}

func (r *Rooms) leaveRoom(room domain.RoomID, conn domain.ConnID) (size int) {
	key := string(room)
	r.rooms.Upsert(key, nil, func(exist bool, cur, _ mapset.Set[domain.ConnID]) mapset.Set[domain.ConnID] {
		if !exist || cur == nil {
			return mapset.NewThreadUnsafeSet[domain.ConnID]()
		}
		if !cur.Contains(conn) {
			size = cur.Cardinality()
			return cur
		}
		next := cur.Clone()
		next.Remove(conn)
		size = next.Cardinality()
		return next
	})
	r.rooms.RemoveCb(key, func(_ string, v mapset.Set[domain.ConnID], exists bool) bool {
		return exists && (v == nil || v.Cardinality() == 0)
	})
	return size
}
