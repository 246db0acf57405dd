// Package app holds the event router: every inbound event, whether from a
// live connection or from an external collaborator, is resolved here to a
// set of target connections and dispatched best-effort, at most once,
// without ever blocking on a single slow consumer.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

const (
	// DefaultStreamChatMaxLen is the hard cap on stream chat content, in
	// runes; longer content is truncated, not rejected.
	DefaultStreamChatMaxLen = 300

	defaultLookupTimeout = 2 * time.Second
)

type Router struct {
	Presence  *core.Presence
	Rooms     *core.Rooms
	Conns     *core.Conns
	Directory Directory

	// StreamChatMaxLen overrides the 300-rune cap; zero means default.
	StreamChatMaxLen int
	// LookupTimeout bounds the per-message identity lookup.
	LookupTimeout time.Duration

	// Injectable for tests.
	Clock func() time.Time
	NewID func() string
}

func NewRouter(presence *core.Presence, rooms *core.Rooms, conns *core.Conns, dir Directory) *Router {
	if dir == nil {
		dir = NopDirectory{}
	}
	return &Router{
		Presence:  presence,
		Rooms:     rooms,
		Conns:     conns,
		Directory: dir,
	}
}

// ---- connection lifecycle ----

// Connected registers an authenticated connection: it enters the presence
// registry, auto-joins the user's private room (so notification delivery is
// plain room broadcast), and announces presence to every other connected
// peer, but only on the user's offline to online transition.
func (r *Router) Connected(user domain.UserID, conn domain.ConnID, p core.Pusher) {
	r.Conns.Add(conn, user, p)
	wentOnline := r.Presence.Register(user, conn)
	r.Rooms.Join(domain.UserRoom(user), conn)
	log.Info().Str("module", "app.router").Str("user", string(user)).Str("conn", string(conn)).Bool("went_online", wentOnline).Msg("connection registered")
	if wentOnline {
		r.broadcastGlobal(conn, presenceEvent{Type: EvPresenceOnline, UserID: user})
	}
}

// Disconnected retires a connection: handle removal, leaveAll, viewer-count
// re-announcements for any stream rooms it was in, then presence
// unregister with an offline announcement on the last-connection
// transition. One logical cleanup unit; callers invoke it exactly once.
func (r *Router) Disconnected(user domain.UserID, conn domain.ConnID) {
	r.Conns.Remove(conn)
	affected := r.Rooms.LeaveAll(conn)
	for _, room := range affected {
		if room.IsStream() {
			r.announceViewers(room)
		}
	}
	wentOffline := r.Presence.Unregister(user, conn)
	log.Info().Str("module", "app.router").Str("user", string(user)).Str("conn", string(conn)).Int("rooms_left", len(affected)).Bool("went_offline", wentOffline).Msg("connection retired")
	if wentOffline {
		r.broadcastGlobal("", presenceEvent{Type: EvPresenceOffline, UserID: user})
	}
}

// ---- inbound events ----

// JoinRoom adds the connection to a room, creating it on first join.
// Stream rooms announce the updated viewer count to all members. Private
// per-user rooms are joined by the lifecycle path only; a client-initiated
// join into one is refused so nobody can subscribe to another user's
// notifications.
func (r *Router) JoinRoom(room domain.RoomID, conn domain.ConnID) {
	if room.IsUserRoom() {
		log.Warn().Str("module", "app.router").Str("conn", string(conn)).Str("room", string(room)).Msg("join into private room refused")
		return
	}
	r.Rooms.Join(room, conn)
	if room.IsStream() {
		r.announceViewers(room)
	}
}

func (r *Router) LeaveRoom(room domain.RoomID, conn domain.ConnID) {
	r.Rooms.Leave(room, conn)
	if room.IsStream() {
		r.announceViewers(room)
	}
}

// Typing relays a typing indicator to the other members of the
// conversation. The sender must actually be a member; the indicator never
// echoes back to the connection that produced it.
func (r *Router) Typing(conversationID string, user domain.UserID, conn domain.ConnID, isTyping bool) {
	room := domain.ConversationRoom(conversationID)
	if !r.Rooms.MembersOf(room).Contains(conn) {
		log.Debug().Str("module", "app.router").Str("conn", string(conn)).Str("room", string(room)).Msg("typing from non-member dropped")
		return
	}
	r.deliverRoom(room, conn, typingEvent{
		Type:           EvChatTyping,
		UserID:         user,
		IsTyping:       isTyping,
		ConversationID: conversationID,
	})
}

// StreamChat validates, enriches and fans out one stream chat line.
// Content is trimmed; empty content is silently dropped; anything over the
// cap is truncated to it. The sender identity comes from the directory, not
// from the client, and the id/timestamp are server-assigned.
func (r *Router) StreamChat(streamID string, user domain.UserID, conn domain.ConnID, content string) {
	content = trimAndCap(content, r.maxChatLen())
	if content == "" {
		return
	}
	msg := domain.StreamChatMessage{
		ID:        r.id(),
		Sender:    r.lookupIdentity(user),
		Content:   content,
		StreamID:  streamID,
		CreatedAt: r.now().UTC(),
	}
	r.deliverRoom(domain.StreamRoom(streamID), conn, streamChatEvent{Type: EvStreamChat, StreamChatMessage: msg})
}

// QueryPresence answers a bulk "which of these are online" probe. The reply
// goes only to the requester, so this just computes the map.
func (r *Router) QueryPresence(ids []domain.UserID) map[domain.UserID]bool {
	out := make(map[domain.UserID]bool, len(ids))
	for _, id := range ids {
		out[id] = r.Presence.IsOnline(id)
	}
	return out
}

// ---- events from external collaborators ----

// AnnounceNotification delivers a freshly stored notification to every live
// connection of the recipient, via the private per-user room.
func (r *Router) AnnounceNotification(recipient domain.UserID, notification json.RawMessage) core.DeliveryResult {
	return r.deliverRoom(domain.UserRoom(recipient), "", notificationEvent{Type: EvNotificationNew, Notification: notification})
}

// AnnounceMessage tells a conversation's connected members that a message
// was persisted. The write path stores it first, so a client refetching
// history after this event always finds it.
func (r *Router) AnnounceMessage(conversationID string, message json.RawMessage) core.DeliveryResult {
	return r.deliverRoom(domain.ConversationRoom(conversationID), "", newMessageEvent{
		Type:           EvChatNewMessage,
		ConversationID: conversationID,
		Message:        message,
	})
}

// AnnounceStreamState feeds the discovery subscribers, independent of the
// stream's own room.
func (r *Router) AnnounceStreamState(streamID, status string) core.DeliveryResult {
	return r.deliverRoom(domain.DiscoveryRoom, "", streamStateEvent{Type: EvStreamState, StreamID: streamID, Status: status})
}

// Stats is a read-only ops snapshot.
type Stats struct {
	Connections int `json:"connections"`
	OnlineUsers int `json:"onlineUsers"`
	Rooms       int `json:"rooms"`
}

func (r *Router) StatsSnapshot() Stats {
	return Stats{
		Connections: r.Conns.Count(),
		OnlineUsers: len(r.Presence.OnlineUserIDs()),
		Rooms:       r.Rooms.Count(),
	}
}

// ---- delivery ----

func (r *Router) announceViewers(room domain.RoomID) {
	r.deliverRoom(room, "", viewersEvent{
		Type:        EvStreamViewers,
		StreamID:    room.StreamID(),
		ViewerCount: r.Rooms.SizeOf(room),
	})
}

// deliverRoom snapshots the room's membership and dispatches outside any
// lock. except, when non-empty, names the sending connection to skip.
func (r *Router) deliverRoom(room domain.RoomID, except domain.ConnID, v any) core.DeliveryResult {
	frame, ok := marshal(v)
	if !ok {
		return core.DeliveryResult{}
	}
	res := r.deliver(r.Rooms.MembersOf(room).ToSlice(), except, frame)
	if len(res.Dropped) > 0 || len(res.Dead) > 0 {
		log.Debug().Str("module", "app.router").Str("room", string(room)).Int("sent", res.Sent).Int("dropped", len(res.Dropped)).Int("dead", len(res.Dead)).Msg("partial delivery")
	}
	return res
}

func (r *Router) broadcastGlobal(except domain.ConnID, v any) {
	frame, ok := marshal(v)
	if !ok {
		return
	}
	var targets []domain.ConnID
	r.Conns.Each(func(id domain.ConnID, _ domain.UserID, _ core.Pusher) {
		targets = append(targets, id)
	})
	r.deliver(targets, except, frame)
}

func (r *Router) deliver(targets []domain.ConnID, except domain.ConnID, frame core.Frame) core.DeliveryResult {
	var res core.DeliveryResult
	for _, id := range targets {
		if except != "" && id == except {
			continue
		}
		p, ok := r.Conns.Get(id)
		if !ok {
			// Registry pointed at a retired handle; heal and move on.
			res.Dead = append(res.Dead, id)
			r.prune(id)
			continue
		}
		err := p.TrySend(frame)
		switch {
		case err == nil:
			res.Sent++
		case errors.Is(err, core.ErrBackpressure):
			// Fire-and-forget: the event is lost for this target only.
			res.Dropped = append(res.Dropped, id)
		default:
			res.Dead = append(res.Dead, id)
			r.prune(id)
		}
	}
	return res
}

// prune opportunistically removes a dead handle from every structure. A
// send failure to one peer must never propagate to the event's other
// targets, so this logs and cleans instead of returning an error.
func (r *Router) prune(conn domain.ConnID) {
	owner, _ := r.Conns.Owner(conn)
	if p, ok := r.Conns.Remove(conn); ok {
		p.Close()
	}
	affected := r.Rooms.LeaveAll(conn)
	for _, room := range affected {
		if room.IsStream() {
			r.announceViewers(room)
		}
	}
	log.Warn().Str("module", "app.router").Str("conn", string(conn)).Str("user", string(owner)).Int("rooms_left", len(affected)).Msg("pruned dead connection handle")
	if owner != "" && r.Presence.Unregister(owner, conn) {
		r.broadcastGlobal("", presenceEvent{Type: EvPresenceOffline, UserID: owner})
	}
}

// ---- helpers ----

func marshal(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("event marshal")
		return nil, false
	}
	return b, true
}

func trimAndCap(content string, limit int) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > limit {
		content = string([]rune(content)[:limit])
	}
	return content
}

func (r *Router) lookupIdentity(user domain.UserID) domain.Identity {
	dir := r.Directory
	if dir == nil {
		return domain.BareIdentity(user)
	}
	timeout := r.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	identity, err := dir.Lookup(ctx, user)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("user", string(user)).Msg("identity lookup failed, sending bare identity")
		return domain.BareIdentity(user)
	}
	return identity
}

func (r *Router) maxChatLen() int {
	if r.StreamChatMaxLen > 0 {
		return r.StreamChatMaxLen
	}
	return DefaultStreamChatMaxLen
}

func (r *Router) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Router) id() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}
