package domain

import "strings"

// RoomID is a namespaced group identifier. Every delivery target in the
// gateway (a conversation, a stream audience, one user's devices, the
// discovery feed) is a room, so there is exactly one broadcast primitive.
type RoomID string

const (
	userPrefix         = "user:"
	conversationPrefix = "conv:"
	streamPrefix       = "stream:"

	// DiscoveryRoom carries platform-wide stream state changes to
	// clients browsing the stream directory.
	DiscoveryRoom = RoomID("feed:discovery")
)

// UserRoom is the private per-user room every connection auto-joins.
// Delivering to it reaches all of that user's devices.
func UserRoom(id UserID) RoomID { return RoomID(userPrefix + string(id)) }

func ConversationRoom(id string) RoomID { return RoomID(conversationPrefix + id) }

func StreamRoom(id string) RoomID { return RoomID(streamPrefix + id) }

func (r RoomID) IsUserRoom() bool { return strings.HasPrefix(string(r), userPrefix) }

func (r RoomID) IsStream() bool { return strings.HasPrefix(string(r), streamPrefix) }

// StreamID strips the namespace prefix; empty for non-stream rooms.
func (r RoomID) StreamID() string {
	if !r.IsStream() {
		return ""
	}
	return strings.TrimPrefix(string(r), streamPrefix)
}
