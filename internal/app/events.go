package app

import (
	"encoding/json"

	"github.com/dkeye/Pulse/internal/domain"
)

// Outbound event names. Inbound names live with the gateway handlers; the
// two sets overlap where an inbound event has a same-named outbound echo.
const (
	EvPresenceOnline  = "presence:online"
	EvPresenceOffline = "presence:offline"
	EvUsersOnline     = "users:online"
	EvChatTyping      = "chat:typing"
	EvChatNewMessage  = "chat:new-message"
	EvStreamViewers   = "stream:viewers"
	EvStreamChat      = "stream:chat"
	EvStreamState     = "stream:state"
	EvNotificationNew = "notification:new"
)

type presenceEvent struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type typingEvent struct {
	Type           string        `json:"type"`
	UserID         domain.UserID `json:"userId"`
	IsTyping       bool          `json:"isTyping"`
	ConversationID string        `json:"conversationId"`
}

type viewersEvent struct {
	Type        string `json:"type"`
	StreamID    string `json:"streamId"`
	ViewerCount int    `json:"viewerCount"`
}

type streamChatEvent struct {
	Type string `json:"type"`
	domain.StreamChatMessage
}

type streamStateEvent struct {
	Type     string `json:"type"`
	StreamID string `json:"streamId"`
	Status   string `json:"status"`
}

type notificationEvent struct {
	Type         string          `json:"type"`
	Notification json.RawMessage `json:"notification"`
}

type newMessageEvent struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Message        json.RawMessage `json:"message"`
}
