package domain

import "time"

// StreamChatMessage is the outbound shape of a live-stream chat line.
// The id and timestamp are assigned by the server; clients never supply them.
type StreamChatMessage struct {
	ID        string    `json:"id"`
	Sender    Identity  `json:"sender"`
	Content   string    `json:"content"`
	StreamID  string    `json:"streamId"`
	CreatedAt time.Time `json:"createdAt"`
}
