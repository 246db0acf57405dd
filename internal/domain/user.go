// Package domain contains entity without logic, just meta-data
package domain

type (
	UserID string
	ConnID string
)

// Identity is the public profile snapshot attached to outbound chat
// payloads. It is filled from the identity collaborator, never from
// client-reported fields.
type Identity struct {
	UserID   UserID `json:"userId"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// BareIdentity is the fallback when the directory lookup fails:
// the recipient still learns who sent the message.
func BareIdentity(id UserID) Identity {
	return Identity{UserID: id}
}
