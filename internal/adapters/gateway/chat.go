package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/domain"
)

func (g *Gateway) handleChatJoin(c *wsClient, data []byte) {
	type joinPayload struct {
		Type           string `json:"type"`
		ConversationID string `json:"conversationId"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		log.Error().Err(err).Str("module", "gateway").Msg("bad chat:join payload")
		g.sendJSON(c, map[string]any{"type": "error", "error": "bad_payload"})
		return
	}
	g.Router.JoinRoom(domain.ConversationRoom(p.ConversationID), c.id)
}

func (g *Gateway) handleChatLeave(c *wsClient, data []byte) {
	type leavePayload struct {
		Type           string `json:"type"`
		ConversationID string `json:"conversationId"`
	}
	var p leavePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		log.Error().Err(err).Str("module", "gateway").Msg("bad chat:leave payload")
		return
	}
	g.Router.LeaveRoom(domain.ConversationRoom(p.ConversationID), c.id)
}

func (g *Gateway) handleTyping(c *wsClient, data []byte) {
	type typingPayload struct {
		Type           string `json:"type"`
		ConversationID string `json:"conversationId"`
		IsTyping       bool   `json:"isTyping"`
	}
	var p typingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		log.Error().Err(err).Str("module", "gateway").Msg("bad chat:typing payload")
		return
	}
	g.Router.Typing(p.ConversationID, c.user, c.id, p.IsTyping)
}
