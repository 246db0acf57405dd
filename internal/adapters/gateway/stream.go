package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/domain"
)

func (g *Gateway) handleStreamJoin(c *wsClient, data []byte) {
	type joinPayload struct {
		Type     string `json:"type"`
		StreamID string `json:"streamId"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.StreamID == "" {
		log.Error().Err(err).Str("module", "gateway").Msg("bad stream:join payload")
		g.sendJSON(c, map[string]any{"type": "error", "error": "bad_payload"})
		return
	}
	log.Info().Str("module", "gateway").Str("conn", string(c.id)).Str("stream", p.StreamID).Msg("stream join")
	g.Router.JoinRoom(domain.StreamRoom(p.StreamID), c.id)
}

func (g *Gateway) handleStreamLeave(c *wsClient, data []byte) {
	type leavePayload struct {
		Type     string `json:"type"`
		StreamID string `json:"streamId"`
	}
	var p leavePayload
	if err := json.Unmarshal(data, &p); err != nil || p.StreamID == "" {
		log.Error().Err(err).Str("module", "gateway").Msg("bad stream:leave payload")
		return
	}
	g.Router.LeaveRoom(domain.StreamRoom(p.StreamID), c.id)
}

func (g *Gateway) handleStreamChat(c *wsClient, data []byte) {
	type chatPayload struct {
		Type     string `json:"type"`
		StreamID string `json:"streamId"`
		Content  string `json:"content"`
	}
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil || p.StreamID == "" {
		log.Error().Err(err).Str("module", "gateway").Msg("bad stream:chat payload")
		return
	}
	if !g.chatLimiter.Allow(c.user) {
		g.sendJSON(c, map[string]any{"type": "error", "error": "rate_limited"})
		return
	}
	g.Router.StreamChat(p.StreamID, c.user, c.id, p.Content)
}

func (g *Gateway) handleDiscoverySubscribe(c *wsClient) {
	g.Router.JoinRoom(domain.DiscoveryRoom, c.id)
}

func (g *Gateway) handleDiscoveryUnsubscribe(c *wsClient) {
	g.Router.LeaveRoom(domain.DiscoveryRoom, c.id)
}
