package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/domain"
)

// handlePresenceQuery answers "which of these users are online" directly to
// the requester; presence is eventually consistent and this is the
// on-demand confirmation.
func (g *Gateway) handlePresenceQuery(c *wsClient, data []byte) {
	type queryPayload struct {
		Type    string          `json:"type"`
		UserIDs []domain.UserID `json:"userIds"`
	}
	var p queryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "gateway").Msg("bad users:online payload")
		g.sendJSON(c, map[string]any{"type": "error", "error": "bad_payload"})
		return
	}
	g.sendJSON(c, struct {
		Type  string                 `json:"type"`
		Users map[domain.UserID]bool `json:"users"`
	}{
		Type:  app.EvUsersOnline,
		Users: g.Router.QueryPresence(p.UserIDs),
	})
}

// handlePing is the app-level heartbeat (viewer heartbeat); transport-level
// ping/pong keepalive runs independently in the pumps.
func (g *Gateway) handlePing(c *wsClient) {
	g.sendJSON(c, struct {
		Type string `json:"type"`
	}{Type: "pong"})
}
