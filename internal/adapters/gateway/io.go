package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (g *Gateway) writePump(ctx context.Context, c *wsClient) {
	ticker := time.NewTicker(g.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "gateway").Str("conn", string(c.id)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("module", "gateway").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump owns the read side and the disconnect path. A pong (or any
// read) refreshes the idle deadline; a connection idle past pongWait fails
// the read and tears down exactly like a client-initiated close.
func (g *Gateway) readPump(ctx context.Context, cancel context.CancelFunc, c *wsClient) {
	defer g.teardown(cancel, c)

	c.conn.SetReadLimit(g.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					log.Warn().Err(err).Str("module", "gateway").Str("conn", string(c.id)).Msg("readPump read error")
				}
				return
			}
			g.dispatch(c, data)
		}
	}
}

func (g *Gateway) dispatch(c *wsClient, data []byte) {
	if !c.is(stateActive) {
		return
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "gateway").Str("conn", string(c.id)).Msg("bad json")
		return
	}

	switch env.Type {
	case "chat:join":
		g.handleChatJoin(c, data)
	case "chat:leave":
		g.handleChatLeave(c, data)
	case "chat:typing":
		g.handleTyping(c, data)
	case "stream:join":
		g.handleStreamJoin(c, data)
	case "stream:leave":
		g.handleStreamLeave(c, data)
	case "stream:chat":
		g.handleStreamChat(c, data)
	case "users:online":
		g.handlePresenceQuery(c, data)
	case "discovery:subscribe":
		g.handleDiscoverySubscribe(c)
	case "discovery:unsubscribe":
		g.handleDiscoveryUnsubscribe(c)
	case "ping":
		g.handlePing(c)
	default:
		log.Warn().Str("module", "gateway").Str("type", env.Type).Msg("unknown event")
	}
}

func (g *Gateway) sendJSON(c *wsClient, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
