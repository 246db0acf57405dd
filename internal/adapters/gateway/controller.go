// Package gateway is the outward-facing WebSocket adapter: it accepts
// connections, runs the credential handshake, registers live connections
// with the event router, and pumps frames in both directions.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/auth"
	"github.com/dkeye/Pulse/internal/config"
	"github.com/dkeye/Pulse/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Gateway struct {
	Router   *app.Router
	Verifier *auth.Verifier

	readLimit     int64
	pingPeriod    time.Duration
	pongWait      time.Duration
	sendBuffer    int
	refreshCookie string

	chatLimiter *chatRateLimiter
}

func New(router *app.Router, verifier *auth.Verifier, cfg *config.Config) *Gateway {
	return &Gateway{
		Router:        router,
		Verifier:      verifier,
		readLimit:     cfg.ReadLimit,
		pingPeriod:    cfg.PingPeriod,
		pongWait:      cfg.PongWait,
		sendBuffer:    cfg.SendBuffer,
		refreshCookie: cfg.RefreshCookie,
		chatLimiter:   newChatRateLimiter(10, 5*time.Second),
	}
}

// credentialMaterial pulls every handshake source off the upgrade request;
// the verifier decides priority and class binding.
func credentialMaterial(r *http.Request, refreshCookie string) auth.Material {
	m := auth.Material{
		Token:         r.URL.Query().Get("token"),
		Authorization: r.Header.Get("Authorization"),
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		m.Cookie = c.Value
	}
	return m
}

// HandleWS runs one connection end to end: upgrade, handshake, register,
// pump, teardown. An auth failure closes the socket with a policy
// violation before the connection is registered anywhere.
func (g *Gateway) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway").Msg("ws upgrade")
		return
	}

	client := newWSClient(domain.ConnID(uuid.NewString()), ws, g.sendBuffer)
	client.advance(stateConnecting, stateAuthenticating)

	user, err := g.Verifier.Authenticate(credentialMaterial(c.Request, g.refreshCookie))
	if err != nil {
		reason, _ := auth.ReasonOf(err)
		log.Warn().Err(err).Str("module", "gateway").Str("conn", string(client.id)).Msg("handshake rejected")
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason.String())
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		client.Close()
		return
	}

	client.user = user
	if !client.advance(stateAuthenticating, stateActive) {
		client.Close()
		return
	}
	log.Info().Str("module", "gateway").Str("conn", string(client.id)).Str("user", string(user)).Msg("connection active")
	g.Router.Connected(user, client.id, client)

	ctx, cancel := context.WithCancel(ctx)
	go g.writePump(ctx, client)
	go g.readPump(ctx, cancel, client)
}

// teardown runs the disconnect path exactly once: leaveAll + unregister
// happen inside Router.Disconnected, before the transport resources go.
func (g *Gateway) teardown(cancel context.CancelFunc, c *wsClient) {
	if !c.advance(stateActive, stateClosing) {
		// Never became active (or already closing); nothing was registered.
		cancel()
		c.Close()
		return
	}
	g.Router.Disconnected(c.user, c.id)
	cancel()
	c.Close()
	log.Info().Str("module", "gateway").Str("conn", string(c.id)).Str("user", string(c.user)).Msg("connection closed")
}
