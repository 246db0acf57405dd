package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pulse/internal/adapters/gateway"
	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/config"
	"github.com/dkeye/Pulse/internal/domain"
)

// internalAuth guards the announce API the CRUD collaborator calls after
// its own write path commits. Shared-secret header, constant-time compare.
func internalAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "internal api disabled"})
			return
		}
		got := c.GetHeader("X-Internal-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// SetupRouter wires HTTP routes (WS endpoint + internal announce API).
func SetupRouter(ctx context.Context, cfg *config.Config, gw *gateway.Gateway, rt *app.Router) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ws", func(c *gin.Context) {
		gw.HandleWS(ctx, c)
	})

	internal := r.Group("/internal", internalAuth(cfg.InternalToken))

	// POST /internal/notifications: a notification was stored; wake every
	// live connection of the recipient.
	internal.POST("/notifications", func(c *gin.Context) {
		var req struct {
			RecipientID  domain.UserID   `json:"recipientId" binding:"required"`
			Notification json.RawMessage `json:"notification" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing recipientId or notification"})
			return
		}
		res := rt.AnnounceNotification(req.RecipientID, req.Notification)
		c.JSON(http.StatusOK, gin.H{"delivered": res.Sent})
	})

	// POST /internal/messages: a conversation message was persisted;
	// announce it to the conversation room.
	internal.POST("/messages", func(c *gin.Context) {
		var req struct {
			ConversationID string          `json:"conversationId" binding:"required"`
			Message        json.RawMessage `json:"message" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing conversationId or message"})
			return
		}
		res := rt.AnnounceMessage(req.ConversationID, req.Message)
		c.JSON(http.StatusOK, gin.H{"delivered": res.Sent})
	})

	// POST /internal/streams/state: a stream went live/offline; feed the
	// discovery subscribers.
	internal.POST("/streams/state", func(c *gin.Context) {
		var req struct {
			StreamID string `json:"streamId" binding:"required"`
			Status   string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing streamId or status"})
			return
		}
		res := rt.AnnounceStreamState(req.StreamID, req.Status)
		c.JSON(http.StatusOK, gin.H{"delivered": res.Sent})
	})

	internal.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, rt.StatsSnapshot())
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
