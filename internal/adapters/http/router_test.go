package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Pulse/internal/adapters/gateway"
	"github.com/dkeye/Pulse/internal/app"
	"github.com/dkeye/Pulse/internal/auth"
	"github.com/dkeye/Pulse/internal/config"
	"github.com/dkeye/Pulse/internal/core"
	"github.com/dkeye/Pulse/internal/domain"
)

const testInternalToken = "hush"

type recordingPusher struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (p *recordingPusher) TrySend(f core.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make(core.Frame, len(f))
	copy(cp, f)
	p.frames = append(p.frames, cp)
	return nil
}

func (p *recordingPusher) Close() {}

func (p *recordingPusher) types(t *testing.T) []string {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, f := range p.frames {
		var ev struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(f, &ev))
		out = append(out, ev.Type)
	}
	return out
}

func newTestEngine(t *testing.T, internalToken string) (*gin.Engine, *app.Router) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mode:          "release",
		ReadLimit:     32768,
		PingPeriod:    30 * time.Second,
		PongWait:      time.Minute,
		SendBuffer:    32,
		RefreshCookie: "rt",
		InternalToken: internalToken,
	}
	verifier, err := auth.NewVerifier([]byte("a-key"), []byte("r-key"))
	require.NoError(t, err)

	rt := app.NewRouter(core.NewPresence(), core.NewRooms(), core.NewConns(), nil)
	gw := gateway.New(rt, verifier, cfg)
	return SetupRouter(context.Background(), cfg, gw, rt), rt
}

func do(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Internal-Token", token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestEngine(t, testInternalToken)
	w := do(t, engine, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestInternalAuth(t *testing.T) {
	engine, _ := newTestEngine(t, testInternalToken)

	w := do(t, engine, http.MethodGet, "/internal/stats", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, engine, http.MethodGet, "/internal/stats", "wrong", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, engine, http.MethodGet, "/internal/stats", testInternalToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInternalAPIDisabledWithoutToken(t *testing.T) {
	engine, _ := newTestEngine(t, "")

	// No configured secret means no caller is ever let through.
	w := do(t, engine, http.MethodGet, "/internal/stats", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAnnounceNotificationEndpoint(t *testing.T) {
	engine, rt := newTestEngine(t, testInternalToken)

	bob := &recordingPusher{}
	rt.Connected("bob", "bob-c1", bob)

	w := do(t, engine, http.MethodPost, "/internal/notifications", testInternalToken, map[string]any{
		"recipientId":  "bob",
		"notification": map[string]any{"id": "n1", "kind": "follow"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"delivered":1}`, w.Body.String())
	assert.Contains(t, bob.types(t), "notification:new")
}

func TestAnnounceNotificationValidation(t *testing.T) {
	engine, _ := newTestEngine(t, testInternalToken)

	w := do(t, engine, http.MethodPost, "/internal/notifications", testInternalToken, map[string]any{
		"recipientId": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnnounceMessageEndpoint(t *testing.T) {
	engine, rt := newTestEngine(t, testInternalToken)

	alice := &recordingPusher{}
	bob := &recordingPusher{}
	rt.Connected("alice", "alice-c1", alice)
	rt.Connected("bob", "bob-c1", bob)
	rt.JoinRoom(domain.ConversationRoom("c1"), "alice-c1")
	rt.JoinRoom(domain.ConversationRoom("c1"), "bob-c1")

	w := do(t, engine, http.MethodPost, "/internal/messages", testInternalToken, map[string]any{
		"conversationId": "c1",
		"message":        map[string]any{"id": "m1", "text": "hi"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"delivered":2}`, w.Body.String())
	assert.Contains(t, alice.types(t), "chat:new-message")
	assert.Contains(t, bob.types(t), "chat:new-message")
}

func TestAnnounceStreamStateEndpoint(t *testing.T) {
	engine, rt := newTestEngine(t, testInternalToken)

	alice := &recordingPusher{}
	rt.Connected("alice", "alice-c1", alice)
	rt.JoinRoom(domain.DiscoveryRoom, "alice-c1")

	w := do(t, engine, http.MethodPost, "/internal/streams/state", testInternalToken, map[string]any{
		"streamId": "s1",
		"status":   "live",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"delivered":1}`, w.Body.String())
	assert.Contains(t, alice.types(t), "stream:state")
}

func TestStatsEndpoint(t *testing.T) {
	engine, rt := newTestEngine(t, testInternalToken)

	rt.Connected("alice", "alice-c1", &recordingPusher{})
	rt.Connected("alice", "alice-c2", &recordingPusher{})

	w := do(t, engine, http.MethodGet, "/internal/stats", testInternalToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats app.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 1, stats.OnlineUsers)
}
