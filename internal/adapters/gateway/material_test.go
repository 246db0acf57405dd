package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Pulse/internal/core"
)

func handshakeRequest(t *testing.T, query, header, cookie string) *http.Request {
	t.Helper()
	url := "/ws"
	if query != "" {
		url += "?token=" + query
	}
	r := httptest.NewRequest(http.MethodGet, url, nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	if cookie != "" {
		r.AddCookie(&http.Cookie{Name: "rt", Value: cookie})
	}
	return r
}

func TestCredentialMaterialExtraction(t *testing.T) {
	m := credentialMaterial(handshakeRequest(t, "tok-q", "Bearer tok-h", "tok-c"), "rt")
	assert.Equal(t, "tok-q", m.Token)
	assert.Equal(t, "Bearer tok-h", m.Authorization)
	assert.Equal(t, "tok-c", m.Cookie)

	// Only the configured cookie name is read.
	m = credentialMaterial(handshakeRequest(t, "", "", "tok-c"), "other")
	assert.Empty(t, m.Cookie)

	m = credentialMaterial(handshakeRequest(t, "", "", ""), "rt")
	assert.Equal(t, "", m.Token)
	assert.Equal(t, "", m.Authorization)
	assert.Equal(t, "", m.Cookie)
}

func TestWSClientTrySendBackpressure(t *testing.T) {
	c := newWSClient("c1", nil, 2)

	require.NoError(t, c.TrySend(core.Frame("a")))
	require.NoError(t, c.TrySend(core.Frame("b")))
	assert.ErrorIs(t, c.TrySend(core.Frame("c")), core.ErrBackpressure)

	// Draining frees the slot again.
	<-c.send
	assert.NoError(t, c.TrySend(core.Frame("d")))
}

func TestWSClientStateMachine(t *testing.T) {
	c := newWSClient("c1", nil, 1)

	assert.True(t, c.is(stateConnecting))
	require.True(t, c.advance(stateConnecting, stateAuthenticating))
	require.True(t, c.advance(stateAuthenticating, stateActive))

	// Only one of two racing teardowns wins the transition.
	assert.True(t, c.advance(stateActive, stateClosing))
	assert.False(t, c.advance(stateActive, stateClosing))
}

func TestChatRateLimiter(t *testing.T) {
	rl := newChatRateLimiter(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("alice"), "attempt %d", i)
	}
	assert.False(t, rl.Allow("alice"))

	// Separate users have separate windows.
	assert.True(t, rl.Allow("bob"))

	// The window slides.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("alice"))
}
