package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Pulse/internal/auth"
	"github.com/dkeye/Pulse/internal/domain"
)

var (
	accessKey  = []byte("access-key-0123456789abcdef")
	refreshKey = []byte("refresh-key-0123456789abcdef")
)

func newVerifier(t *testing.T) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(accessKey, refreshKey)
	require.NoError(t, err)
	return v
}

func mint(t *testing.T, key []byte, class auth.Class, user domain.UserID, ttl time.Duration) string {
	t.Helper()
	tok, err := auth.Issue(key, class, user, ttl)
	require.NoError(t, err)
	return tok
}

func TestAuthenticateAccessToken(t *testing.T) {
	v := newVerifier(t)
	tok := mint(t, accessKey, auth.ClassAccess, "alice", time.Minute)

	user, err := v.Authenticate(auth.Material{Token: tok})
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), user)
}

func TestAuthenticateBearerHeader(t *testing.T) {
	v := newVerifier(t)
	tok := mint(t, accessKey, auth.ClassAccess, "alice", time.Minute)

	user, err := v.Authenticate(auth.Material{Authorization: "Bearer " + tok})
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), user)

	// Scheme is case-insensitive.
	user, err = v.Authenticate(auth.Material{Authorization: "bearer " + tok})
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), user)
}

func TestAuthenticateRefreshCookie(t *testing.T) {
	v := newVerifier(t)
	tok := mint(t, refreshKey, auth.ClassRefresh, "bob", time.Hour)

	user, err := v.Authenticate(auth.Material{Cookie: tok})
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("bob"), user)
}

func TestAuthenticateSourcePriority(t *testing.T) {
	v := newVerifier(t)
	good := mint(t, accessKey, auth.ClassAccess, "alice", time.Minute)

	// The explicit token wins; the garbage in lower-priority slots is never
	// looked at.
	user, err := v.Authenticate(auth.Material{
		Token:         good,
		Authorization: "Bearer not-a-token",
		Cookie:        "not-a-token",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), user)

	// A present but malformed header shadows a valid cookie.
	refresh := mint(t, refreshKey, auth.ClassRefresh, "bob", time.Hour)
	_, err = v.Authenticate(auth.Material{
		Authorization: "Basic dXNlcjpwYXNz",
		Cookie:        refresh,
	})
	reason, ok := auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.Invalid, reason)
}

func TestAuthenticateUnsupportedScheme(t *testing.T) {
	v := newVerifier(t)

	// Material was presented, just in a scheme we do not speak; that is a
	// bad credential, not a missing one.
	for _, header := range []string{"Basic dXNlcjpwYXNz", "Digest abc", "Bearer"} {
		_, err := v.Authenticate(auth.Material{Authorization: header})
		reason, ok := auth.ReasonOf(err)
		require.True(t, ok, "header %q", header)
		assert.Equal(t, auth.Invalid, reason, "header %q", header)
	}
}

func TestAuthenticateNoCredential(t *testing.T) {
	v := newVerifier(t)

	_, err := v.Authenticate(auth.Material{})
	reason, ok := auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.NoCredential, reason)

	_, err = v.Authenticate(auth.Material{Token: "   "})
	reason, _ = auth.ReasonOf(err)
	assert.Equal(t, auth.NoCredential, reason)
}

func TestAuthenticateExpired(t *testing.T) {
	v := newVerifier(t)
	tok := mint(t, accessKey, auth.ClassAccess, "alice", -time.Minute)

	_, err := v.Authenticate(auth.Material{Token: tok})
	reason, ok := auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.Invalid, reason)
}

func TestAuthenticateWrongKey(t *testing.T) {
	v := newVerifier(t)
	tok := mint(t, []byte("some-other-key"), auth.ClassAccess, "alice", time.Minute)

	_, err := v.Authenticate(auth.Material{Token: tok})
	reason, ok := auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.Invalid, reason)
}

func TestAuthenticateTampered(t *testing.T) {
	v := newVerifier(t)
	tok := mint(t, accessKey, auth.ClassAccess, "alice", time.Minute)

	_, err := v.Authenticate(auth.Material{Token: tok + "x"})
	reason, ok := auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.Invalid, reason)
}

func TestAuthenticateClassChannelBinding(t *testing.T) {
	v := newVerifier(t)

	// Access token in the cookie slot: verified against the refresh key, so
	// the signature itself fails.
	access := mint(t, accessKey, auth.ClassAccess, "alice", time.Minute)
	_, err := v.Authenticate(auth.Material{Cookie: access})
	reason, ok := auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.Invalid, reason)

	// Refresh token on the access channel, same story in reverse.
	refresh := mint(t, refreshKey, auth.ClassRefresh, "alice", time.Hour)
	_, err = v.Authenticate(auth.Material{Token: refresh})
	reason, ok = auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.Invalid, reason)

	// Even a token signed with the channel's own key is rejected when its
	// class claim names the other channel.
	forged := mint(t, refreshKey, auth.ClassAccess, "alice", time.Hour)
	_, err = v.Authenticate(auth.Material{Cookie: forged})
	reason, ok = auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.Invalid, reason)
}

func TestAuthenticateMissingSubject(t *testing.T) {
	v := newVerifier(t)
	tok := mint(t, accessKey, auth.ClassAccess, "", time.Minute)

	_, err := v.Authenticate(auth.Material{Token: tok})
	reason, ok := auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.Invalid, reason)
}

func TestNewVerifierFailsClosed(t *testing.T) {
	_, err := auth.NewVerifier(nil, refreshKey)
	reason, ok := auth.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, auth.ServerMisconfigured, reason)

	_, err = auth.NewVerifier(accessKey, nil)
	require.Error(t, err)
}
