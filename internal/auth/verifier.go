// Package auth verifies the signed handshake credential a client presents
// when opening a gateway connection.
//
// Two credential classes exist, each with its own HMAC key: short-lived
// access tokens (explicit token field or Authorization header) and
// long-lived refresh tokens (named cookie). A token is accepted only when
// its signature verifies against the key of the channel it arrived on AND
// its class claim matches that channel. An access token smuggled into the
// cookie slot is rejected even if its signature happens to verify.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkeye/Pulse/internal/domain"
)

type Reason int

const (
	// NoCredential: no token in any handshake source.
	NoCredential Reason = iota
	// Invalid: bad signature, expired, malformed, or wrong class for the
	// channel it arrived on.
	Invalid
	// ServerMisconfigured: signing key material missing. Fatal at startup,
	// never a per-connection condition.
	ServerMisconfigured
)

func (r Reason) String() string {
	switch r {
	case NoCredential:
		return "no credential"
	case Invalid:
		return "invalid credential"
	case ServerMisconfigured:
		return "server misconfigured"
	default:
		return "unknown"
	}
}

// Error is the handshake-time failure. Connections rejected with it never
// reach the Active state and are never registered anywhere.
type Error struct {
	Reason Reason
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.cause)
	}
	return "auth: " + e.Reason.String()
}

func (e *Error) Unwrap() error { return e.cause }

// ReasonOf extracts the auth failure reason; ok is false for non-auth errors.
func ReasonOf(err error) (Reason, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason, true
	}
	return 0, false
}

// Class tags a credential as short-lived (access) or long-lived (refresh).
type Class string

const (
	ClassAccess  Class = "access"
	ClassRefresh Class = "refresh"
)

// Claims is the token payload: subject (user id), expiry, and the class the
// token was minted for.
type Claims struct {
	Class string `json:"cls"`
	jwt.RegisteredClaims
}

// Material is everything a handshake may carry. Sources are tried in fixed
// priority order (explicit token, then bearer header, then cookie) and only
// the first present one is used.
type Material struct {
	Token         string // explicit token field (ws query parameter)
	Authorization string // raw Authorization header value
	Cookie        string // named refresh-cookie value
}

func (m Material) first() (raw string, class Class, err error) {
	if t := strings.TrimSpace(m.Token); t != "" {
		return t, ClassAccess, nil
	}
	if h := strings.TrimSpace(m.Authorization); h != "" {
		const bearer = "bearer "
		if len(h) > len(bearer) && strings.EqualFold(h[:len(bearer)], bearer) {
			return strings.TrimSpace(h[len(bearer):]), ClassAccess, nil
		}
		// Credential material was presented, just in a scheme we do not
		// speak. It still shadows the cookie slot.
		return "", "", &Error{Reason: Invalid, cause: fmt.Errorf("unsupported authorization scheme")}
	}
	if c := strings.TrimSpace(m.Cookie); c != "" {
		return c, ClassRefresh, nil
	}
	return "", "", &Error{Reason: NoCredential}
}

// Verifier authenticates handshake material against the two signing keys.
type Verifier struct {
	accessKey  []byte
	refreshKey []byte
}

// NewVerifier fails closed when either key is missing.
func NewVerifier(accessKey, refreshKey []byte) (*Verifier, error) {
	if len(accessKey) == 0 || len(refreshKey) == 0 {
		return nil, &Error{Reason: ServerMisconfigured, cause: fmt.Errorf("signing key missing")}
	}
	return &Verifier{accessKey: accessKey, refreshKey: refreshKey}, nil
}

// Authenticate resolves the handshake material to a user id, or rejects.
func (v *Verifier) Authenticate(m Material) (domain.UserID, error) {
	raw, class, err := m.first()
	if err != nil {
		return "", err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// HMAC family only; anything else (incl. alg=none) fails here.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return v.keyFor(class), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", &Error{Reason: Invalid, cause: err}
	}
	if Class(claims.Class) != class {
		return "", &Error{Reason: Invalid, cause: fmt.Errorf("credential class %q not allowed on %s channel", claims.Class, class)}
	}
	if claims.Subject == "" {
		return "", &Error{Reason: Invalid, cause: fmt.Errorf("missing subject")}
	}
	return domain.UserID(claims.Subject), nil
}

func (v *Verifier) keyFor(class Class) []byte {
	if class == ClassRefresh {
		return v.refreshKey
	}
	return v.accessKey
}

// Issue mints a signed token of the given class. Used by tests and by ops
// tooling; the production login path lives in the external identity service
// and only shares the key material.
func Issue(key []byte, class Class, user domain.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Class: string(class),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
