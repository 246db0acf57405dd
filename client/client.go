// Package client is the Go-side contract for gateway consumers: dial with
// an access token, register listeners per event type, and let Run keep the
// connection alive with bounded, increasing-delay reconnects. A dropped
// connection is not an error event; the client just reconnects with fresh
// credentials.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler receives the raw payload of one inbound event.
type Handler func(data []byte)

type Options struct {
	// URL of the gateway ws endpoint, e.g. ws://host:8080/ws.
	URL string
	// TokenFunc yields a fresh access token per dial attempt. Re-presenting
	// a rejected credential is pointless; callers should mint or refresh.
	TokenFunc func() (string, error)
	// MaxRetries bounds the dial attempts per reconnect cycle (default 5).
	MaxRetries uint64
	// DialTimeout bounds one dial attempt (default 10s).
	DialTimeout time.Duration
}

type Client struct {
	opts Options

	mu       sync.RWMutex
	handlers map[string][]Handler

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func New(opts Options) *Client {
	return &Client{
		opts:     opts,
		handlers: make(map[string][]Handler),
	}
}

// On registers a listener for an event type. Multiple listeners per type
// are invoked in registration order.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// Send marshals and writes one event to the gateway.
func (c *Client) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	return c.conn.WriteJSON(v)
}

// Run connects and pumps events until ctx is cancelled. Every time the
// transport drops it reconnects with exponential backoff; when the bounded
// attempts are exhausted Run returns the last dial error.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.connect(ctx); err != nil {
			return err
		}
		err := c.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("module", "client").Msg("connection lost, reconnecting")
	}
}

func (c *Client) connect(ctx context.Context) error {
	dial := func() error {
		token, err := c.opts.TokenFunc()
		if err != nil {
			return backoff.Permanent(err)
		}
		u, err := url.Parse(c.opts.URL)
		if err != nil {
			return backoff.Permanent(err)
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = c.dialTimeout()
		conn, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			log.Debug().Err(err).Str("module", "client").Msg("dial failed")
			return err
		}
		c.writeMu.Lock()
		c.conn = conn
		c.writeMu.Unlock()
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries()), ctx)
	return backoff.Retry(dial, b)
}

func (c *Client) listen(ctx context.Context) error {
	c.writeMu.Lock()
	conn := c.conn
	c.writeMu.Unlock()
	defer func() {
		_ = conn.Close()
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			log.Debug().Err(err).Str("module", "client").Msg("bad frame")
			continue
		}
		c.mu.RLock()
		hs := c.handlers[env.Type]
		c.mu.RUnlock()
		for _, h := range hs {
			h(data)
		}
	}
}

func (c *Client) maxRetries() uint64 {
	if c.opts.MaxRetries > 0 {
		return c.opts.MaxRetries
	}
	return 5
}

func (c *Client) dialTimeout() time.Duration {
	if c.opts.DialTimeout > 0 {
		return c.opts.DialTimeout
	}
	return 10 * time.Second
}
