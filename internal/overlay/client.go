// Package overlay connects to the OverlayPlugin websocket feed and forwards
// log lines and status messages into a session.
package overlay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/nfrund/actwatch/internal/event"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// Sink receives what the feed produces. *session.Engine satisfies it.
type Sink interface {
	HandleLine(line string) event.Event
	HandleEvent(ev event.Event)
}

// Client manages the websocket connection to OverlayPlugin.
type Client struct {
	url      string
	events   []string
	dialer   *websocket.Dialer
	logger   *slog.Logger
	now      func() time.Time
	minDelay time.Duration
	maxDelay time.Duration

	writeMu   sync.Mutex // serialises subscribe and ping writes
	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEvents overrides the subscription list.
func WithEvents(events ...string) Option {
	return func(c *Client) {
		if len(events) > 0 {
			c.events = events
		}
	}
}

// WithClock sets the time source used to stamp status messages.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithReconnectDelay bounds the exponential reconnect delay.
func WithReconnectDelay(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 && max >= base {
			c.minDelay, c.maxDelay = base, max
		}
	}
}

// NewClient creates a client for the given websocket URL.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:      url,
		events:   DefaultEvents,
		dialer:   websocket.DefaultDialer,
		logger:   slog.Default().With("component", "overlay"),
		now:      time.Now,
		minDelay: reconnectBaseDelay,
		maxDelay: reconnectMaxDelay,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready is closed once the first subscription has been sent.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Run connects, subscribes and forwards messages to sink until ctx is done,
// reconnecting with exponential backoff whenever the connection drops.
func (c *Client) Run(ctx context.Context, sink Sink) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.minDelay
	b.MaxInterval = c.maxDelay
	b.Reset()

	for {
		err := c.session(ctx, sink, b)
		if ctx.Err() != nil {
			return nil
		}
		delay := b.NextBackOff()
		c.logger.Warn("Overlay connection lost", "url", c.url, "error", err, "retry_in", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (c *Client) session(ctx context.Context, sink Sink, b *backoff.ExponentialBackOff) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = conn.WriteJSON(subscribeRequest{Call: "subscribe", Events: c.events})
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	b.Reset()
	c.readyOnce.Do(func() { close(c.ready) })
	c.logger.Info("Connected to OverlayPlugin", "url", c.url, "events", c.events)

	go c.pingLoop(connCtx, conn)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		line, ev, err := decodeMessage(data, c.now())
		switch {
		case err != nil:
			c.logger.Warn("Dropping invalid overlay message", "error", err)
		case line != "":
			sink.HandleLine(line)
		case ev != nil:
			sink.HandleEvent(ev)
		}
	}
}

// pingLoop sends periodic pings until ctx is cancelled or a write fails.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("Overlay ping failed", "error", err)
				}
				return
			}
		}
	}
}
