// Package websocket streams relayed session events to UI clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/actwatch/internal/pubsub"
	"github.com/nfrund/actwatch/internal/topicmgr"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
)

type client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	patterns []string
}

func (c *client) wants(topic string) bool {
	if len(c.patterns) == 0 {
		return true
	}
	for _, p := range c.patterns {
		if topicmgr.Match(p, topic) {
			return true
		}
	}
	return false
}

type outbound struct {
	topic string
	data  []byte
}

// Stream fans bus messages out to connected websocket clients. A client whose
// send buffer is full misses messages rather than slowing the others.
type Stream struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	broadcast  chan outbound
	done       chan struct{}
}

// NewStream creates a stream. Call Run before accepting connections.
func NewStream(logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default().With("component", "stream")
	}
	return &Stream{
		logger:     logger,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan outbound, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Subscribe forwards every message on topics to the connected clients.
func (s *Stream) Subscribe(ctx context.Context, sub pubsub.Subscriber, topics ...string) error {
	for _, topic := range topics {
		if err := sub.Subscribe(ctx, topic, s.forward); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) forward(ctx context.Context, msg pubsub.Message) error {
	data, err := json.Marshal(Message{Type: msg.Topic, Payload: msg.Payload})
	if err != nil {
		return err
	}
	select {
	case s.broadcast <- outbound{topic: msg.Topic, data: data}:
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}

// Run manages registration and broadcasting until ctx is done, then closes
// every client.
func (s *Stream) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for c := range s.clients {
				delete(s.clients, c)
				close(c.send)
			}
			s.mu.Unlock()
			return

		case c := <-s.register:
			s.mu.Lock()
			s.clients[c] = struct{}{}
			s.mu.Unlock()
			s.logger.Info("Stream client connected", "client_id", c.id, "patterns", c.patterns)

		case c := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[c]; ok {
				delete(s.clients, c)
				close(c.send)
				s.logger.Info("Stream client disconnected", "client_id", c.id)
			}
			s.mu.Unlock()

		case msg := <-s.broadcast:
			s.mu.RLock()
			for c := range s.clients {
				if !c.wants(msg.topic) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					s.logger.Warn("Client send channel full, dropping message", "client_id", c.id, "topic", msg.topic)
				}
			}
			s.mu.RUnlock()
		}
	}
}

// Clients returns the number of connected clients.
func (s *Stream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handler upgrades a request to a stream connection. The optional "topics"
// query parameter is a comma list of topic patterns such as "cooldown.*".
func (s *Stream) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var patterns []string
		if raw := c.QueryParam("topics"); raw != "" {
			for _, p := range strings.Split(raw, ",") {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				if err := topicmgr.Default().ValidatePattern(p); err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, err.Error())
				}
				patterns = append(patterns, p)
			}
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // local overlay pages load from file:// or other ports
		})
		if err != nil {
			s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		cl := &client{
			id:       uuid.NewString(),
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
			patterns: patterns,
		}
		select {
		case s.register <- cl:
		case <-s.done:
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return nil
		}

		go s.writePump(cl)
		s.readPump(cl)
		return nil
	}
}

// readPump discards client messages and unregisters the client when the
// connection ends.
func (s *Stream) readPump(c *client) {
	defer func() {
		select {
		case s.unregister <- c:
		case <-s.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				s.logger.Debug("WebSocket read ended", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

func (s *Stream) writePump(c *client) {
	defer c.conn.Close(websocket.StatusNormalClosure, "")
	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			s.logger.Warn("WebSocket write error", "client_id", c.id, "error", err)
			return
		}
	}
}
