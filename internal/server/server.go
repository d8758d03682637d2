// Package server exposes session state and the event stream over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/actwatch/internal/ability"
	"github.com/nfrund/actwatch/internal/middleware"
	"github.com/nfrund/actwatch/internal/session"
	"github.com/nfrund/actwatch/internal/websocket"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// streamBurst is the number of stream upgrades a client may make at once.
const streamBurst = 20

// Session is the state the API reports on. *session.Engine satisfies it.
type Session interface {
	Status() session.Status
	Tracker() *ability.Tracker
}

// Server holds the echo instance and the state it serves.
type Server struct {
	E       *echo.Echo
	session Session
	stream  *websocket.Stream
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the time used to compute ability readiness.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a server. stream may be nil, in which case /ws is not served.
func New(sess Session, stream *websocket.Stream, opts ...Option) *Server {
	s := &Server{
		E:       echo.New(),
		session: sess,
		stream:  stream,
		now:     time.Now,
		logger:  slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.E.HideBanner = true
	s.E.HidePort = true
	s.E.Use(echomw.RequestID())
	s.E.Use(middleware.Logger)
	s.E.Use(middleware.RequestLog())
	s.E.Use(echomw.Recover())
	setupErrorHandling(s.E)

	s.registerRoutes()
	return s
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := s.E.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	return s.E.Shutdown(shutdownCtx)
}
