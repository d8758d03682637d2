package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/actwatch/internal/domain"
	"github.com/nfrund/actwatch/internal/event"
	"github.com/nfrund/actwatch/internal/middleware"
)

// abilityView is an ability's state as served by the API.
type abilityView struct {
	event.AbilityState
	Segment   *int       `json:"segment,omitempty"`
	Cooling   int        `json:"cooling"`
	NextReady *time.Time `json:"nextReady,omitempty"`
}

func (s *Server) view(st event.AbilityState, now time.Time) abilityView {
	v := abilityView{AbilityState: st, Cooling: st.CoolingSlots(now)}
	if seg, ok := s.session.Tracker().Segment(st.Descriptor.Name); ok {
		v.Segment = &seg
	}
	if next, ok := st.NextReady(now); ok {
		v.NextReady = &next
	}
	return v
}

func (s *Server) registerRoutes() {
	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	api := s.E.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/abilities", s.handleAbilities)
	api.GET("/abilities/segment/:segment", s.handleSegment)

	if s.stream != nil {
		s.E.GET("/ws", s.stream.Handler(), middleware.RateLimiter(streamBurst))
	}
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.session.Status())
}

func (s *Server) handleAbilities(c echo.Context) error {
	now := s.now()
	states := s.session.Tracker().Snapshot()
	views := make([]abilityView, 0, len(states))
	for _, st := range states {
		views = append(views, s.view(st, now))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleSegment(c echo.Context) error {
	segment, err := strconv.Atoi(c.Param("segment"))
	if err != nil || segment < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "segment must be a non-negative integer")
	}

	st, ok := s.session.Tracker().BySegment(segment)
	if !ok {
		middleware.FromContext(c.Request().Context()).Warn("Segment not bound", "segment", segment)
		return fmt.Errorf("%w: %d", domain.ErrUnboundSegment, segment)
	}
	return c.JSON(http.StatusOK, s.view(st, s.now()))
}
