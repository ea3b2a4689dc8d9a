// Package server exposes the HTTP ingestion and management API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dr4g00n/TG-monitor/internal/ingest"
	"github.com/dr4g00n/TG-monitor/internal/registry"
)

// APIResponse is the envelope for every JSON endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// HealthChecker reports whether a downstream dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
	Name() string
}

// healthCacheTTL bounds how often /health probes the real backends; a
// hosted-completion probe per liveness poll would cost money and up to
// the probe timeout in latency.
const healthCacheTTL = 30 * time.Second

// Server wires the echo router to the gatekeeper and registry.
type Server struct {
	echo     *echo.Echo
	gate     *ingest.Gatekeeper
	registry *registry.Registry
	checkers []HealthChecker
	logger   *zap.Logger
	addr     string

	healthMu   sync.Mutex
	healthDeps map[string]bool
	healthAt   time.Time
}

func New(addr string, gate *ingest.Gatekeeper, reg *registry.Registry, checkers []HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		gate:     gate,
		registry: reg,
		checkers: checkers,
		logger:   logger.Named("server"),
		addr:     addr,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.Use(s.requestLogger)

	s.echo.POST("/events", s.handleEvent)

	s.echo.GET("/channels", s.listChannels)
	s.echo.POST("/channels", s.addChannel)
	s.echo.PUT("/channels", s.replaceChannels)
	s.echo.DELETE("/channels/:id", s.removeChannel)
	s.echo.GET("/channels/:id/check", s.checkChannel)

	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Debug("request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("elapsed", time.Since(start)),
		)
		return err
	}
}

func (s *Server) handleEvent(c echo.Context) error {
	var raw ingest.RawEvent
	if err := c.Bind(&raw); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "invalid request body",
		})
	}

	_, err := s.gate.Accept(raw)
	switch {
	case errors.Is(err, ingest.ErrMalformedEvent):
		return c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: err.Error(),
		})
	case errors.Is(err, ingest.ErrUnauthorizedSource):
		// 200 on purpose: the collector should not retry these.
		return c.JSON(http.StatusOK, APIResponse{
			Success: false,
			Message: fmt.Sprintf("channel %d is not monitored", raw.SourceID),
		})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, APIResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "event accepted",
	})
}

type channelRequest struct {
	ChannelID   int64  `json:"channel_id"`
	ChannelName string `json:"channel_name"`
}

type channelsRequest struct {
	ChannelIDs []int64 `json:"channel_ids"`
}

func (s *Server) listChannels(c echo.Context) error {
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "monitored channels",
		Data:    s.registry.List(),
	})
}

func (s *Server) addChannel(c echo.Context) error {
	var req channelRequest
	if err := c.Bind(&req); err != nil || req.ChannelID == 0 {
		return c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "channel_id is required",
		})
	}
	s.registry.Add(req.ChannelID, req.ChannelName)
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: fmt.Sprintf("channel %d added", req.ChannelID),
	})
}

func (s *Server) replaceChannels(c echo.Context) error {
	var req channelsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "channel_ids is required",
		})
	}
	s.registry.Replace(req.ChannelIDs)
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: fmt.Sprintf("monitoring %d channels", s.registry.Len()),
	})
}

func (s *Server) removeChannel(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "channel id must be an integer",
		})
	}
	if !s.registry.Remove(id) {
		return c.JSON(http.StatusNotFound, APIResponse{
			Success: false,
			Message: fmt.Sprintf("channel %d is not monitored", id),
		})
	}
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: fmt.Sprintf("channel %d removed", id),
	})
}

func (s *Server) checkChannel(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "channel id must be an integer",
		})
	}
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "check complete",
		Data: map[string]interface{}{
			"channel_id": id,
			"monitored":  s.registry.Contains(id),
		},
	})
}

// handleHealth is a liveness probe: 200 whenever the process accepts
// requests. Dependency state is advisory detail in the payload,
// refreshed at most once per healthCacheTTL.
func (s *Server) handleHealth(c echo.Context) error {
	deps := s.dependencyHealth(c.Request().Context())

	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "ok",
		Data: map[string]interface{}{
			"channels":     s.registry.Len(),
			"dependencies": deps,
		},
	})
}

func (s *Server) dependencyHealth(ctx context.Context) map[string]bool {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	if s.healthDeps != nil && time.Since(s.healthAt) < healthCacheTTL {
		return s.healthDeps
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	deps := make(map[string]bool, len(s.checkers))
	for _, hc := range s.checkers {
		deps[hc.Name()] = hc.HealthCheck(ctx)
	}
	s.healthDeps = deps
	s.healthAt = time.Now()
	return deps
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
