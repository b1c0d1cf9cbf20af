// Package server exposes the transport surface: telephony webhooks, the
// dashboard API, and the websocket audio stream feeding the session
// registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	sessionx "github.com/calyhq/caly-voice-agent/call/session"
	storex "github.com/calyhq/caly-voice-agent/store"
)

type Config struct {
	Host            string        `split_words:"true" default:"0.0.0.0"`
	Port            int           `split_words:"true" default:"8080"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

type Server struct {
	cfg      Config
	registry *sessionx.Registry
	db       *storex.DB
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

func New(cfg Config, registry *sessionx.Registry, db *storex.DB) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		registry: registry,
		db:       db,
		engine:   gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	s.engine.Use(gin.Recovery(), cors.Default(), requestLogger())
	s.routes()
	return s
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	s.engine.POST("/webhooks/telephony/call-start", s.handleCallStart)
	s.engine.POST("/webhooks/telephony/call-end", s.handleCallEnd)

	api := s.engine.Group("/api")
	api.GET("/calls", s.handleListCalls)
	api.GET("/calls/:id", s.handleGetCall)
	api.GET("/calls/:id/actions", s.handleListActions)

	s.engine.GET("/audio", s.handleAudio)
}

// Run serves until ctx is cancelled, then drains active sessions and
// shuts the HTTP server down.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	for _, callID := range s.registry.ActiveCallIDs() {
		s.registry.Destroy(shutdownCtx, callID)
	}

	return httpServer.Shutdown(shutdownCtx)
}
