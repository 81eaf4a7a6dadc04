// Package server exposes the portfolio snapshot and monitoring endpoints
// over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/folio/internal/app"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// EventStream serves the refresh event WebSocket
type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	Subscribers() int
}

// Services are what the handlers read from
type Services struct {
	Snapshots interfaces.SnapshotAssembler
	Refresh   interfaces.RefreshCoordinator
	Cache     interfaces.CacheInspector
	Events    EventStream  // optional
	Metrics   http.Handler // optional
}

// Server wraps the HTTP server and the services it exposes.
type Server struct {
	config       *common.Config
	services     Services
	server       *http.Server
	logger       *common.Logger
	startupTime  time.Time
	shutdownChan chan struct{}
}

// SetShutdownChannel sets the channel that will be signaled when HTTP shutdown is requested.
func (s *Server) SetShutdownChannel(ch chan struct{}) {
	s.shutdownChan = ch
}

// NewServer creates the HTTP server for an App.
func NewServer(a *app.App) *Server {
	return newServer(a.Config, a.Logger, a.StartupTime, Services{
		Snapshots: a.Snapshots,
		Refresh:   a.Refresh,
		Cache:     a.Cache,
		Events:    a.Events,
		Metrics:   a.Metrics.Handler(),
	})
}

func newServer(config *common.Config, logger *common.Logger, startupTime time.Time, services Services) *Server {
	s := &Server{
		config:      config,
		services:    services,
		logger:      logger,
		startupTime: startupTime,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, logger)

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: the event stream is long-lived
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
