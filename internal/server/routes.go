package server

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/services/snapshot"
)

// retryAfterSeconds is sent with "not ready" responses
const retryAfterSeconds = 30

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Portfolio
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/refresh", s.handleRefresh)

	// Monitoring
	mux.HandleFunc("/api/status/scraper", s.handleRefreshStatus)
	mux.HandleFunc("/api/status/cache", s.handleCacheStats)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	if s.services.Events != nil {
		mux.HandleFunc("/api/ws/refresh", s.services.Events.ServeWS)
	}
	if s.services.Metrics != nil {
		mux.Handle("/metrics", s.services.Metrics)
	}
}

// handlePortfolio handles GET /api/portfolio. It never waits on a refresh.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap, err := s.services.Snapshots.Assemble(r.Context())
	if errors.Is(err, snapshot.ErrNoData) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		WriteError(w, http.StatusServiceUnavailable, "Portfolio data not loaded")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to assemble portfolio snapshot")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	WriteData(w, http.StatusOK, snap)
}

// handleRefresh handles POST /api/refresh. The cycle runs in the background;
// a request that finds one already running gets 409.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	started := s.services.Refresh.Trigger(r.Context())
	body := map[string]bool{"started": started}
	if !started {
		WriteJSON(w, http.StatusConflict, Response{
			Success: false,
			Data:    body,
			Message: "Refresh already in progress",
		})
		return
	}

	s.logger.Info().Msg("Refresh triggered via HTTP endpoint")
	WriteData(w, http.StatusAccepted, body)
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteData(w, http.StatusOK, s.services.Refresh.Status())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteData(w, http.StatusOK, s.services.Cache.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteData(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleDiagnostics reports process and subsystem counters.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats := s.services.Cache.Stats()
	subscribers := 0
	if s.services.Events != nil {
		subscribers = s.services.Events.Subscribers()
	}

	WriteData(w, http.StatusOK, map[string]interface{}{
		"version":           common.GetVersion(),
		"uptime_seconds":    int(time.Since(s.startupTime).Seconds()),
		"goroutines":        runtime.NumGoroutine(),
		"cache_entries":     stats.TotalEntries,
		"refresh_locked":    stats.RefreshLocked,
		"event_subscribers": subscribers,
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")
	WriteData(w, http.StatusOK, map[string]string{"status": "shutting down"})

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			select {
			case s.shutdownChan <- struct{}{}:
			default:
			}
		}()
	}
}
