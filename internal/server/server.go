// Package server exposes the refresh pipeline over a local HTTP API. It is
// the boundary layer: whatever happens inside a refresh, handlers answer
// with a complete report, a labeled degraded report, or a structured error
// payload.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/ttc_positions/internal/pipeline"
	"github.com/eddiefleurent/ttc_positions/internal/report"
	"github.com/eddiefleurent/ttc_positions/internal/update"
)

// AppName is the product name reported by the status endpoint.
const AppName = "TTC Positions Report"

// Refresher runs one refresh cycle. The concrete pipeline satisfies this.
type Refresher interface {
	Refresh(ctx context.Context) (*report.Report, error)
}

// UpdateChecker looks up whether a newer release exists.
type UpdateChecker interface {
	Check(ctx context.Context) (*update.Info, error)
}

// Server is the local HTTP API for the positions report.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	refresh Refresher
	updates UpdateChecker
	logger  *logrus.Logger
	port    int
	version string
}

// Config holds server settings.
type Config struct {
	Port    int
	Version string
}

// NewServer creates the API server. updates may be nil when update checks
// are disabled.
func NewServer(cfg Config, refresh Refresher, updates UpdateChecker, logger *logrus.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		refresh: refresh,
		updates: updates,
		logger:  logger,
		port:    cfg.Port,
		version: cfg.Version,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/api/data", s.handleData)
	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Get("/api/update/check", s.handleUpdateCheck)
	s.router.Get("/health", s.handleHealth)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start begins serving on the configured port, bound to loopback only.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Infof("Starting report server on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	rep, err := s.refresh.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrRefreshInFlight) {
			s.writeJSON(w, http.StatusConflict, map[string]string{
				"error": "A refresh is already running. Please wait for it to finish.",
			})
			return
		}
		// context cancellation: the client went away
		s.logger.WithError(err).Debug("refresh aborted")
		return
	}

	status := http.StatusOK
	if rep.Error != "" {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, rep)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"app_name":    AppName,
		"version":     s.version,
		"market_open": isMarketOpen(time.Now()),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		s.writeJSON(w, http.StatusOK, update.Info{Available: false, CurrentVersion: s.version})
		return
	}
	info, err := s.updates.Check(r.Context())
	if err != nil {
		s.logger.WithError(err).Warn("update check failed")
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"available": false,
			"message":   "Couldn't check for updates. No worries, we'll try again next time.",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// isMarketOpen reports whether the US equity market is in its regular
// session at the given time.
func isMarketOpen(now time.Time) bool {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*60*60)
	}
	nyTime := now.In(loc)

	if nyTime.Weekday() == time.Saturday || nyTime.Weekday() == time.Sunday {
		return false
	}

	totalMinutes := nyTime.Hour()*60 + nyTime.Minute()
	marketOpen := 9*60 + 30
	marketClose := 16 * 60

	return totalMinutes >= marketOpen && totalMinutes < marketClose
}
