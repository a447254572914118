// Package server exposes a read-only JSON status API over the scanner and
// its storage.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/suncheck/weatheredge/internal/logger"
	"github.com/suncheck/weatheredge/internal/models"
)

// Reporter exposes the most recent cycle report.
type Reporter interface {
	LastReport() *models.CycleReport
}

// Store is the read surface of the status API.
type Store interface {
	RecentOpportunities(limit int) ([]models.Opportunity, error)
	OpenPositions() ([]models.Position, error)
	Cash(initial float64) (float64, error)
}

// Server serves the status API.
type Server struct {
	reporter Reporter
	store    Store
	bankroll float64
	httpSrv  *http.Server
}

// New creates a status server. bankroll seeds the portfolio cash value on
// first read.
func New(addr string, reporter Reporter, store Store, bankroll float64) *Server {
	s := &Server{reporter: reporter, store: store, bankroll: bankroll}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/report", s.handleReport)
		r.Get("/opportunities", s.handleOpportunities)
		r.Get("/portfolio", s.handlePortfolio)
	})
	return r
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	logger.Info("Status API listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	report := s.reporter.LastReport()
	if report == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	opportunities, err := s.store.RecentOpportunities(limit)
	if err != nil {
		logger.Error("Failed to list opportunities: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage error"})
		return
	}
	writeJSON(w, http.StatusOK, opportunities)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, _ *http.Request) {
	cash, err := s.store.Cash(s.bankroll)
	if err != nil {
		logger.Error("Failed to load cash: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage error"})
		return
	}
	positions, err := s.store.OpenPositions()
	if err != nil {
		logger.Error("Failed to load positions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage error"})
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}

	var committed float64
	for _, p := range positions {
		committed += p.Stake
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cash":           cash,
		"committed":      committed,
		"open_positions": positions,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}
