package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fentz26/caretaker/internal/models"
	"github.com/rs/zerolog"
)

// Version is reported by /health. The command sets it at build time.
var Version = "0.1.0"

// Server provides the HTTP API for caretaker.
type Server struct {
	service *Service
	addr    string
	server  *http.Server
	logger  zerolog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string, logger zerolog.Logger) *Server {
	return &Server{
		service: service,
		addr:    addr,
		logger:  logger.With().Str("component", "controlplane").Logger(),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("GET /fleet", s.handleFleet)
	mux.HandleFunc("GET /accounts/{id}/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /accounts/{id}/decisions", s.handleDecisions)
	mux.HandleFunc("GET /accounts/{id}/errors", s.handleErrors)

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info().Str("addr", s.addr).Msg("starting control plane")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK       bool   `json:"ok"`
	DB       string `json:"db"`
	Version  string `json:"version"`
	Time     string `json:"time"`
	Monitors int    `json:"monitors"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		OK:       true,
		DB:       "ok",
		Version:  Version,
		Time:     time.Now().UTC().Format(time.RFC3339),
		Monitors: len(s.service.Fleet().Monitors),
	}
	status := http.StatusOK
	if err := s.service.Ping(r.Context()); err != nil {
		health.OK = false
		health.DB = err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, health)
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Fleet())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.LatestSnapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.service.Decisions(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []models.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.Errors(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []models.ErrorRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidAccount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error().Err(err).Msg("request failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
