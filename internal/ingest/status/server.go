// Package status serves the read-only liveness, status and metrics endpoints.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusHealthy = "healthy"
	StatusError   = "error"
)

// Store is the part of the edge store the status endpoint reads.
type Store interface {
	LatestUpdate(ctx context.Context) (*time.Time, error)
}

// Config holds status server configuration
type Config struct {
	Port           int
	AllowedOrigins []string
	QueryTimeout   time.Duration
}

// Server provides HTTP endpoints for status monitoring.
type Server struct {
	cfg    Config
	store  Store
	server *http.Server
	log    *slog.Logger
	now    func() time.Time
}

// NewServer creates a new status server.
func NewServer(cfg Config, store Store) *Server {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:   cfg,
		store: store,
		log:   slog.Default(),
		now:   time.Now,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/", s.handleLiveness)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start starts the HTTP server. It returns nil after Stop.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve serves on an existing listener. It returns nil after Stop.
func (s *Server) Serve(l net.Listener) error {
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type livenessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// statusResponse always carries last_update, null for an empty store.
type statusResponse struct {
	Status            string     `json:"status"`
	DatabaseConnected bool       `json:"database_connected"`
	LastUpdate        *time.Time `json:"last_update"`
	Timestamp         time.Time  `json:"timestamp"`
}

type statusErrorResponse struct {
	Status            string    `json:"status"`
	DatabaseConnected bool      `json:"database_connected"`
	Error             string    `json:"error"`
	Timestamp         time.Time `json:"timestamp"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, livenessResponse{
		Status:    StatusHealthy,
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	latest, err := s.store.LatestUpdate(ctx)
	if err != nil {
		s.log.Warn("Status query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, statusErrorResponse{
			Status:            StatusError,
			DatabaseConnected: false,
			Error:             err.Error(),
			Timestamp:         s.now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:            StatusHealthy,
		DatabaseConnected: true,
		LastUpdate:        latest,
		Timestamp:         s.now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Debug("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"request_id", chimiddleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
