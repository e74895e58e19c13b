package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"

	"main/internal/state"
	"main/pkg/exception"
)

// ServerConfig wires the health endpoint.
type ServerConfig struct {
	Port         int
	SnapshotPath string
	Registry     *prometheus.Registry
}

// Server exposes fleet health over HTTP. When SnapshotPath is set the
// health payload embeds the trading worker's latest portfolio snapshot,
// so one endpoint answers both "are the processes up" and "what is the
// book doing".
type Server struct {
	sup  *Supervisor
	cfg  ServerConfig
	http *http.Server
}

type healthResponse struct {
	Health
	Portfolio *state.Snapshot `json:"portfolio,omitempty"`
}

// NewServer builds the HTTP server around a supervisor.
func NewServer(sup *Supervisor, cfg ServerConfig) *Server {
	s := &Server{sup: sup, cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.HandleFunc("GET /agents/{name}", s.handleAgent)
	if cfg.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() {
	go func() {
		logs.Infof("supervisor: health endpoint on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("supervisor: health server: %v", err)
		}
	}()
}

// Shutdown stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.sup.HealthSnapshot()
	response := healthResponse{Health: health}

	if s.cfg.SnapshotPath != "" {
		if snap, err := state.Read(s.cfg.SnapshotPath); err == nil {
			response.Portfolio = &snap
		}
	}

	code := http.StatusOK
	if health.Degraded {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sup.HealthSnapshot().Workers)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	worker, err := s.sup.WorkerByName(name)
	if err != nil {
		if errors.Is(err, exception.ErrUnknownWorker) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown worker: " + name})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logs.Warnf("supervisor: encode response: %v", err)
	}
}
