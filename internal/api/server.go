package api

import (
	"io"
	"net/http"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/obs"
	"main/internal/session"
)

// Server exposes the session control surface: REST routes, the websocket
// hub and the prometheus endpoint.
type Server struct {
	manager   *session.Manager
	hub       *Hub
	metrics   *obs.Metrics
	version   string
	startedAt time.Time
}

// NewServer wires the routes against an existing manager and hub.
func NewServer(manager *session.Manager, hub *Hub, metrics *obs.Metrics, version string) *Server {
	if version == "" {
		version = "unknown"
	}
	return &Server{
		manager:   manager,
		hub:       hub,
		metrics:   metrics,
		version:   version,
		startedAt: time.Now(),
	}
}

// Routes builds the handler tree.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session/start", s.handleStart)
	mux.HandleFunc("/api/session/stop", s.handleStop)
	mux.HandleFunc("/api/session/status", s.handleStatus)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.Handle("/ws", s.hub)
	return mux
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body for /api/session/start", map[string]any{"issues": []string{err.Error()}})
		return
	}

	var cfg session.Config
	if len(body) > 0 {
		if err := _json.Unmarshal(body, &cfg); err != nil {
			s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body for /api/session/start", map[string]any{"issues": []string{err.Error()}})
			return
		}
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body for /api/session/start", map[string]any{"issues": []string{err.Error()}})
		return
	}

	resp, err := s.manager.Start(r.Context(), cfg)
	if err != nil {
		logs.Errorf("session start failed, err: %+v", err)
		s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected error", map[string]any{})
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.manager.Stop())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.manager.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := s.manager.Status()
	s.writeJSON(w, http.StatusOK, HealthResponse{
		OK:                 true,
		UptimeSec:          int64(time.Since(s.startedAt).Seconds()),
		WsClientsConnected: s.hub.ClientCount(),
		Session:            HealthSession{State: string(status.State)},
		LastTickTs:         s.manager.LastTickTs(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, VersionResponse{OK: true, Version: s.version})
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string, data map[string]any) {
	s.writeJSON(w, status, session.ErrorMessage{
		Type:      "error",
		Ts:        time.Now().UnixMilli(),
		SessionID: s.manager.Status().SessionID,
		Scope:     "API",
		Code:      code,
		Message:   message,
		Data:      data,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := _json.Marshal(payload)
	if err != nil {
		logs.Errorf("response marshal failed, err: %+v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
