package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/icsrange/netsim/pkg/gateway"
	"github.com/icsrange/netsim/pkg/logging"
	"github.com/icsrange/netsim/pkg/metrics"
	"github.com/icsrange/netsim/pkg/seclog"
	"github.com/icsrange/netsim/pkg/topology"
)

// StatusServer exposes the operational state of the virtual network over
// HTTP for operators and the terminal dashboard
type StatusServer struct {
	store     *topology.Store
	manager   *gateway.Manager
	security  *seclog.Recorder
	metrics   *metrics.Registry
	logger    logging.Logger
	startTime time.Time
	version   string
}

// StatusConfig carries the dependencies of the status server
type StatusConfig struct {
	Store    *topology.Store
	Manager  *gateway.Manager
	Security *seclog.Recorder
	Metrics  *metrics.Registry
	Logger   logging.Logger
	Version  string
}

// NewStatusServer creates a status server over the running simulation
func NewStatusServer(cfg StatusConfig) *StatusServer {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &StatusServer{
		store:     cfg.Store,
		manager:   cfg.Manager,
		security:  cfg.Security,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With(logging.Component("status-server")),
		startTime: time.Now(),
		version:   cfg.Version,
	}
}

// Handler returns the status server's HTTP handler
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/summary", s.handleSummary)
	mux.HandleFunc("/api/v1/topology", s.handleTopology)
	mux.HandleFunc("/api/v1/sessions", s.handleSessions)
	mux.HandleFunc("/api/v1/sessions/", s.handleSessionAction)
	mux.HandleFunc("/api/v1/events", s.handleEvents)

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return s.loggingMiddleware(mux)
}

// loggingMiddleware logs each request with method, path and duration
func (s *StatusServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("duration", time.Since(start)))
	})
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).String(),
	})
}

func (s *StatusServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := SummaryResponse{
		Status:  "running",
		Version: s.version,
		Uptime:  time.Since(s.startTime).String(),
	}
	if s.store != nil {
		response.Topology = s.store.Summary()
	}
	if s.manager != nil {
		response.Gateway = s.manager.Summary(false)
	}
	if s.security != nil {
		response.SecurityEvents = s.security.EventCount()
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *StatusServer) handleTopology(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Topology store not available")
		return
	}

	response := TopologyResponse{
		Networks: make([]NetworkView, 0),
		Services: make([]ServiceView, 0),
	}
	for _, nw := range s.store.Networks() {
		response.Networks = append(response.Networks, NetworkView{
			Name:          nw.Name,
			Zone:          nw.Zone,
			SecurityLevel: nw.SecurityLevel,
			Devices:       s.store.NetworkDevices(nw.Name),
		})
	}
	sort.Slice(response.Networks, func(i, j int) bool {
		return response.Networks[i].Name < response.Networks[j].Name
	})

	for key, protocol := range s.store.AllServices() {
		response.Services = append(response.Services, ServiceView{
			Device:   key.Device,
			Port:     key.Port,
			Protocol: protocol,
		})
	}
	sort.Slice(response.Services, func(i, j int) bool {
		if response.Services[i].Device == response.Services[j].Device {
			return response.Services[i].Port < response.Services[j].Port
		}
		return response.Services[i].Device < response.Services[j].Device
	})

	s.respondJSON(w, http.StatusOK, response)
}

func (s *StatusServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.manager == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Gateway manager not available")
		return
	}

	sessions := s.manager.Sessions()
	if sessions == nil {
		sessions = make([]gateway.SessionInfo, 0)
	}
	s.respondJSON(w, http.StatusOK, sessions)
}

// handleSessionAction routes /api/v1/sessions/{id}/kill
func (s *StatusServer) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	if s.manager == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Gateway manager not available")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "kill" {
		s.respondError(w, http.StatusNotFound, "Unknown session action")
		return
	}
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := parts[0]
	killed := s.manager.KillConnection(sessionID)
	if !killed {
		s.respondJSON(w, http.StatusNotFound, KillResponse{SessionID: sessionID, Killed: false})
		return
	}
	s.respondJSON(w, http.StatusOK, KillResponse{SessionID: sessionID, Killed: true})
}

func (s *StatusServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.security == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Security event recorder not available")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	events := s.security.Recent(limit)
	if events == nil {
		events = make([]*seclog.Event, 0)
	}
	s.respondJSON(w, http.StatusOK, events)
}

func (s *StatusServer) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *StatusServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
