// Package httpapi serves the skill engine over a small JSON HTTP API,
// mirroring the MCP tool surface for callers that cannot speak the
// protocol: editors, curl, health checks.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/skillmesh/skillmesh/pkg/logger"
	"github.com/skillmesh/skillmesh/pkg/manager"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
	"github.com/skillmesh/skillmesh/pkg/version"
)

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// Validate checks the configuration
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Server exposes the manager's boundary operations over HTTP
type Server struct {
	router  *mux.Router
	manager *manager.Manager
	config  *ServerConfig
	server  *http.Server
}

// NewServer creates the HTTP API server
func NewServer(mgr *manager.Manager, config *ServerConfig) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router:  mux.NewRouter(),
		manager: mgr,
		config:  config,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/refresh", s.handleRefreshSkills).Methods("POST")
	api.HandleFunc("/skills/{id}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/skills/{id}/docs", s.handleGetSkillDocs).Methods("GET")
	api.HandleFunc("/skills/{id}/invoke", s.handleInvokeSkill).Methods("POST")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	s.router.Use(s.loggingMiddleware)
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	source := skilltypes.SourceKind(query.Get("source"))
	if source != "" && source != skilltypes.SourceRepository && source != skilltypes.SourceLocal {
		s.writeErrorResponse(w, http.StatusBadRequest, "source must be \"repository\" or \"local\"", nil)
		return
	}

	result := s.manager.ListSkills(r.Context(), query.Get("filter"), source)
	s.writeJSONResponse(w, result)
}

// handleGetSkill handles GET /api/skills/{id}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	skill, err := s.manager.GetSkill(r.Context(), id)
	if err != nil {
		s.writeCodedError(w, err)
		return
	}
	s.writeJSONResponse(w, skill)
}

// handleGetSkillDocs handles GET /api/skills/{id}/docs
func (s *Server) handleGetSkillDocs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	content, err := s.manager.GetSkillDocumentation(r.Context(), id)
	if err != nil {
		s.writeCodedError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(content))
}

// invokeRequest is the body of POST /api/skills/{id}/invoke
type invokeRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// handleInvokeSkill handles POST /api/skills/{id}/invoke
func (s *Server) handleInvokeSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req invokeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	result := s.manager.InvokeSkill(r.Context(), id, req.Parameters)
	if !result.Success {
		s.writeCodedError(w, result.Error)
		return
	}
	s.writeJSONResponse(w, result)
}

// handleRefreshSkills handles POST /api/skills/refresh
func (s *Server) handleRefreshSkills(w http.ResponseWriter, r *http.Request) {
	result := s.manager.RefreshSkills(r.Context())
	if !result.Success {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(result)
		return
	}
	s.writeJSONResponse(w, result)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, map[string]any{
		"status":  "ok",
		"version": version.Get().Version,
		"skills":  s.manager.Registry().Len(),
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: 200}
		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.statusCode,
			"duration": time.Since(start),
		}).Info("HTTP request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeCodedError maps a coded engine error onto an HTTP status
func (s *Server) writeCodedError(w http.ResponseWriter, err error) {
	coded := skilltypes.AsError(err)

	status := http.StatusInternalServerError
	switch coded.Code {
	case skilltypes.ErrInvalidParams:
		status = http.StatusBadRequest
	case skilltypes.ErrSkillNotFound:
		status = http.StatusNotFound
	case skilltypes.ErrRepository:
		status = http.StatusBadGateway
	case skilltypes.ErrExecution:
		status = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   coded.Message,
		"code":    coded.Code,
	}
	if len(coded.Violations) > 0 {
		response["violations"] = coded.Violations
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// Handler returns the router, primarily for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	logger.G(ctx).WithField("address", address).Info("starting HTTP API server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("HTTP API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
