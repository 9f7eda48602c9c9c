// Package httpapi wires the adapter's HTTP surface: the RFC 9728
// protected-resource metadata document, a health endpoint, Prometheus
// metrics, and the tool-invocation endpoint that runs requests through
// the auth middleware and dispatcher. Routing and server lifecycle are
// adapted from db-bouncer's internal/api.Server (gorilla/mux, a
// *http.Server with explicit read/write timeouts, graceful Stop).
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neverinfamous/mysql-mcp-go/internal/auth"
	"github.com/neverinfamous/mysql-mcp-go/internal/metrics"
	"github.com/neverinfamous/mysql-mcp-go/internal/pool"
	"github.com/neverinfamous/mysql-mcp-go/internal/ratelimit"
	"github.com/neverinfamous/mysql-mcp-go/internal/registry"
)

// Server is the adapter's HTTP surface.
type Server struct {
	registry   *registry.Registry
	dispatcher *registry.Dispatcher
	validator  *auth.Validator
	resource   *auth.ResourceMetadata
	pool       *pool.Pool
	metrics    *metrics.Collector
	limiter    *ratelimit.Limiter
	logger     *slog.Logger

	httpServer *http.Server
}

// New builds a Server with every collaborator wired.
func New(
	reg *registry.Registry,
	dispatcher *registry.Dispatcher,
	validator *auth.Validator,
	resource *auth.ResourceMetadata,
	p *pool.Pool,
	m *metrics.Collector,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: reg, dispatcher: dispatcher, validator: validator, resource: resource, pool: p, metrics: m, limiter: limiter, logger: logger}
}

// Start brings up the HTTP listener on addr.
func (s *Server) Start(addr string) error {
	r := mux.NewRouter()

	r.HandleFunc("/.well-known/oauth-protected-resource", s.resourceMetadataHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/tools", s.listToolsHandler).Methods(http.MethodGet)
	r.HandleFunc("/tools/{name}", s.invokeToolHandler).Methods(http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("http api listening", "addr", addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http api server error", "err", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) resourceMetadataHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.resource.Document())
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	h := s.pool.Health(r.Context())
	status := http.StatusOK
	if !h.Connected {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) listToolsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": s.registry.Capabilities()})
}

func (s *Server) invokeToolHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	authCtx := auth.CreateAuthContext(r.Context(), r, s.validator)
	if s.limiter != nil {
		subject := "unknown"
		if authCtx.Claims != nil {
			subject = authCtx.Claims.Subject
		}
		if !s.limiter.Allow(subject) {
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"success": false, "error": "rate limit exceeded"})
			return
		}
	}

	var args map[string]interface{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "malformed JSON body"})
			return
		}
	}

	if s.metrics != nil {
		s.metrics.DispatchAttempt(name)
	}

	result, errShape := s.dispatcher.Dispatch(r.Context(), authCtx, name, args)
	if errShape != nil {
		if s.metrics != nil {
			s.metrics.DispatchError(name, errShape.Error)
		}
		writeJSON(w, httpStatusFor(errShape), errShape)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func httpStatusFor(e *registry.ErrorShape) int {
	switch e.Error {
	case "insufficient_scope":
		return http.StatusForbidden
	case "invalid_token":
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Fprintf(w, `{"success":false,"error":"failed to encode response"}`)
	}
}
