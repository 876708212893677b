package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/mcp"
	"github.com/orchestrai/orchestrai/internal/telemetry"
)

const (
	maxRequestBodyBytes = 1 << 20
	indexMessage        = "Multi-agent-devops-assistant Agent is running!"
	traceIDHeader       = "X-Trace-Id"
)

type Server struct {
	agent   *mcp.Agent
	profile *core.AgentProfile
	srv     *http.Server
	logger  *slog.Logger
}

func NewServer(addr string, agent *mcp.Agent, profile *core.AgentProfile, logger *slog.Logger) *Server {
	s := &Server{
		agent:   agent,
		profile: profile,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Post("/mcp", s.handleMCP)
	r.Get("/docs", s.handleDocs)
	r.Get("/metrics", s.handleMetrics)
	if profile != nil && profile.ServeIndex {
		r.Get("/", s.handleIndex)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server starting", "addr", s.srv.Addr, "agent", s.agent.Name())
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "agent": s.agent.Name()})
}

// handleMCP always answers 200; failures travel in the payload. Handlers run
// detached from the client connection, so a disconnect does not abort
// in-flight upstream calls.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	w.Header().Set(traceIDHeader, traceID)
	ctx := mcp.ContextWithTraceID(context.WithoutCancel(r.Context()), traceID)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		s.logger.Warn("read mcp request failed", "trace_id", traceID, "err", err)
		writeJSON(w, http.StatusOK, mcp.ErrorPayload(err))
		return
	}

	writeJSON(w, http.StatusOK, s.agent.Dispatch(ctx, body))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         indexMessage,
		"agent":           s.agent.Name(),
		"available_tools": s.agent.ToolNames(),
		"docs":            "/docs",
	})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent": s.agent.Name(),
		"tools": s.agent.Definitions(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, telemetry.RenderPrometheus())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"trace_id", sw.Header().Get(traceIDHeader),
			"duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
