// Package httpapi exposes the conversation service over HTTP.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/safirlabs/safir-agent/internal/app/conversation"
	"github.com/safirlabs/safir-agent/internal/app/tools"
	"github.com/safirlabs/safir-agent/internal/observability"
	"github.com/safirlabs/safir-agent/internal/schema"
	"github.com/safirlabs/safir-agent/internal/trace"
)

// Server wires handlers onto a chi router.
type Server struct {
	svc      *conversation.Service
	registry *schema.Registry
	tools    *tools.Registry
	traces   *trace.Ring
	logs     *trace.LogStore
}

// New builds the server. toolReg, traces and logs may be nil; their
// endpoints then return 404.
func New(svc *conversation.Service, registry *schema.Registry, toolReg *tools.Registry, traces *trace.Ring, logs *trace.LogStore) *Server {
	return &Server{svc: svc, registry: registry, tools: toolReg, traces: traces, logs: logs}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/chat/init", s.handleChatInit)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/context", s.handleGetContext)
			r.Post("/suggestion-click", s.handleSuggestionClick)
		})

		r.Route("/admin/fields", func(r chi.Router) {
			r.Get("/", s.handleListFields)
			r.Post("/", s.handleAddField)
			r.Post("/reload", s.handleReloadFields)
			r.Get("/export", s.handleExportFields)
			r.Route("/{fieldName}", func(r chi.Router) {
				r.Get("/", s.handleGetField)
				r.Put("/", s.handleUpdateField)
				r.Delete("/", s.handleRemoveField)
				r.Post("/enable", s.handleEnableField(true))
				r.Post("/disable", s.handleEnableField(false))
			})
		})

		if s.tools != nil {
			r.Get("/tools", s.handleListTools)
			r.Get("/tools/{toolName}", s.handleGetTool)
		}
		if s.traces != nil {
			r.Get("/traces", s.handleRecentTraces)
			r.Get("/traces/{traceID}", s.handleGetTrace)
		}
		if s.logs != nil {
			r.Get("/logs", s.handleQueryLogs)
			r.Get("/logs/stats", s.handleLogStats)
			r.Delete("/logs", s.handleClearLogs)
		}
	})

	return r
}

// requestID tags every request with a request_id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := observability.WithRequestID(r.Context(), reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logRequests emits one structured line per request and mirrors it into
// the log store when configured.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(started)
		observability.LoggerFromContext(r.Context()).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", float64(elapsed.Microseconds())/1000,
		)
		if s.logs != nil {
			s.logs.Append(r.Context(), trace.LogEntry{
				LogType:    trace.LogTypeRequest,
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: ww.Status(),
				DurationMS: float64(elapsed.Microseconds()) / 1000,
			})
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func logFromRequest(r *http.Request) *slog.Logger {
	return observability.LoggerFromContext(r.Context())
}
