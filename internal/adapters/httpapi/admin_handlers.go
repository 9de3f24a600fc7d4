package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/safirlabs/safir-agent/internal/schema"
	"github.com/safirlabs/safir-agent/internal/trace"
)

// ─────────────────────────────────────────
// Fields admin
// ─────────────────────────────────────────

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"fields": s.registry.All()})
}

func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "fieldName")
	field, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "field not found")
		return
	}
	writeJSON(w, http.StatusOK, field)
}

func (s *Server) handleAddField(w http.ResponseWriter, r *http.Request) {
	var field schema.Field
	if err := decode(r, &field); err != nil {
		writeError(w, http.StatusBadRequest, "invalid field definition")
		return
	}
	if err := s.registry.Add(field); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.persistRegistry(r)
	writeJSON(w, http.StatusCreated, field)
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "fieldName")
	var field schema.Field
	if err := decode(r, &field); err != nil {
		writeError(w, http.StatusBadRequest, "invalid field definition")
		return
	}
	if err := s.registry.Update(name, field); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.persistRegistry(r)
	writeJSON(w, http.StatusOK, field)
}

func (s *Server) handleEnableField(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "fieldName")
		if err := s.registry.SetEnabled(name, enabled); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.persistRegistry(r)
		writeJSON(w, http.StatusOK, map[string]any{"field": name, "enabled": enabled})
	}
}

func (s *Server) handleRemoveField(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "fieldName")
	if err := s.registry.Remove(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.persistRegistry(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleReloadFields(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "fields": len(s.registry.All())})
}

func (s *Server) handleExportFields(w http.ResponseWriter, r *http.Request) {
	data, err := s.registry.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// persistRegistry best-effort saves the registry after a mutation; the
// mutation itself already succeeded in memory.
func (s *Server) persistRegistry(r *http.Request) {
	if err := s.registry.Save(); err != nil {
		logFromRequest(r).Warn("field registry save failed", "error", err)
	}
}

// ─────────────────────────────────────────
// Tools
// ─────────────────────────────────────────

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	names := s.tools.Names()
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t, ok := s.tools.Get(name)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
			"parameters":  t.ParameterSchema(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out, "count": len(out)})
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "toolName")
	t, ok := s.tools.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "tool not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        t.Name(),
		"description": t.Description(),
		"parameters":  t.ParameterSchema(),
	})
}

// ─────────────────────────────────────────
// Traces and logs
// ─────────────────────────────────────────

func (s *Server) handleRecentTraces(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, map[string]any{"traces": s.traces.Recent(n)})
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "traceID")
	t, ok := s.traces.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleQueryLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := s.logs.Query(r.Context(), trace.LogFilter{
		SessionID: q.Get("session_id"),
		AgentKey:  q.Get("agent_key"),
		LogType:   q.Get("log_type"),
		Search:    q.Get("search"),
		Page:      page,
		Limit:     limit,
		Ascending: q.Get("sort") == "asc",
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "log query failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.logs.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "log stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.logs.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "log clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
