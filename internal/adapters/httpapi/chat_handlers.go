package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/safirlabs/safir-agent/internal/app/conversation"
	"github.com/safirlabs/safir-agent/internal/domain"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req conversation.ChatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res, err := s.svc.Chat(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChatInit(w http.ResponseWriter, r *http.Request) {
	var req conversation.InitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.svc.Init(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "init failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sid := domain.SessionID(chi.URLParam(r, "sessionID"))

	rec, err := s.svc.Session(r.Context(), sid)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	sid := domain.SessionID(chi.URLParam(r, "sessionID"))

	facts, err := s.svc.Context(r.Context(), sid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "context lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": string(sid),
		"context":    facts,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sid := domain.SessionID(chi.URLParam(r, "sessionID"))

	if err := s.svc.DeleteSession(r.Context(), sid); err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSuggestionClick(w http.ResponseWriter, r *http.Request) {
	sid := domain.SessionID(chi.URLParam(r, "sessionID"))

	if err := s.svc.RegisterSuggestionClick(r.Context(), sid); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "click registration failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
