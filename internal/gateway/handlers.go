package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/soyeahso/botway/internal/auth"
	"github.com/soyeahso/botway/internal/dispatch"
	"github.com/soyeahso/botway/internal/schema"
	"github.com/soyeahso/botway/internal/version"
)

// handleActivity feeds one inbound request through the dispatch
// runtime. The response body is the runtime's status string.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	status, err := s.runtime.Process(r.Context(), r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, status)
}

// writeError maps dispatch failures onto HTTP status codes. Malformed
// payloads are the caller's fault, missing dependencies are ours, and
// anything else is treated as an upstream failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *schema.ValidationError
		configErr     *dispatch.ConfigError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationErr.Error()})
	case errors.Is(err, auth.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.As(err, &configErr):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": configErr.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleTrace returns recent entries from the activity log. Same bearer
// check as the webhook: traced bodies are full activity payloads.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Authenticate(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	var err error
	var entries any
	if conv := r.URL.Query().Get("conversation"); conv != "" {
		entries, err = s.trace.Conversation(r.Context(), conv, limit)
	} else {
		entries, err = s.trace.Recent(r.Context(), limit)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("trace query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "trace query failed"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
