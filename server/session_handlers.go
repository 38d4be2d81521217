package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jrsteele09/go-session-host/directory"
	"github.com/jrsteele09/go-session-host/session"
)

const contentTypeJSON = "application/json; charset=utf-8"

type createSessionRequest struct {
	MaxClients int `json:"maxClients"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	JoinToken string `json:"joinToken"`
}

// statusResponse reports the session after a transition. Error carries a
// non-fatal failure (e.g. a scene broadcast) when the transition still happened.
type statusResponse struct {
	session.Status
	Error string `json:"error,omitempty"`
}

// CreateSessionHandler starts hosting. The body is optional; maxClients
// defaults to the configured value.
func (s *Server) CreateSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := createSessionRequest{MaxClients: s.config.GetMaxClients()}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, "invalid_request", "body must be JSON", http.StatusBadRequest)
			return
		}

		joinToken, err := s.coordinator.CreateSession(r.Context(), req.MaxClients)
		if err != nil {
			logError(r.Method, r.URL.Path, err)
			writeJSONError(w, errorCode(err), err.Error(), statusCode(err))
			return
		}

		writeJSON(w, http.StatusCreated, createSessionResponse{
			SessionID: s.coordinator.ID(),
			JoinToken: joinToken,
		})
	}
}

func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.coordinator.Status())
	}
}

func (s *Server) CharacterSelectHandler() http.HandlerFunc {
	return s.transitionHandler(s.coordinator.AdvanceToCharacterSelect)
}

func (s *Server) StartGameHandler() http.HandlerFunc {
	return s.transitionHandler(s.coordinator.StartGame)
}

// ShutdownHandler terminates the session and disconnects every client.
func (s *Server) ShutdownHandler() http.HandlerFunc {
	return s.transitionHandler(func(ctx context.Context) error {
		err := s.coordinator.Shutdown(ctx)
		s.hub.CloseAll("session terminated")
		return err
	})
}

// transitionHandler runs a phase transition. Out-of-phase requests are refused
// with 409; other errors are reported alongside the resulting status.
func (s *Server) transitionHandler(transition func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := transition(r.Context())
		if err != nil && errors.Is(err, session.ErrInvalidPhase) {
			writeJSONError(w, errorCode(err), err.Error(), http.StatusConflict)
			return
		}

		resp := statusResponse{Status: s.coordinator.Status()}
		if err != nil {
			logError(r.Method, r.URL.Path, err)
			resp.Error = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// DirectoryHandler lists the live lobby entries.
func (s *Server) DirectoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.directory.List(r.Context())
		if err != nil {
			logError(r.Method, r.URL.Path, err)
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []directory.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidCapacity):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidPhase), errors.Is(err, session.ErrSessionTerminated):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidCapacity):
		return "invalid_capacity"
	case errors.Is(err, session.ErrSessionTerminated):
		return "session_terminated"
	case errors.Is(err, session.ErrInvalidPhase):
		return "invalid_phase"
	case errors.Is(err, session.ErrAllocation):
		return "relay_allocation_failed"
	case errors.Is(err, session.ErrJoinToken):
		return "join_token_failed"
	case errors.Is(err, session.ErrDirectory):
		return "directory_failed"
	default:
		return "server_error"
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
