package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/krshsl/praxis-voice/models"
	ws "github.com/krshsl/praxis-voice/websocket"
)

// TurnLister reads the per-turn audit log of a session.
type TurnLister interface {
	GetTurns(ctx context.Context, sessionID string) ([]models.InterviewTurn, error)
}

type SessionEndpoints struct {
	sessions *SessionService
	analysis *AnalysisService
	turns    TurnLister
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewSessionEndpoints(sessions *SessionService, analysis *AnalysisService, turns TurnLister, hub *ws.Hub, allowedOrigins string) *SessionEndpoints {
	return &SessionEndpoints{
		sessions: sessions,
		analysis: analysis,
		turns:    turns,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, allowedOrigins)
			},
		},
	}
}

type StartSessionRequest struct {
	CandidateName string `json:"candidate_name"`
	Position      string `json:"position"`
}

type CancelSessionRequest struct {
	Reason string `json:"reason"`
}

type GetTurnsResponse struct {
	Turns []models.InterviewTurn `json:"turns"`
	Count int                    `json:"count"`
}

func (e *SessionEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", e.CreateSessionHandler)
		r.Get("/{id}", e.GetSessionHandler)
		r.Post("/{id}/start", e.StartSessionHandler)
		r.Post("/{id}/cancel", e.CancelSessionHandler)
		r.Get("/{id}/results", e.GetResultsHandler)
		r.Get("/{id}/turns", e.GetTurnsHandler)
		r.Get("/{id}/events", e.EventsHandler)
	})
}

func (e *SessionEndpoints) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionInput
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := e.sessions.CreateSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": session,
	})
	slog.Info("Interview session created", "session_id", session.ID, "template_id", session.TemplateID, "interviewer_id", session.InterviewerID)
}

func (e *SessionEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	session, err := e.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err, sessionID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
	})
}

func (e *SessionEndpoints) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req StartSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := e.sessions.StartSession(r.Context(), sessionID, req.CandidateName, req.Position)
	if err != nil {
		writeServiceError(w, err, sessionID)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (e *SessionEndpoints) CancelSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req CancelSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := e.sessions.CancelSession(r.Context(), sessionID, req.Reason)
	if err != nil {
		writeServiceError(w, err, sessionID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
	})
	slog.Info("Interview session cancel requested", "session_id", sessionID, "status", session.Status)
}

// GetResultsHandler returns the merged analysis, generating one from the
// transcript when the provider never sent it.
func (e *SessionEndpoints) GetResultsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	result, err := e.analysis.GetSessionResults(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err, sessionID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"analysis":   result,
		"available":  !result.IsEmpty(),
	})
}

func (e *SessionEndpoints) GetTurnsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if _, err := e.sessions.GetSession(r.Context(), sessionID); err != nil {
		writeServiceError(w, err, sessionID)
		return
	}

	turns, err := e.turns.GetTurns(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get interview turns", "error", err, "session_id", sessionID)
		http.Error(w, "Failed to get turns", http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []models.InterviewTurn{}
	}
	writeJSON(w, http.StatusOK, GetTurnsResponse{Turns: turns, Count: len(turns)})
}

// EventsHandler upgrades to a websocket that receives status, turn and
// analysis events for one session.
func (e *SessionEndpoints) EventsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	session, err := e.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err, sessionID)
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err, "session_id", sessionID)
		return
	}

	// current state first, so a late watcher does not wait for the next change
	snapshot := ws.Event{
		Type:      ws.EventStatus,
		SessionID: session.ID,
		Status:    string(session.Status),
		Phase:     string(session.Phase),
		At:        session.UpdatedAt,
	}
	if err := conn.WriteJSON(snapshot); err != nil {
		slog.Warn("Failed to send session snapshot", "error", err, "session_id", sessionID)
		conn.Close()
		return
	}

	client := e.hub.RegisterClient(conn, sessionID)
	slog.Info("Session watcher connected", "session_id", sessionID, "client_id", client.ID)

	go client.WritePump()
	client.ReadPump()
}

func decodeOptionalJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeServiceError(w http.ResponseWriter, err error, sessionID string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, ErrTemplateNotFound):
		http.Error(w, "Template not found", http.StatusNotFound)
	case errors.Is(err, ErrInterviewerNotFound):
		http.Error(w, "Interviewer not found", http.StatusNotFound)
	case errors.Is(err, ErrSessionNotScheduled):
		http.Error(w, "Session is not scheduled", http.StatusConflict)
	case errors.Is(err, ErrVoiceProvider):
		slog.Error("Voice provider request failed", "error", err, "session_id", sessionID)
		http.Error(w, "Voice provider unavailable", http.StatusBadGateway)
	default:
		slog.Error("Session request failed", "error", err, "session_id", sessionID)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
