package services

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 2 << 20

// WebhookEndpoints receives voice-provider callbacks. The session id is in
// the path and the signed token minted at start time is in the query.
type WebhookEndpoints struct {
	webhooks *WebhookService
	tokens   *TokenService
}

func NewWebhookEndpoints(webhooks *WebhookService, tokens *TokenService) *WebhookEndpoints {
	return &WebhookEndpoints{
		webhooks: webhooks,
		tokens:   tokens,
	}
}

func (e *WebhookEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/vapi/{sessionID}", e.ProviderWebhookHandler)
}

func (e *WebhookEndpoints) ProviderWebhookHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if e.tokens == nil {
		slog.Error("Webhook rejected, tokens not configured", "session_id", sessionID)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := e.tokens.VerifyWebhookToken(r.URL.Query().Get("token"), sessionID); err != nil {
		slog.Warn("Webhook rejected", "error", err, "session_id", sessionID, "remote_addr", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		slog.Warn("Failed to read webhook body", "error", err, "session_id", sessionID)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := e.webhooks.HandleProviderWebhook(r.Context(), sessionID, raw)
	writeJSON(w, http.StatusOK, result)
}
