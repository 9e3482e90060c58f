package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/krshsl/praxis-voice/models"
	"github.com/tidwall/gjson"
)

const defaultProcessTimeout = 8 * time.Second

// Provider message types handled by the webhook.
const (
	MessageStatusUpdate     = "status-update"
	MessageToolCalls        = "tool-calls"
	MessageEndOfCallReport  = "end-of-call-report"
	MessageHang             = "hang"
	callStatusInProgress    = "in-progress"
	callStatusEnded         = "ended"
	reasonEndOfCallReported = "end-of-call-report"
)

// Orchestrator is the part of the session lifecycle driven by provider events.
type Orchestrator interface {
	HandleCallStarted(ctx context.Context, sessionID, callID, controlURL string) (*models.InterviewSession, error)
	NextTurn(ctx context.Context, sessionID string) Turn
	CompleteSession(ctx context.Context, sessionID, reason string) (*models.InterviewSession, error)
}

// Ingester merges provider analysis into a session.
type Ingester interface {
	Ingest(ctx context.Context, sessionID string, raw []byte) (*models.AnalysisResult, error)
}

// WebhookResult is the reply sent back to the provider.
type WebhookResult struct {
	Accepted bool             `json:"accepted"`
	Results  []ToolCallResult `json:"results,omitempty"`
}

type ToolCallResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

// WebhookService handles provider callbacks within a bounded time and always
// acknowledges them, since the provider retries aggressively on failure.
type WebhookService struct {
	sessions Orchestrator
	analysis Ingester
	cache    ResponseCache
	timeout  time.Duration
}

func NewWebhookService(sessions Orchestrator, analysis Ingester, cache ResponseCache, timeout time.Duration) *WebhookService {
	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}
	return &WebhookService{
		sessions: sessions,
		analysis: analysis,
		cache:    cache,
		timeout:  timeout,
	}
}

// HandleProviderWebhook dispatches one callback for a session. Retried
// deliveries of the same body are answered from the response cache.
func (w *WebhookService) HandleProviderWebhook(ctx context.Context, sessionID string, raw []byte) WebhookResult {
	key := ResponseKey(sessionID, raw)
	if w.cache != nil {
		if cached, ok := w.cache.Get(ctx, key); ok {
			var result WebhookResult
			if err := json.Unmarshal(cached, &result); err == nil {
				slog.Info("Replaying response for duplicate webhook delivery", "session_id", sessionID)
				return result
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	result := WebhookResult{Accepted: true}
	if !gjson.ValidBytes(raw) {
		slog.Warn("Ignoring webhook with invalid JSON body", "session_id", sessionID, "size", len(raw))
		return result
	}

	msg := gjson.GetBytes(raw, "message")
	if !msg.IsObject() {
		msg = gjson.ParseBytes(raw)
	}
	call := msg.Get("call")
	if !call.Exists() {
		call = gjson.GetBytes(raw, "call")
	}
	callID := call.Get("id").String()
	controlURL := call.Get("monitor.controlUrl").String()
	msgType := msg.Get("type").String()

	switch msgType {
	case MessageStatusUpdate:
		switch status := msg.Get("status").String(); status {
		case callStatusInProgress:
			w.callStarted(ctx, sessionID, callID, controlURL)
		case callStatusEnded:
			w.complete(ctx, sessionID, firstNonEmpty(msg.Get("endedReason").String(), ReasonProviderEnded))
		default:
			slog.Debug("Call status update", "session_id", sessionID, "status", status)
		}

	case MessageToolCalls:
		// tool calls only arrive on a live call, so they also stand in for a lost start signal
		w.callStarted(ctx, sessionID, callID, controlURL)
		result.Results = w.toolCalls(ctx, sessionID, msg)

	case MessageEndOfCallReport:
		w.complete(ctx, sessionID, firstNonEmpty(msg.Get("endedReason").String(), reasonEndOfCallReported))

	case MessageHang:
		slog.Warn("Provider reported a hang", "session_id", sessionID, "call_id", callID)

	default:
		slog.Debug("Unhandled webhook message", "session_id", sessionID, "type", msgType)
	}

	if w.analysis != nil {
		if _, err := w.analysis.Ingest(ctx, sessionID, raw); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				slog.Warn("Webhook for unknown session", "session_id", sessionID, "type", msgType)
			} else {
				slog.Error("Failed to ingest webhook payload", "error", err, "session_id", sessionID, "type", msgType)
			}
		}
	}

	if w.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := w.cache.Set(context.WithoutCancel(ctx), key, data); err != nil {
				slog.Warn("Failed to cache webhook response", "error", err, "session_id", sessionID)
			}
		}
	}
	return result
}

func (w *WebhookService) callStarted(ctx context.Context, sessionID, callID, controlURL string) {
	if _, err := w.sessions.HandleCallStarted(ctx, sessionID, callID, controlURL); err != nil {
		slog.Error("Failed to handle call start", "error", err, "session_id", sessionID, "call_id", callID)
	}
}

func (w *WebhookService) complete(ctx context.Context, sessionID, reason string) {
	if _, err := w.sessions.CompleteSession(ctx, sessionID, reason); err != nil {
		slog.Error("Failed to complete session from webhook", "error", err, "session_id", sessionID)
	}
}

func (w *WebhookService) toolCalls(ctx context.Context, sessionID string, msg gjson.Result) []ToolCallResult {
	list := msg.Get("toolCallList")
	if !list.IsArray() {
		list = msg.Get("toolCalls")
	}

	results := []ToolCallResult{}
	for _, tc := range list.Array() {
		id := tc.Get("id").String()
		name := tc.Get("function.name").String()
		if name != NextQuestionTool {
			slog.Warn("Unknown tool called", "session_id", sessionID, "tool", name)
			results = append(results, ToolCallResult{ToolCallID: id, Result: "This tool is not available."})
			continue
		}
		turn := w.sessions.NextTurn(ctx, sessionID)
		results = append(results, ToolCallResult{ToolCallID: id, Result: toolResult(turn)})
	}
	return results
}

// toolResult tells the assistant what to say for turn.
func toolResult(turn Turn) string {
	switch {
	case turn.Discarded:
		return "The interview has already ended. Thank the candidate briefly and end the call."
	case turn.Phase == models.PhaseConcluding && turn.Delivered:
		return "The closing statement is being spoken and the call will end. Do not say anything else."
	case turn.Phase == models.PhaseConcluding:
		return "Say this closing statement exactly, then end the call: " + turn.Text
	}
	return "Ask this question exactly: " + turn.Text
}
