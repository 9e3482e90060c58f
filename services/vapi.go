package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	DefaultVapiBaseURL  = "https://api.vapi.ai"
	defaultVoiceTimeout = 10 * time.Second

	// NextQuestionTool is the function the assistant calls to fetch its next prompt.
	NextQuestionTool = "next_question"
)

// VoiceProvider is the remote voice assistant the interview runs on.
type VoiceProvider interface {
	CreateAssistant(ctx context.Context, cfg AssistantConfig) (*Assistant, error)
	Say(ctx context.Context, controlURL, content string, endCallAfterSpoken bool) error
	EndCall(ctx context.Context, controlURL string) error
}

// AssistantConfig is the provider-side definition of one interview call.
type AssistantConfig struct {
	Name                   string            `json:"name"`
	FirstMessage           string            `json:"firstMessage,omitempty"`
	FirstMessageMode       string            `json:"firstMessageMode,omitempty"`
	Model                  AssistantModel    `json:"model"`
	Voice                  AssistantVoice    `json:"voice"`
	Transcriber            AssistantSTT      `json:"transcriber"`
	MaxDurationSeconds     int               `json:"maxDurationSeconds"`
	EndCallPhrases         []string          `json:"endCallPhrases,omitempty"`
	EndCallMessage         string            `json:"endCallMessage,omitempty"`
	EndCallFunctionEnabled bool              `json:"endCallFunctionEnabled"`
	Server                 AssistantServer   `json:"server"`
	ServerMessages         []string          `json:"serverMessages,omitempty"`
	AnalysisPlan           AnalysisPlan      `json:"analysisPlan"`
	Metadata               map[string]string `json:"metadata,omitempty"`
}

type AssistantModel struct {
	Provider    string          `json:"provider"`
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature,omitempty"`
	Messages    []ModelMessage  `json:"messages"`
	Tools       []AssistantTool `json:"tools,omitempty"`
}

type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AssistantTool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type AssistantVoice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId,omitempty"`
}

type AssistantSTT struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
}

type AssistantServer struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type AnalysisPlan struct {
	SummaryPlan           SummaryPlan           `json:"summaryPlan"`
	StructuredDataPlan    StructuredDataPlan    `json:"structuredDataPlan"`
	SuccessEvaluationPlan SuccessEvaluationPlan `json:"successEvaluationPlan"`
}

type SummaryPlan struct {
	Enabled bool `json:"enabled"`
}

type StructuredDataPlan struct {
	Enabled bool           `json:"enabled"`
	Schema  map[string]any `json:"schema"`
}

type SuccessEvaluationPlan struct {
	Enabled bool   `json:"enabled"`
	Rubric  string `json:"rubric"`
}

// Assistant is the provider's handle for a created assistant.
type Assistant struct {
	ID string `json:"id"`
}

// VapiClient talks to the Vapi REST API and to per-call control URLs.
type VapiClient struct {
	client *resty.Client
	// control carries no credentials; control URLs arrive in webhook payloads.
	control *resty.Client
}

func NewVapiClient(apiKey, baseURL string, timeout time.Duration) *VapiClient {
	if baseURL == "" {
		baseURL = DefaultVapiBaseURL
	}
	if timeout <= 0 {
		timeout = defaultVoiceTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	control := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &VapiClient{client: client, control: control}
}

// CreateAssistant registers the interview assistant and returns its id.
func (v *VapiClient) CreateAssistant(ctx context.Context, cfg AssistantConfig) (*Assistant, error) {
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(cfg).
		Post("/assistant")
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to create assistant: status %d: %s", resp.StatusCode(), truncate(resp.String(), 300))
	}

	id := gjson.GetBytes(resp.Body(), "id").String()
	if id == "" {
		return nil, fmt.Errorf("failed to create assistant: response carried no id")
	}

	slog.Info("Voice assistant created", "assistant_id", id, "name", cfg.Name)
	return &Assistant{ID: id}, nil
}

// Say makes the assistant speak content on a live call, optionally hanging
// up once it finishes.
func (v *VapiClient) Say(ctx context.Context, controlURL, content string, endCallAfterSpoken bool) error {
	return v.sendControl(ctx, controlURL, map[string]any{
		"type":               "say",
		"content":            content,
		"endCallAfterSpoken": endCallAfterSpoken,
	})
}

// EndCall hangs up a live call immediately.
func (v *VapiClient) EndCall(ctx context.Context, controlURL string) error {
	return v.sendControl(ctx, controlURL, map[string]any{"type": "end-call"})
}

func (v *VapiClient) sendControl(ctx context.Context, controlURL string, body map[string]any) error {
	if controlURL == "" {
		return fmt.Errorf("no control url for call")
	}

	resp, err := v.control.R().
		SetContext(ctx).
		SetBody(body).
		Post(controlURL)
	if err != nil {
		return fmt.Errorf("failed to send %v control message: %w", body["type"], err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to send %v control message: status %d: %s", body["type"], resp.StatusCode(), truncate(resp.String(), 300))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
