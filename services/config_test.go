package services

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLLMTimeoutWithin(t *testing.T) {
	tests := []struct {
		name     string
		llm      time.Duration
		process  time.Duration
		expected time.Duration
	}{
		{name: "Within budget", llm: 3 * time.Second, process: 8 * time.Second, expected: 3 * time.Second},
		{name: "Longer than the webhook budget", llm: 10 * time.Second, process: 8 * time.Second, expected: 4 * time.Second},
		{name: "Exactly half", llm: 4 * time.Second, process: 8 * time.Second, expected: 4 * time.Second},
		{name: "Unset uses default", llm: 0, process: 8 * time.Second, expected: defaultLLMTimeout},
		{name: "Unset webhook budget uses default", llm: 10 * time.Second, process: 0, expected: defaultProcessTimeout / 2},
		{name: "Default capped by a tight budget", llm: 0, process: 4 * time.Second, expected: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := llmTimeoutWithin(tt.llm, tt.process); got != tt.expected {
				t.Errorf("llmTimeoutWithin(%v, %v) = %v, expected %v", tt.llm, tt.process, got, tt.expected)
			}
		})
	}
}

func TestLoadConfigLeavesRoomForClosing(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg := LoadConfig()
	if 2*cfg.Interview.LLMTimeout > cfg.Webhook.ProcessTimeout {
		t.Errorf("default LLMTimeout %v exceeds half of the %v webhook budget", cfg.Interview.LLMTimeout, cfg.Webhook.ProcessTimeout)
	}

	viper.Reset()
	t.Setenv("INTERVIEW_LLM_TIMEOUT", "10s")
	t.Setenv("WEBHOOK_PROCESS_TIMEOUT", "8s")
	cfg = LoadConfig()
	if cfg.Interview.LLMTimeout != 4*time.Second {
		t.Errorf("LLMTimeout = %v, expected 4s", cfg.Interview.LLMTimeout)
	}
}
