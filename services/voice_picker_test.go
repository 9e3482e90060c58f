package services

import (
	"testing"

	"github.com/krshsl/praxis-voice/models"
)

func TestPickInterviewerVoice(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		interviewer *models.Interviewer
		pool        []string
	}{
		{name: "Female 11labs", provider: "11labs", interviewer: &models.Interviewer{Name: "Ava", Gender: "female"}, pool: voiceCatalog["11labs"].female},
		{name: "Male azure", provider: "Azure", interviewer: &models.Interviewer{Name: "Ben", Gender: "M"}, pool: voiceCatalog["azure"].male},
		{name: "Unspecified gender uses both", provider: "11labs", interviewer: &models.Interviewer{Name: "Kai"},
			pool: append(append([]string{}, voiceCatalog["11labs"].female...), voiceCatalog["11labs"].male...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickInterviewerVoice(tt.provider, tt.interviewer)
			found := false
			for _, v := range tt.pool {
				if v == got {
					found = true
				}
			}
			if !found {
				t.Errorf("voice %q not in expected pool", got)
			}
			if again := PickInterviewerVoice(tt.provider, tt.interviewer); again != got {
				t.Errorf("voice changed between calls: %q then %q", got, again)
			}
		})
	}
}

func TestPickInterviewerVoiceOverrides(t *testing.T) {
	if got := PickInterviewerVoice("11labs", &models.Interviewer{Name: "Ava", VoiceID: "custom-voice"}); got != "custom-voice" {
		t.Errorf("configured voice ignored: %q", got)
	}
	if got := PickInterviewerVoice("cartesia", &models.Interviewer{Name: "Ava"}); got != "" {
		t.Errorf("unknown provider voice = %q, expected provider default", got)
	}
	if got := PickInterviewerVoice("11labs", nil); got != "" {
		t.Errorf("nil interviewer voice = %q", got)
	}
	if voiceCatalog["11labs"].female[0] != "EXAVITQu4vr4xnSDxMaL" {
		t.Error("picking a voice for an unspecified gender modified the catalog")
	}
}
