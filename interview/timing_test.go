package interview

import (
	"testing"

	"github.com/krshsl/praxis-voice/models"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name            string
		duration        int
		elapsed         float64
		expectConclude  bool
		expectDynamic   bool
		expectedCeiling int
	}{
		{
			name:            "Fraction rule fires with minutes to spare",
			duration:        45,
			elapsed:         41,
			expectConclude:  true,
			expectDynamic:   false,
			expectedCeiling: 45*60 + 30,
		},
		{
			name:            "Remaining minutes rule fires at low fraction",
			duration:        10,
			elapsed:         7.5,
			expectConclude:  true,
			expectDynamic:   false,
			expectedCeiling: 630,
		},
		{
			name:            "Short runway blocks dynamic questions",
			duration:        5,
			elapsed:         3.2,
			expectConclude:  true,
			expectDynamic:   false,
			expectedCeiling: 330,
		},
		{
			name:            "Early in a long interview",
			duration:        30,
			elapsed:         5,
			expectConclude:  false,
			expectDynamic:   true,
			expectedCeiling: 1830,
		},
		{
			name:            "Relative runway exhausted but not concluding",
			duration:        60,
			elapsed:         46,
			expectConclude:  false,
			expectDynamic:   false,
			expectedCeiling: 3630,
		},
		{
			name:            "Zero duration defaults to thirty minutes",
			duration:        0,
			elapsed:         0,
			expectConclude:  false,
			expectDynamic:   true,
			expectedCeiling: 1830,
		},
		{
			name:            "Negative elapsed clamps to zero",
			duration:        20,
			elapsed:         -4,
			expectConclude:  false,
			expectDynamic:   true,
			expectedCeiling: 1230,
		},
		{
			name:            "Past the end",
			duration:        10,
			elapsed:         12,
			expectConclude:  true,
			expectDynamic:   false,
			expectedCeiling: 630,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.duration, tt.elapsed)
			if d.ShouldConclude != tt.expectConclude {
				t.Errorf("ShouldConclude = %v, expected %v (%+v)", d.ShouldConclude, tt.expectConclude, d)
			}
			if d.ShouldGenerateDynamicQuestion != tt.expectDynamic {
				t.Errorf("ShouldGenerateDynamicQuestion = %v, expected %v (%+v)", d.ShouldGenerateDynamicQuestion, tt.expectDynamic, d)
			}
			if d.HardCeilingSeconds != tt.expectedCeiling {
				t.Errorf("HardCeilingSeconds = %d, expected %d", d.HardCeilingSeconds, tt.expectedCeiling)
			}
		})
	}
}

func TestEvaluateRulesHoldAcrossDurations(t *testing.T) {
	for d := 1; d <= 120; d++ {
		for step := 0; step <= d*10; step++ {
			e := float64(step) / 10
			dec := Evaluate(d, e)
			remaining := float64(d) - e

			if e/float64(d) >= ConcludeFraction && !dec.ShouldConclude {
				t.Fatalf("D=%d E=%.1f: fraction rule did not conclude", d, e)
			}
			if remaining <= ConcludeRemainingMinutes && !dec.ShouldConclude {
				t.Fatalf("D=%d E=%.1f: remaining rule did not conclude", d, e)
			}
			if remaining <= DynamicMinRemainingMinutes && dec.ShouldGenerateDynamicQuestion {
				t.Fatalf("D=%d E=%.1f: dynamic question allowed with %.1f minutes left", d, e, remaining)
			}
		}
	}
}

func TestEndToEndShortInterview(t *testing.T) {
	questions := NormalizeQuestions([]byte(`["First?", "Second?"]`))

	start := Evaluate(2, 0)
	if got := NextPhase(start, questions, 0, 0); got != models.PhaseAskingTemplate {
		t.Errorf("phase at E=0 = %s, expected %s", got, models.PhaseAskingTemplate)
	}

	late := Evaluate(2, 1.8)
	if !late.ShouldConclude {
		t.Fatalf("expected conclusion at E=1.8, got %+v", late)
	}
	if got := NextPhase(late, questions, 1, 1); got != models.PhaseConcluding {
		t.Errorf("phase at E=1.8 = %s, expected %s", got, models.PhaseConcluding)
	}
	if late.HardCeilingSeconds != 150 {
		t.Errorf("HardCeilingSeconds = %d, expected 150", late.HardCeilingSeconds)
	}
}
