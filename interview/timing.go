package interview

import "math"

const (
	// DefaultDurationMinutes applies when a template has no usable duration.
	DefaultDurationMinutes = 30

	// GraceSeconds is added to the configured duration for the provider's hard
	// cutoff so the closing remarks are never truncated.
	GraceSeconds = 30

	ConcludeFraction         = 0.90
	ConcludeRemainingMinutes = 3.0

	DynamicMinFraction         = 0.25
	DynamicMinRemainingMinutes = 2.0
)

// Decision is the timing verdict for a single conversational turn. It is
// recomputed on every turn and never cached.
type Decision struct {
	DurationMinutes  int     `json:"duration_minutes"`
	ElapsedMinutes   float64 `json:"elapsed_minutes"`
	RemainingMinutes float64 `json:"remaining_minutes"`
	ElapsedFraction  float64 `json:"elapsed_fraction"`

	ShouldConclude                bool `json:"should_conclude"`
	ShouldGenerateDynamicQuestion bool `json:"should_generate_dynamic_question"`
	HardCeilingSeconds            int  `json:"hard_ceiling_seconds"`
}

// EffectiveDuration maps an absent or non-positive duration to the default.
func EffectiveDuration(minutes int) int {
	if minutes <= 0 {
		return DefaultDurationMinutes
	}
	return minutes
}

// HardCeilingSeconds is the provider-side maximum call length.
func HardCeilingSeconds(durationMinutes int) int {
	return EffectiveDuration(durationMinutes)*60 + GraceSeconds
}

// Evaluate applies the timing policy. Either conclusion rule is sufficient on
// its own; dynamic questions need both enough relative and absolute runway.
func Evaluate(durationMinutes int, elapsedMinutes float64) Decision {
	d := EffectiveDuration(durationMinutes)
	if elapsedMinutes < 0 || math.IsNaN(elapsedMinutes) {
		elapsedMinutes = 0
	}

	total := float64(d)
	remaining := total - elapsedMinutes
	fraction := elapsedMinutes / total

	return Decision{
		DurationMinutes:               d,
		ElapsedMinutes:                elapsedMinutes,
		RemainingMinutes:              remaining,
		ElapsedFraction:               fraction,
		ShouldConclude:                fraction >= ConcludeFraction || remaining <= ConcludeRemainingMinutes,
		ShouldGenerateDynamicQuestion: remaining/total > DynamicMinFraction && remaining > DynamicMinRemainingMinutes,
		HardCeilingSeconds:            HardCeilingSeconds(d),
	}
}
