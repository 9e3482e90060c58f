package interview

import "github.com/krshsl/praxis-voice/models"

// NextPhase picks the generator state for the coming turn. The timing policy
// is consulted first so a pending template question never delays conclusion.
//
// The opening turn of an interview no longer than ConcludeRemainingMinutes is
// the one exception: the remaining-time rule holds from the first second, so
// the first template question goes out unless the elapsed fraction alone
// calls for conclusion. Longer interviews follow the rule as is, even when
// nothing has been asked yet.
func NextPhase(d Decision, questions []Question, cursor, asked int) models.Phase {
	next := NextAskable(questions, cursor)
	opening := asked == 0 && next >= 0 &&
		float64(d.DurationMinutes) <= ConcludeRemainingMinutes &&
		d.ElapsedFraction < ConcludeFraction

	switch {
	case opening:
		return models.PhaseAskingTemplate
	case d.ShouldConclude:
		return models.PhaseConcluding
	case next >= 0:
		return models.PhaseAskingTemplate
	case d.ShouldGenerateDynamicQuestion:
		return models.PhaseAskingDynamic
	default:
		return models.PhaseConcluding
	}
}
