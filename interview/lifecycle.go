package interview

import (
	"time"

	"github.com/krshsl/praxis-voice/models"
)

// CallStart is the provider signal that the voice call is live.
type CallStart struct {
	CallID          string
	ControlURL      string
	DurationMinutes int // template duration, frozen onto the session
	At              time.Time
}

// Start moves a scheduled session to in_progress. Any other state is left
// untouched and false is returned, so duplicate or late signals are harmless.
func Start(s *models.InterviewSession, sig CallStart) bool {
	if s.Status != models.StatusScheduled {
		return false
	}

	at := sig.At
	s.Status = models.StatusInProgress
	s.StartedAt = &at
	s.DurationMinutes = EffectiveDuration(sig.DurationMinutes)
	s.Phase = models.PhaseAskingTemplate
	if sig.CallID != "" {
		callID := sig.CallID
		s.ProviderCallID = &callID
	}
	if sig.ControlURL != "" {
		s.ProviderControlURL = sig.ControlURL
	}
	return true
}

// Finish moves a non-terminal session into the terminal status to. A session
// that is already terminal keeps its status and false is returned.
func Finish(s *models.InterviewSession, to models.SessionStatus, reason string, at time.Time) bool {
	if !to.IsTerminal() || s.Status.IsTerminal() {
		return false
	}
	s.Status = to
	s.CompletedAt = &at
	if reason != "" && s.EndReason == "" {
		s.EndReason = reason
	}
	return true
}

// Advance moves the question cursor forward. It never moves backwards.
func Advance(s *models.InterviewSession, to int) bool {
	if to <= s.CurrentQuestionIndex {
		return false
	}
	s.CurrentQuestionIndex = to
	return true
}

// Elapsed returns minutes since the call started, or zero before it did.
func Elapsed(s *models.InterviewSession, now time.Time) float64 {
	if s.StartedAt == nil {
		return 0
	}
	e := now.Sub(*s.StartedAt).Minutes()
	if e < 0 {
		return 0
	}
	return e
}

// SessionDuration is the duration timing decisions use for s: the frozen
// value once the call started, the template value before that.
func SessionDuration(s *models.InterviewSession, templateMinutes int) int {
	if s.DurationMinutes > 0 {
		return s.DurationMinutes
	}
	return EffectiveDuration(templateMinutes)
}
