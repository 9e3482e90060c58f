package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/krshsl/praxis-voice/analysis"
	"github.com/krshsl/praxis-voice/models"
	"github.com/krshsl/praxis-voice/repository"
	ws "github.com/krshsl/praxis-voice/websocket"
	"golang.org/x/sync/singleflight"
)

const defaultAnalysisTimeout = 45 * time.Second

var errUnparseableAnalysis = errors.New("generated analysis is not a JSON object")

// AnalysisService ingests provider analysis callbacks and generates missing
// analyses from transcripts. Both paths merge through the same locked
// read-modify-write, so neither can clobber a better result with a worse one.
type AnalysisService struct {
	sessions     SessionStore
	interviewers InterviewerStore
	generator    TextGenerator
	events       EventPublisher
	timeout      time.Duration
	group        singleflight.Group
	now          func() time.Time
}

func NewAnalysisService(sessions SessionStore, interviewers InterviewerStore, generator TextGenerator, events EventPublisher, timeout time.Duration) *AnalysisService {
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}
	return &AnalysisService{
		sessions:     sessions,
		interviewers: interviewers,
		generator:    generator,
		events:       events,
		timeout:      timeout,
		now:          time.Now,
	}
}

// Ingest merges whatever analysis and transcript raw carries into the
// session. A payload without either is accepted and changes nothing.
func (a *AnalysisService) Ingest(ctx context.Context, sessionID string, raw []byte) (*models.AnalysisResult, error) {
	extracted := analysis.Extract(raw)
	transcript := analysis.Transcript(raw)

	if extracted == nil && transcript == "" {
		session, err := a.sessions.GetInterviewSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get interview session: %w", err)
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		return &session.Analysis, nil
	}

	var incoming models.AnalysisResult
	if extracted != nil {
		incoming = analysis.Normalize(extracted)
		slog.Debug("Analysis extracted from payload", "session_id", sessionID, "shape", extracted.Shape)
	}

	var analysisChanged bool
	now := a.now()
	session, err := a.sessions.UpdateInterviewSession(ctx, sessionID, func(current *models.InterviewSession) error {
		changed := false
		if extracted != nil && analysis.Merge(&current.Analysis, incoming, analysis.SourceWebhook, now) {
			analysisChanged = true
			changed = true
		}
		if keepTranscript(current.Transcript, transcript) {
			current.Transcript = transcript
			changed = true
		}
		if !changed {
			return repository.ErrSkipUpdate
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest analysis: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if analysisChanged {
		slog.Info("Analysis ingested", "session_id", sessionID, "source", analysis.SourceWebhook, "overall_score", session.Analysis.OverallScore)
		a.publish(session)
	}
	return &session.Analysis, nil
}

// keepTranscript reports whether incoming should replace existing. Empty
// never replaces anything and a shorter partial transcript never replaces a
// longer one.
func keepTranscript(existing, incoming string) bool {
	if incoming == "" || incoming == existing {
		return false
	}
	return len(incoming) >= len(existing)
}

// GetSessionResults returns the session's analysis, generating it from the
// transcript first when no callback has supplied one. Concurrent requests
// for one session share a single generation.
func (a *AnalysisService) GetSessionResults(ctx context.Context, sessionID string) (*models.AnalysisResult, error) {
	session, err := a.sessions.GetInterviewSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get interview session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.Analysis.IsEmpty() || strings.TrimSpace(session.Transcript) == "" || a.generator == nil {
		return &session.Analysis, nil
	}

	v, err, shared := a.group.Do(sessionID, func() (interface{}, error) {
		return a.generate(ctx, session)
	})
	if err != nil {
		slog.Warn("On-demand analysis failed, returning stored analysis", "error", err, "session_id", sessionID)
		return &session.Analysis, nil
	}
	if shared {
		slog.Debug("Joined in-flight analysis generation", "session_id", sessionID)
	}
	return v.(*models.AnalysisResult), nil
}

func (a *AnalysisService) generate(ctx context.Context, session *models.InterviewSession) (*models.AnalysisResult, error) {
	var interviewer *models.Interviewer
	if a.interviewers != nil {
		var err error
		if interviewer, err = a.interviewers.GetInterviewer(ctx, session.InterviewerID); err != nil {
			slog.Warn("Failed to load interviewer for analysis", "error", err, "session_id", session.ID)
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	slog.Info("Generating analysis from transcript", "session_id", session.ID, "transcript_length", len(session.Transcript))
	text, err := a.generator.Generate(genCtx, analysisSystemInstruction(interviewer), analysisPrompt(session))
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}
	extracted := analysis.ParseGenerated(text)
	if extracted == nil {
		return nil, errUnparseableAnalysis
	}
	incoming := analysis.Normalize(extracted)

	changed := false
	now := a.now()
	updated, err := a.sessions.UpdateInterviewSession(ctx, session.ID, func(current *models.InterviewSession) error {
		if !analysis.Merge(&current.Analysis, incoming, analysis.SourceGenerated, now) {
			return repository.ErrSkipUpdate
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save generated analysis: %w", err)
	}
	if updated == nil {
		return nil, ErrSessionNotFound
	}

	if changed {
		slog.Info("Analysis generated", "session_id", session.ID, "overall_score", updated.Analysis.OverallScore)
		a.publish(updated)
	}
	return &updated.Analysis, nil
}

func (a *AnalysisService) publish(session *models.InterviewSession) {
	if a.events == nil {
		return
	}
	a.events.Publish(session.ID, ws.Event{
		Type:      ws.EventAnalysis,
		SessionID: session.ID,
		Status:    string(session.Status),
		Data:      session.Analysis,
		At:        a.now(),
	})
}

func analysisSystemInstruction(interviewer *models.Interviewer) string {
	var b strings.Builder
	b.WriteString("You evaluate recorded job interviews and respond with a single JSON object and nothing else.\n")
	personality := ""
	if interviewer != nil {
		personality = interviewer.Personality
		if interviewer.Name != "" {
			fmt.Fprintf(&b, "You are reviewing the interview as %s.\n", interviewer.Name)
		}
	}
	b.WriteString(scoringGuidance(personality))
	return b.String()
}

func analysisPrompt(session *models.InterviewSession) string {
	var b strings.Builder
	b.WriteString("Evaluate this interview.\n\n")
	if session.Position != "" {
		fmt.Fprintf(&b, "Position: %s\n", session.Position)
	}
	if len(session.AskedQuestions) > 0 {
		b.WriteString("Questions asked:\n")
		for i, q := range session.AskedQuestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}

	schema, _ := json.Marshal(analysis.StructuredDataSchema())
	fmt.Fprintf(&b, "\nRespond with JSON matching this schema:\n%s\n", schema)
	b.WriteString("Scores are 0 to 100. hiringRecommendation is one of Strong Yes, Yes, Maybe, No.\n\n")
	fmt.Fprintf(&b, "Transcript:\n%s\n", strings.TrimSpace(session.Transcript))
	return b.String()
}

// scoringGuidance calibrates strictness to the interviewer's personality.
func scoringGuidance(personality string) string {
	p := strings.ToLower(personality)

	switch {
	case strings.Contains(p, "strict") || strings.Contains(p, "rigorous") || strings.Contains(p, "demanding"):
		return "Be strict. Only give high scores (80+) for exceptional performance. Average performance should score 50-70. Poor performance should score below 50."
	case strings.Contains(p, "encouraging") || strings.Contains(p, "supportive") || strings.Contains(p, "mentor"):
		return "Be encouraging. Give credit for effort and potential. Good performance with growth potential scores 80+. Average performance should score 60-80."
	case strings.Contains(p, "grilling") || strings.Contains(p, "intense") || strings.Contains(p, "challenging"):
		return "Be demanding. Only outstanding performance under pressure scores 85+. Average performance should score 40-70. Poor performance should score below 40."
	}
	return "Be fair and balanced. Strong performance scores 80+. Average performance should score 60-80. Weigh technical and communication skills equally."
}
