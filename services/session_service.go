package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/praxis-voice/analysis"
	"github.com/krshsl/praxis-voice/interview"
	"github.com/krshsl/praxis-voice/models"
	"github.com/krshsl/praxis-voice/repository"
	ws "github.com/krshsl/praxis-voice/websocket"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

var (
	ErrSessionNotFound     = errors.New("interview session not found")
	ErrTemplateNotFound    = errors.New("interview template not found")
	ErrInterviewerNotFound = errors.New("interviewer not found")
	ErrSessionNotScheduled = errors.New("interview session is not scheduled")
	ErrVoiceProvider       = errors.New("voice provider request failed")
)

// End reasons recorded on sessions this system finishes itself.
const (
	ReasonAssistantConcluded = "assistant-concluded"
	ReasonCeilingExceeded    = "exceeded-max-duration"
	ReasonProviderEnded      = "call-ended"
)

// WebhookPath is the callback route prefix; the session id follows it.
const WebhookPath = "/api/v1/webhooks/vapi/"

var endCallPhrases = []string{
	"that concludes our interview",
	"have a great rest of your day",
}

type SessionStore interface {
	CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error
	GetInterviewSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	UpdateInterviewSession(ctx context.Context, sessionID string, mutate func(*models.InterviewSession) error) (*models.InterviewSession, error)
}

type TemplateStore interface {
	GetTemplate(ctx context.Context, id string) (*models.InterviewTemplate, error)
}

type InterviewerStore interface {
	GetInterviewer(ctx context.Context, id string) (*models.Interviewer, error)
}

type TurnStore interface {
	AppendTurn(ctx context.Context, turn *models.InterviewTurn) error
}

// EventPublisher pushes session updates to live watchers.
type EventPublisher interface {
	Publish(sessionID string, event ws.Event)
}

// Defaults are the fallback template and interviewer, resolved from the
// data store at startup.
type Defaults struct {
	TemplateID    string
	InterviewerID string
}

// VoiceSettings select the provider-side model, voice and transcriber.
type VoiceSettings struct {
	PublicBaseURL       string
	ModelProvider       string
	Model               string
	VoiceProvider       string
	TranscriberProvider string
	TranscriberModel    string
}

type SessionServiceDeps struct {
	Sessions     SessionStore
	Templates    TemplateStore
	Interviewers InterviewerStore
	Turns        TurnStore
	Voice        VoiceProvider
	Questions    *QuestionGenerator
	Tokens       *TokenService
	Events       EventPublisher
	Calls        *ActiveCalls
	Defaults     Defaults
	Settings     VoiceSettings
}

// SessionService owns the interview lifecycle: creation, provider setup,
// call start, turn-by-turn prompting and the terminal transitions.
type SessionService struct {
	sessions     SessionStore
	templates    TemplateStore
	interviewers InterviewerStore
	turns        TurnStore
	voice        VoiceProvider
	questions    *QuestionGenerator
	tokens       *TokenService
	events       EventPublisher
	calls        *ActiveCalls
	defaults     Defaults
	settings     VoiceSettings
	now          func() time.Time
}

func NewSessionService(deps SessionServiceDeps) *SessionService {
	if deps.Questions == nil {
		deps.Questions = NewQuestionGenerator(nil, 0)
	}
	if deps.Calls == nil {
		deps.Calls = NewActiveCalls()
	}
	if deps.Settings.ModelProvider == "" {
		deps.Settings.ModelProvider = "google"
	}
	if deps.Settings.Model == "" {
		deps.Settings.Model = DefaultModelName
	}
	if deps.Settings.VoiceProvider == "" {
		deps.Settings.VoiceProvider = "11labs"
	}
	return &SessionService{
		sessions:     deps.Sessions,
		templates:    deps.Templates,
		interviewers: deps.Interviewers,
		turns:        deps.Turns,
		voice:        deps.Voice,
		questions:    deps.Questions,
		tokens:       deps.Tokens,
		events:       deps.Events,
		calls:        deps.Calls,
		defaults:     deps.Defaults,
		settings:     deps.Settings,
		now:          time.Now,
	}
}

type CreateSessionInput struct {
	TemplateID    string `json:"template_id"`
	InterviewerID string `json:"interviewer_id"`
	CandidateName string `json:"candidate_name"`
	Position      string `json:"position"`
}

// ProviderCallConfig is what the caller needs to place the call.
type ProviderCallConfig struct {
	SessionID          string          `json:"session_id"`
	AssistantID        string          `json:"assistant_id"`
	DurationMinutes    int             `json:"duration_minutes"`
	HardCeilingSeconds int             `json:"hard_ceiling_seconds"`
	Assistant          AssistantConfig `json:"assistant"`
}

// CreateSession books a scheduled session. A missing template is fatal here
// rather than at call time.
func (s *SessionService) CreateSession(ctx context.Context, in CreateSessionInput) (*models.InterviewSession, error) {
	templateID := firstNonEmpty(in.TemplateID, s.defaults.TemplateID)
	if templateID == "" {
		return nil, ErrTemplateNotFound
	}
	template, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if template == nil {
		return nil, ErrTemplateNotFound
	}

	var templateInterviewer string
	if template.InterviewerID != nil {
		templateInterviewer = *template.InterviewerID
	}
	interviewerID := firstNonEmpty(in.InterviewerID, templateInterviewer, s.defaults.InterviewerID)
	if interviewerID == "" {
		return nil, ErrInterviewerNotFound
	}
	interviewer, err := s.interviewers.GetInterviewer(ctx, interviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interviewer: %w", err)
	}
	if interviewer == nil {
		return nil, ErrInterviewerNotFound
	}

	session := &models.InterviewSession{
		ID:             uuid.New().String(),
		TemplateID:     template.ID,
		InterviewerID:  interviewer.ID,
		CandidateName:  strings.TrimSpace(in.CandidateName),
		Position:       strings.TrimSpace(in.Position),
		Status:         models.StatusScheduled,
		AskedQuestions: datatypes.JSONSlice[string]{},
	}
	if err := s.sessions.CreateInterviewSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create interview session: %w", err)
	}

	s.publishStatus(session)
	return session, nil
}

// GetSession returns the session or ErrSessionNotFound.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	session, err := s.sessions.GetInterviewSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get interview session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// StartSession configures the provider assistant for a scheduled session.
// If the provider rejects it the session is left scheduled.
func (s *SessionService) StartSession(ctx context.Context, sessionID, candidateName, position string) (*ProviderCallConfig, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusScheduled {
		return nil, ErrSessionNotScheduled
	}

	template, interviewer, err := s.loadContext(ctx, session)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, ErrTemplateNotFound
	}
	if interviewer == nil {
		return nil, ErrInterviewerNotFound
	}

	candidateName = firstNonEmpty(strings.TrimSpace(candidateName), session.CandidateName)
	position = firstNonEmpty(strings.TrimSpace(position), session.Position)

	webhookURL, err := s.webhookURL(sessionID)
	if err != nil {
		return nil, err
	}

	duration := interview.EffectiveDuration(template.Duration)
	cfg := s.assistantConfig(session, template, interviewer, candidateName, position, duration, webhookURL)

	assistant, err := s.voice.CreateAssistant(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create voice assistant", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("%w: %w", ErrVoiceProvider, err)
	}

	_, err = s.sessions.UpdateInterviewSession(ctx, sessionID, func(current *models.InterviewSession) error {
		if current.Status != models.StatusScheduled {
			return repository.ErrSkipUpdate
		}
		assistantID := assistant.ID
		current.ProviderAssistantID = &assistantID
		current.CandidateName = candidateName
		current.Position = position
		return nil
	})
	if err != nil {
		// the assistant exists; the call-start webhook still carries the session id
		slog.Warn("Failed to record assistant on session", "error", err, "session_id", sessionID, "assistant_id", assistant.ID)
	}

	slog.Info("Interview session configured", "session_id", sessionID, "assistant_id", assistant.ID, "duration_minutes", duration)
	return &ProviderCallConfig{
		SessionID:          sessionID,
		AssistantID:        assistant.ID,
		DurationMinutes:    duration,
		HardCeilingSeconds: cfg.MaxDurationSeconds,
		Assistant:          cfg,
	}, nil
}

// HandleCallStarted moves a scheduled session to in_progress and freezes its
// duration. On an in-progress session it only backfills a missing control
// URL; any other state is left alone.
func (s *SessionService) HandleCallStarted(ctx context.Context, sessionID, callID, controlURL string) (*models.InterviewSession, error) {
	current, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return current, nil
	}
	if current.Status == models.StatusInProgress && (controlURL == "" || current.ProviderControlURL != "") {
		return current, nil
	}

	templateMinutes := 0
	if template, err := s.templates.GetTemplate(ctx, current.TemplateID); err != nil {
		slog.Warn("Failed to load template at call start, using default duration", "error", err, "session_id", sessionID)
	} else if template != nil {
		templateMinutes = template.Duration
	}

	started := false
	now := s.now()
	session, err := s.sessions.UpdateInterviewSession(ctx, sessionID, func(sess *models.InterviewSession) error {
		if interview.Start(sess, interview.CallStart{
			CallID:          callID,
			ControlURL:      controlURL,
			DurationMinutes: templateMinutes,
			At:              now,
		}) {
			started = true
			return nil
		}
		if sess.Status == models.StatusInProgress && sess.ProviderControlURL == "" && controlURL != "" {
			sess.ProviderControlURL = controlURL
			return nil
		}
		return repository.ErrSkipUpdate
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start interview session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if started {
		ceiling := time.Duration(interview.HardCeilingSeconds(session.DurationMinutes)) * time.Second
		s.calls.Register(sessionID, *session.StartedAt, ceiling)
		s.publishStatus(session)
		slog.Info("Interview call started", "session_id", sessionID, "call_id", callID, "duration_minutes", session.DurationMinutes)
	}
	return session, nil
}

// NextTurn produces the next prompt for a live call. It never fails: every
// problem maps to a fallback turn.
func (s *SessionService) NextTurn(ctx context.Context, sessionID string) Turn {
	ctx, cancel := s.calls.TurnContext(ctx, sessionID)
	defer cancel()

	// a concurrent turn can claim the template question we picked, so one
	// retry with fresh state is allowed
	for attempt := 0; attempt < 2; attempt++ {
		turn, retry := s.nextTurn(ctx, sessionID)
		if !retry {
			return turn
		}
	}
	slog.Warn("Turn kept racing with another turn, ending call", "session_id", sessionID)
	return Turn{Phase: models.PhaseConcluding, QuestionIndex: -1, EndCall: true, Discarded: true}
}

func (s *SessionService) nextTurn(ctx context.Context, sessionID string) (Turn, bool) {
	discarded := Turn{Phase: models.PhaseConcluding, QuestionIndex: -1, EndCall: true, Discarded: true}

	session, err := s.sessions.GetInterviewSession(ctx, sessionID)
	if err != nil || session == nil {
		slog.Warn("No session for turn request", "session_id", sessionID, "error", err)
		return discarded, false
	}
	if replay, ok := storedClosing(session); ok {
		return replay, false
	}
	if session.Status != models.StatusInProgress {
		slog.Info("Turn requested for inactive session", "session_id", sessionID, "status", session.Status)
		return discarded, false
	}

	template, interviewer, err := s.loadContext(ctx, session)
	if err != nil {
		slog.Warn("Failed to load turn context", "error", err, "session_id", sessionID)
	}

	var questions []interview.Question
	templateMinutes := 0
	if template != nil {
		questions = interview.NormalizeQuestions(template.Questions)
		templateMinutes = template.Duration
	}

	elapsed := interview.Elapsed(session, s.now())
	decision := interview.Evaluate(interview.SessionDuration(session, templateMinutes), elapsed)

	turn := s.questions.Generate(ctx, TurnRequest{
		SessionID:     sessionID,
		CandidateName: session.CandidateName,
		Position:      session.Position,
		Template:      template,
		Interviewer:   interviewer,
		Questions:     questions,
		Cursor:        session.CurrentQuestionIndex,
		Asked:         session.AskedQuestions,
		Decision:      decision,
	})

	// the turn context may already be cancelled; the status check below
	// decides whether the result still applies
	applyCtx, applyCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer applyCancel()

	var (
		stale  bool
		replay *Turn
		inert  bool
	)
	updated, err := s.sessions.UpdateInterviewSession(applyCtx, sessionID, func(current *models.InterviewSession) error {
		if r, ok := storedClosing(current); ok {
			replay = &r
			return repository.ErrSkipUpdate
		}
		if current.Status != models.StatusInProgress {
			inert = true
			return repository.ErrSkipUpdate
		}
		if turn.Phase == models.PhaseAskingTemplate && turn.QuestionIndex < current.CurrentQuestionIndex {
			stale = true
			return repository.ErrSkipUpdate
		}

		current.Phase = turn.Phase
		switch turn.Phase {
		case models.PhaseAskingTemplate:
			interview.Advance(current, turn.NextCursor)
			current.AskedQuestions = append(current.AskedQuestions, turn.Text)
		case models.PhaseAskingDynamic:
			current.AskedQuestions = append(current.AskedQuestions, turn.Text)
		case models.PhaseConcluding:
			current.ClosingStatement = turn.Text
		}
		return nil
	})
	switch {
	case err != nil:
		slog.Error("Failed to apply turn", "error", err, "session_id", sessionID, "phase", turn.Phase)
		if turn.Phase != models.PhaseConcluding {
			// the question was not recorded, so asking it would desync the cursor
			turn = Turn{Phase: models.PhaseConcluding, Text: CannedClosing, QuestionIndex: -1, EndCall: true, Fallback: true}
		}
		return s.conclude(applyCtx, sessionID, turn, nil, decision), false
	case updated == nil:
		return discarded, false
	case replay != nil:
		return *replay, false
	case inert:
		slog.Info("Discarding generated turn, session no longer in progress", "session_id", sessionID, "status", updated.Status)
		return discarded, false
	case stale:
		return Turn{}, true
	}

	if turn.Phase == models.PhaseConcluding {
		return s.conclude(applyCtx, sessionID, turn, updated, decision), false
	}

	s.recordTurn(applyCtx, sessionID, turn, decision)
	slog.Info("Interview turn issued", "session_id", sessionID, "phase", turn.Phase, "question_index", turn.QuestionIndex,
		"elapsed_minutes", decision.ElapsedMinutes, "remaining_minutes", decision.RemainingMinutes)
	return turn, false
}

// conclude speaks the closing statement through live call control and
// completes the session.
func (s *SessionService) conclude(ctx context.Context, sessionID string, turn Turn, session *models.InterviewSession, decision interview.Decision) Turn {
	s.recordTurn(ctx, sessionID, turn, decision)

	if session == nil {
		session, _ = s.sessions.GetInterviewSession(ctx, sessionID)
	}
	if session != nil && session.ProviderControlURL != "" && s.voice != nil {
		if err := s.voice.Say(ctx, session.ProviderControlURL, turn.Text, true); err != nil {
			slog.Warn("Failed to deliver closing through call control, returning it to the assistant", "error", err, "session_id", sessionID)
		} else {
			turn.Delivered = true
		}
	}

	if _, err := s.CompleteSession(ctx, sessionID, ReasonAssistantConcluded); err != nil {
		slog.Error("Failed to complete concluded session", "error", err, "session_id", sessionID)
	}

	slog.Info("Interview concluding", "session_id", sessionID, "fallback", turn.Fallback, "delivered", turn.Delivered,
		"elapsed_minutes", decision.ElapsedMinutes)
	return turn
}

func storedClosing(session *models.InterviewSession) (Turn, bool) {
	if session.Phase != models.PhaseConcluding || session.ClosingStatement == "" {
		return Turn{}, false
	}
	return Turn{
		Phase:         models.PhaseConcluding,
		Text:          session.ClosingStatement,
		QuestionIndex: -1,
		NextCursor:    session.CurrentQuestionIndex,
		EndCall:       true,
		Replayed:      true,
	}, true
}

// CompleteSession marks the session completed. Already terminal sessions are
// returned unchanged.
func (s *SessionService) CompleteSession(ctx context.Context, sessionID, reason string) (*models.InterviewSession, error) {
	session, _, err := s.finish(ctx, sessionID, models.StatusCompleted, reason)
	return session, err
}

// CancelSession marks the session cancelled and hangs up a live call.
func (s *SessionService) CancelSession(ctx context.Context, sessionID, reason string) (*models.InterviewSession, error) {
	session, wasLive, err := s.finish(ctx, sessionID, models.StatusCancelled, firstNonEmpty(reason, "cancelled"))
	if err != nil {
		return nil, err
	}
	if wasLive {
		s.hangUp(ctx, session)
	}
	return session, nil
}

// FailSession marks the session failed and hangs up a live call.
func (s *SessionService) FailSession(ctx context.Context, sessionID, reason string) (*models.InterviewSession, error) {
	session, wasLive, err := s.finish(ctx, sessionID, models.StatusFailed, firstNonEmpty(reason, "failed"))
	if err != nil {
		return nil, err
	}
	if wasLive {
		s.hangUp(ctx, session)
	}
	return session, nil
}

// ExpireCall completes a call that outran its hard ceiling unreported.
func (s *SessionService) ExpireCall(ctx context.Context, sessionID string) {
	if _, err := s.CompleteSession(ctx, sessionID, ReasonCeilingExceeded); err != nil {
		slog.Error("Failed to complete expired call", "error", err, "session_id", sessionID)
	}
}

func (s *SessionService) finish(ctx context.Context, sessionID string, to models.SessionStatus, reason string) (*models.InterviewSession, bool, error) {
	var changed, wasLive bool
	now := s.now()
	session, err := s.sessions.UpdateInterviewSession(ctx, sessionID, func(current *models.InterviewSession) error {
		live := current.Status == models.StatusInProgress
		if !interview.Finish(current, to, reason, now) {
			return repository.ErrSkipUpdate
		}
		changed = true
		wasLive = live
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to finish interview session: %w", err)
	}
	if session == nil {
		return nil, false, ErrSessionNotFound
	}

	if changed {
		s.calls.End(sessionID)
		s.publishStatus(session)
		slog.Info("Interview session finished", "session_id", sessionID, "status", session.Status, "reason", session.EndReason)
	} else {
		slog.Debug("Ignoring transition out of terminal state", "session_id", sessionID, "status", session.Status, "requested", to)
	}
	return session, wasLive, nil
}

func (s *SessionService) hangUp(ctx context.Context, session *models.InterviewSession) {
	if session.ProviderControlURL == "" || s.voice == nil {
		return
	}
	if err := s.voice.EndCall(ctx, session.ProviderControlURL); err != nil {
		slog.Warn("Failed to end live call", "error", err, "session_id", session.ID)
	}
}

func (s *SessionService) loadContext(ctx context.Context, session *models.InterviewSession) (*models.InterviewTemplate, *models.Interviewer, error) {
	var (
		template    *models.InterviewTemplate
		interviewer *models.Interviewer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.templates.GetTemplate(gctx, session.TemplateID)
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		template = t
		return nil
	})
	g.Go(func() error {
		i, err := s.interviewers.GetInterviewer(gctx, session.InterviewerID)
		if err != nil {
			return fmt.Errorf("failed to load interviewer: %w", err)
		}
		interviewer = i
		return nil
	})
	if err := g.Wait(); err != nil {
		return template, interviewer, err
	}
	return template, interviewer, nil
}

func (s *SessionService) recordTurn(ctx context.Context, sessionID string, turn Turn, decision interview.Decision) {
	if strings.TrimSpace(turn.Text) == "" {
		return
	}
	record := &models.InterviewTurn{
		ID:             uuid.New().String(),
		SessionID:      sessionID,
		Phase:          turn.Phase,
		Content:        turn.Text,
		ElapsedMinutes: decision.ElapsedMinutes,
		Fallback:       turn.Fallback,
	}
	if turn.QuestionIndex >= 0 {
		idx := turn.QuestionIndex
		record.QuestionIndex = &idx
	}
	if s.turns != nil {
		if err := s.turns.AppendTurn(ctx, record); err != nil {
			slog.Warn("Failed to record interview turn", "error", err, "session_id", sessionID)
		}
	}
	if s.events != nil {
		s.events.Publish(sessionID, ws.Event{
			Type:      ws.EventTurn,
			SessionID: sessionID,
			Phase:     string(turn.Phase),
			Content:   turn.Text,
			Data:      record,
			At:        s.now(),
		})
	}
}

func (s *SessionService) publishStatus(session *models.InterviewSession) {
	if s.events == nil {
		return
	}
	s.events.Publish(session.ID, ws.Event{
		Type:      ws.EventStatus,
		SessionID: session.ID,
		Status:    string(session.Status),
		Phase:     string(session.Phase),
		At:        s.now(),
	})
}

func (s *SessionService) webhookURL(sessionID string) (string, error) {
	if s.tokens == nil {
		return "", fmt.Errorf("webhook tokens not configured")
	}
	token, err := s.tokens.SignWebhookToken(sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to sign webhook token: %w", err)
	}
	base := strings.TrimRight(s.settings.PublicBaseURL, "/")
	return base + WebhookPath + url.PathEscape(sessionID) + "?token=" + url.QueryEscape(token), nil
}

func (s *SessionService) assistantConfig(session *models.InterviewSession, template *models.InterviewTemplate, interviewer *models.Interviewer,
	candidateName, position string, duration int, webhookURL string) AssistantConfig {
	questions := interview.NormalizeQuestions(template.Questions)

	voiceID := PickInterviewerVoice(s.settings.VoiceProvider, interviewer)

	greeting := fmt.Sprintf("Hi, I'm %s. Thanks for joining today.", interviewer.Name)
	if candidateName != "" {
		greeting = fmt.Sprintf("Hi %s, I'm %s. Thanks for joining today.", candidateName, interviewer.Name)
	}
	greeting += " Whenever you're ready, we can begin."

	return AssistantConfig{
		Name:             truncate("Interview "+session.ID, 40),
		FirstMessage:     greeting,
		FirstMessageMode: "assistant-speaks-first",
		Model: AssistantModel{
			Provider:    s.settings.ModelProvider,
			Model:       s.settings.Model,
			Temperature: 0.4,
			Messages: []ModelMessage{{
				Role:    "system",
				Content: assistantPrompt(template, interviewer, candidateName, position, duration, questions),
			}},
			Tools: []AssistantTool{{
				Type: "function",
				Function: ToolFunction{
					Name:        NextQuestionTool,
					Description: "Returns the next thing to say to the candidate. Call it after the candidate finishes each answer.",
					Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
				},
			}},
		},
		Voice: AssistantVoice{
			Provider: s.settings.VoiceProvider,
			VoiceID:  voiceID,
		},
		Transcriber: AssistantSTT{
			Provider: firstNonEmpty(s.settings.TranscriberProvider, "deepgram"),
			Model:    s.settings.TranscriberModel,
			Language: "en",
		},
		MaxDurationSeconds:     interview.HardCeilingSeconds(duration),
		EndCallPhrases:         endCallPhrases,
		EndCallMessage:         CannedClosing,
		EndCallFunctionEnabled: true,
		Server:                 AssistantServer{URL: webhookURL, TimeoutSeconds: 20},
		ServerMessages:         []string{"status-update", "tool-calls", "end-of-call-report", "hang"},
		AnalysisPlan: AnalysisPlan{
			SummaryPlan: SummaryPlan{Enabled: true},
			StructuredDataPlan: StructuredDataPlan{
				Enabled: true,
				Schema:  analysis.StructuredDataSchema(),
			},
			SuccessEvaluationPlan: SuccessEvaluationPlan{
				Enabled: true,
				Rubric:  analysis.SuccessEvaluationRubric,
			},
		},
		Metadata: map[string]string{
			"session_id":  session.ID,
			"template_id": template.ID,
		},
	}
}

func assistantPrompt(template *models.InterviewTemplate, interviewer *models.Interviewer, candidateName, position string, duration int, questions []interview.Question) string {
	var b strings.Builder
	b.WriteString(systemInstruction(TurnRequest{Template: template, Interviewer: interviewer}))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "This interview lasts about %d minutes", duration)
	if position != "" {
		fmt.Fprintf(&b, " for the %s position", position)
	}
	b.WriteString(".\n")
	if candidateName != "" {
		fmt.Fprintf(&b, "The candidate's name is %s.\n", candidateName)
	}
	if template.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", template.Category)
	}
	if template.Difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", template.Difficulty)
	}

	if texts := interview.Texts(questions); len(texts) > 0 {
		b.WriteString("\nPlanned questions, for context only:\n")
		for i, q := range texts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}

	b.WriteString("\nAfter the greeting and after each answer, call the " + NextQuestionTool + " tool and say exactly what it returns. ")
	b.WriteString("Never invent questions of your own and never skip the tool. ")
	b.WriteString("Keep acknowledgements of answers to one short sentence.")
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
