package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/krshsl/praxis-voice/models"
	"github.com/krshsl/praxis-voice/repository"
	ws "github.com/krshsl/praxis-voice/websocket"
	"gorm.io/datatypes"
)

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]models.InterviewSession
	writes   int
	failNext error
	// beforeUpdate runs once, outside the lock, ahead of the next update
	beforeUpdate func()
}

func newMemSessions(sessions ...models.InterviewSession) *memSessions {
	m := &memSessions{sessions: make(map[string]models.InterviewSession)}
	for _, s := range sessions {
		m.sessions[s.ID] = s
	}
	return m
}

func cloneSession(s models.InterviewSession) *models.InterviewSession {
	c := s
	c.AskedQuestions = append(datatypes.JSONSlice[string]{}, s.AskedQuestions...)
	c.Analysis.Strengths = append(datatypes.JSONSlice[string]{}, s.Analysis.Strengths...)
	return &c
}

func (m *memSessions) CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *cloneSession(*session)
	return nil
}

func (m *memSessions) GetInterviewSession(ctx context.Context, id string) (*models.InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (m *memSessions) UpdateInterviewSession(ctx context.Context, id string, mutate func(*models.InterviewSession) error) (*models.InterviewSession, error) {
	m.mu.Lock()
	hook := m.beforeUpdate
	m.beforeUpdate = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return nil, err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	working := cloneSession(s)
	if err := mutate(working); err != nil {
		if errors.Is(err, repository.ErrSkipUpdate) {
			return cloneSession(s), nil
		}
		return nil, err
	}
	m.sessions[id] = *cloneSession(*working)
	m.writes++
	return working, nil
}

func (m *memSessions) get(id string) models.InterviewSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *memSessions) set(s models.InterviewSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

type memCatalog struct {
	templates    map[string]*models.InterviewTemplate
	interviewers map[string]*models.Interviewer
}

func (c *memCatalog) GetTemplate(ctx context.Context, id string) (*models.InterviewTemplate, error) {
	t, ok := c.templates[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (c *memCatalog) GetInterviewer(ctx context.Context, id string) (*models.Interviewer, error) {
	i, ok := c.interviewers[id]
	if !ok {
		return nil, nil
	}
	cp := *i
	return &cp, nil
}

type memTurns struct {
	mu    sync.Mutex
	turns []models.InterviewTurn
}

func (m *memTurns) AppendTurn(ctx context.Context, turn *models.InterviewTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	turn.TurnOrder = len(m.turns) + 1
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *memTurns) GetTurns(ctx context.Context, sessionID string) ([]models.InterviewTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InterviewTurn
	for _, turn := range m.turns {
		if turn.SessionID == sessionID {
			out = append(out, turn)
		}
	}
	return out, nil
}

type sayCall struct {
	controlURL string
	content    string
	endCall    bool
}

type fakeVoice struct {
	mu          sync.Mutex
	createErr   error
	sayErr      error
	assistants  []AssistantConfig
	says        []sayCall
	endedCalls  []string
	assistantID string
}

func (f *fakeVoice) CreateAssistant(ctx context.Context, cfg AssistantConfig) (*Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.assistants = append(f.assistants, cfg)
	id := f.assistantID
	if id == "" {
		id = "asst_test"
	}
	return &Assistant{ID: id}, nil
}

func (f *fakeVoice) Say(ctx context.Context, controlURL, content string, endCallAfterSpoken bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sayErr != nil {
		return f.sayErr
	}
	f.says = append(f.says, sayCall{controlURL: controlURL, content: content, endCall: endCallAfterSpoken})
	return nil
}

func (f *fakeVoice) EndCall(ctx context.Context, controlURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endedCalls = append(f.endedCalls, controlURL)
	return nil
}

// scriptedGenerator answers each Generate call with fn.
type scriptedGenerator struct {
	mu      sync.Mutex
	fn      func(ctx context.Context, system, prompt string) (string, error)
	prompts []string
	calls   int
}

func (g *scriptedGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	fn := g.fn
	g.mu.Unlock()
	return fn(ctx, system, prompt)
}

func (g *scriptedGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func reply(text string) *scriptedGenerator {
	return &scriptedGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
		return text, nil
	}}
}

type recordedEvents struct {
	mu     sync.Mutex
	events []ws.Event
}

func (r *recordedEvents) Publish(sessionID string, event ws.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedEvents) ofType(t string) []ws.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ws.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// clock is a settable time source for services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
