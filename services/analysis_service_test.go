package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/krshsl/praxis-voice/analysis"
	"github.com/krshsl/praxis-voice/models"
	ws "github.com/krshsl/praxis-voice/websocket"
	"gorm.io/datatypes"
)

func newAnalysisFixture(gen TextGenerator, session models.InterviewSession) (*AnalysisService, *memSessions, *recordedEvents) {
	store := newMemSessions(session)
	catalog := &memCatalog{interviewers: map[string]*models.Interviewer{
		"iv-1": {ID: "iv-1", Name: "Ava", Personality: "Strict and rigorous"},
	}}
	events := &recordedEvents{}
	svc := NewAnalysisService(store, catalog, gen, events, time.Second)
	svc.now = func() time.Time { return t0 }
	return svc, store, events
}

func completedSession() models.InterviewSession {
	return models.InterviewSession{
		ID:            "sess-1",
		TemplateID:    "tmpl-1",
		InterviewerID: "iv-1",
		Status:        models.StatusCompleted,
	}
}

func TestIngestPayloadWithoutAnalysis(t *testing.T) {
	svc, store, events := newAnalysisFixture(nil, completedSession())

	result, err := svc.Ingest(context.Background(), "sess-1", []byte(`{"type":"status-update"}`))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result == nil || !result.IsEmpty() {
		t.Errorf("result = %+v, expected empty analysis", result)
	}
	if store.writes != 0 {
		t.Errorf("writes = %d, expected none", store.writes)
	}
	if len(events.events) != 0 {
		t.Error("no-op ingest published an event")
	}
}

func TestIngestUnknownSession(t *testing.T) {
	svc, _, _ := newAnalysisFixture(nil, completedSession())
	for _, body := range []string{`{}`, `{"message":{"analysis":{"summary":"x"}}}`} {
		if _, err := svc.Ingest(context.Background(), "missing", []byte(body)); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Ingest(%s) error = %v", body, err)
		}
	}
}

func TestIngestEndOfCallReport(t *testing.T) {
	svc, store, events := newAnalysisFixture(nil, completedSession())

	payload := `{
		"message": {
			"type": "end-of-call-report",
			"analysis": {
				"summary": "Solid backend candidate.",
				"successEvaluation": "7",
				"structuredData": {
					"overallScore": 82,
					"strengths": ["A"],
					"hiringRecommendation": "Yes",
					"categoryScores": {"communication": 80}
				}
			},
			"artifact": {"transcript": "AI: Hello\nUser: Hi"}
		}
	}`

	result, err := svc.Ingest(context.Background(), "sess-1", []byte(payload))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.OverallScore == nil || *result.OverallScore != 82 {
		t.Errorf("OverallScore = %v, structured data takes precedence", result.OverallScore)
	}
	if result.Summary != "Solid backend candidate." || result.HiringRecommendation != "Yes" || result.Source != analysis.SourceWebhook {
		t.Errorf("result = %+v", result)
	}

	stored := store.get("sess-1")
	if stored.Transcript != "AI: Hello\nUser: Hi" {
		t.Errorf("Transcript = %q", stored.Transcript)
	}
	if len(events.ofType(ws.EventAnalysis)) != 1 {
		t.Errorf("analysis events = %d", len(events.ofType(ws.EventAnalysis)))
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	svc, store, _ := newAnalysisFixture(nil, completedSession())
	ctx := context.Background()

	steps := []struct {
		name      string
		payload   string
		strengths []string
	}{
		{name: "First report", payload: `{"message":{"analysis":{"structuredData":{"strengths":["A"]}}}}`, strengths: []string{"A"}},
		{name: "Empty strengths keep existing", payload: `{"message":{"analysis":{"structuredData":{"strengths":[]},"summary":"late"}}}`, strengths: []string{"A"}},
		{name: "Fuller list replaces", payload: `{"call":{"analysis":{"structuredData":{"strengths":["A","B"]}}}}`, strengths: []string{"A", "B"}},
	}
	for _, step := range steps {
		if _, err := svc.Ingest(ctx, "sess-1", []byte(step.payload)); err != nil {
			t.Fatalf("%s: Ingest() error = %v", step.name, err)
		}
		got := []string(store.get("sess-1").Analysis.Strengths)
		if strings.Join(got, ",") != strings.Join(step.strengths, ",") {
			t.Errorf("%s: strengths = %v, expected %v", step.name, got, step.strengths)
		}
	}

	writes := store.writes
	if _, err := svc.Ingest(ctx, "sess-1", []byte(steps[2].payload)); err != nil {
		t.Fatal(err)
	}
	if store.writes != writes {
		t.Error("repeating an identical payload wrote again")
	}
}

func TestIngestKeepsLongerTranscript(t *testing.T) {
	session := completedSession()
	session.Transcript = "AI: Hello\nUser: Hi there, I am ready."
	svc, store, _ := newAnalysisFixture(nil, session)

	if _, err := svc.Ingest(context.Background(), "sess-1", []byte(`{"message":{"artifact":{"transcript":"AI: Hello"}}}`)); err != nil {
		t.Fatal(err)
	}
	if got := store.get("sess-1").Transcript; got != session.Transcript {
		t.Errorf("partial transcript replaced a longer one: %q", got)
	}
}

func TestGetSessionResultsGeneratesFromTranscript(t *testing.T) {
	session := completedSession()
	session.Transcript = "AI: Tell me about yourself\nUser: I build payment systems."
	session.AskedQuestions = datatypes.JSONSlice[string]{"Tell me about yourself"}

	gen := reply("```json\n{\"summary\":\"Good fit.\",\"overallScore\":74,\"strengths\":[\"payments\"],\"hiringRecommendation\":\"Maybe\"}\n```")
	svc, store, events := newAnalysisFixture(gen, session)

	result, err := svc.GetSessionResults(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetSessionResults() error = %v", err)
	}
	if result.OverallScore == nil || *result.OverallScore != 74 || result.Summary != "Good fit." {
		t.Errorf("result = %+v", result)
	}
	if result.Source != analysis.SourceGenerated {
		t.Errorf("Source = %q", result.Source)
	}
	if got := store.get("sess-1").Analysis.HiringRecommendation; got != "Maybe" {
		t.Errorf("stored recommendation = %q", got)
	}
	if len(events.ofType(ws.EventAnalysis)) != 1 {
		t.Error("generated analysis not published")
	}

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "I build payment systems.") || !strings.Contains(prompt, "overallScore") {
		t.Errorf("prompt missing transcript or schema:\n%s", prompt)
	}

	if _, err := svc.GetSessionResults(context.Background(), "sess-1"); err != nil {
		t.Fatal(err)
	}
	if gen.count() != 1 {
		t.Errorf("generator called %d times, stored analysis should be reused", gen.count())
	}
}

func TestGetSessionResultsSharesConcurrentGeneration(t *testing.T) {
	session := completedSession()
	session.Transcript = "AI: Hi\nUser: Hello"

	release := make(chan struct{})
	gen := &scriptedGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
		<-release
		return `{"overallScore": 60}`, nil
	}}
	svc, _, _ := newAnalysisFixture(gen, session)

	var wg sync.WaitGroup
	results := make([]*models.AnalysisResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.GetSessionResults(context.Background(), "sess-1")
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if gen.count() != 1 {
		t.Errorf("generator called %d times, expected 1", gen.count())
	}
	for i, r := range results {
		if r == nil || r.OverallScore == nil || *r.OverallScore != 60 {
			t.Errorf("result %d = %+v", i, r)
		}
	}
}

func TestGetSessionResultsWithoutGeneration(t *testing.T) {
	score := 90.0
	withAnalysis := completedSession()
	withAnalysis.Transcript = "AI: Hi"
	withAnalysis.Analysis.OverallScore = &score

	failing := &scriptedGenerator{fn: func(ctx context.Context, system, prompt string) (string, error) {
		return "", errors.New("quota exceeded")
	}}
	withTranscript := completedSession()
	withTranscript.Transcript = "AI: Hi"

	tests := []struct {
		name    string
		gen     TextGenerator
		session models.InterviewSession
		calls   int
		empty   bool
	}{
		{name: "Existing analysis is returned as is", gen: reply("{}"), session: withAnalysis, calls: 0},
		{name: "No transcript means nothing to generate from", gen: reply("{}"), session: completedSession(), calls: 0, empty: true},
		{name: "Generation failure returns stored analysis", gen: failing, session: withTranscript, calls: 1, empty: true},
		{name: "Unparseable output returns stored analysis", gen: reply("I cannot evaluate this."), session: withTranscript, calls: 1, empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newAnalysisFixture(tt.gen, tt.session)
			result, err := svc.GetSessionResults(context.Background(), "sess-1")
			if err != nil {
				t.Fatalf("GetSessionResults() error = %v", err)
			}
			if result.IsEmpty() != tt.empty {
				t.Errorf("IsEmpty() = %v, expected %v", result.IsEmpty(), tt.empty)
			}
			if sg, ok := tt.gen.(*scriptedGenerator); ok && sg.count() != tt.calls {
				t.Errorf("generator calls = %d, expected %d", sg.count(), tt.calls)
			}
		})
	}

	svc, _, _ := newAnalysisFixture(nil, completedSession())
	if _, err := svc.GetSessionResults(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v", err)
	}
}

func TestScoringGuidance(t *testing.T) {
	if !strings.Contains(scoringGuidance("Strict and rigorous"), "strict") {
		t.Error("strict personality not reflected")
	}
	if scoringGuidance("") != scoringGuidance("calm") {
		t.Error("unknown personalities should share the balanced guidance")
	}
}
