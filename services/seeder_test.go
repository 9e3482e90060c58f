package services

import (
	"context"
	"errors"
	"testing"

	"github.com/krshsl/praxis-voice/interview"
	"github.com/krshsl/praxis-voice/models"
)

type memDefaults struct {
	interviewers []models.Interviewer
	templates    []models.InterviewTemplate
	getErr       error
}

func (m *memDefaults) GetDefaultInterviewer(ctx context.Context) (*models.Interviewer, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, i := range m.interviewers {
		if i.IsDefault {
			return &i, nil
		}
	}
	return nil, nil
}

func (m *memDefaults) CreateInterviewer(ctx context.Context, interviewer *models.Interviewer) error {
	m.interviewers = append(m.interviewers, *interviewer)
	return nil
}

func (m *memDefaults) GetDefaultTemplate(ctx context.Context) (*models.InterviewTemplate, error) {
	for _, t := range m.templates {
		if t.IsDefault {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *memDefaults) CreateTemplate(ctx context.Context, template *models.InterviewTemplate) error {
	m.templates = append(m.templates, *template)
	return nil
}

func TestSeedDatabaseIsIdempotent(t *testing.T) {
	store := &memDefaults{}
	seeder := NewDatabaseSeeder(store)

	first, err := seeder.SeedDatabase(context.Background())
	if err != nil {
		t.Fatalf("SeedDatabase() error = %v", err)
	}
	if first.InterviewerID == "" || first.TemplateID == "" {
		t.Fatalf("defaults = %+v", first)
	}
	if got := store.templates[0].InterviewerID; got == nil || *got != first.InterviewerID {
		t.Errorf("template interviewer = %v, expected %s", got, first.InterviewerID)
	}
	if n := len(interview.NormalizeQuestions(store.templates[0].Questions)); n != 4 {
		t.Errorf("seeded template has %d questions", n)
	}

	second, err := seeder.SeedDatabase(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("second seed = %+v, expected %+v", second, first)
	}
	if len(store.interviewers) != 1 || len(store.templates) != 1 {
		t.Errorf("seeding twice created %d interviewers and %d templates", len(store.interviewers), len(store.templates))
	}
}

func TestSeedDatabaseKeepsExistingDefaults(t *testing.T) {
	store := &memDefaults{interviewers: []models.Interviewer{{ID: "iv-existing", Name: "Existing", IsDefault: true}}}

	defaults, err := NewDatabaseSeeder(store).SeedDatabase(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if defaults.InterviewerID != "iv-existing" {
		t.Errorf("InterviewerID = %s", defaults.InterviewerID)
	}
	if len(store.templates) != 1 || *store.templates[0].InterviewerID != "iv-existing" {
		t.Errorf("template not linked to the existing interviewer: %+v", store.templates)
	}
}

func TestResolveDefaults(t *testing.T) {
	store := &memDefaults{templates: []models.InterviewTemplate{{ID: "tmpl-1", IsDefault: true}}}

	defaults, err := ResolveDefaults(context.Background(), store)
	if err != nil {
		t.Fatal(err)
	}
	if defaults.TemplateID != "tmpl-1" || defaults.InterviewerID != "" {
		t.Errorf("defaults = %+v", defaults)
	}

	store.getErr = errors.New("connection refused")
	if _, err := ResolveDefaults(context.Background(), store); err == nil {
		t.Error("expected lookup error")
	}
	if len(store.interviewers) != 0 {
		t.Error("ResolveDefaults must not create rows")
	}
}
