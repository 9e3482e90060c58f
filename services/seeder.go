package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/krshsl/praxis-voice/models"
	"gorm.io/datatypes"
)

// CatalogStore is the part of the repository the seeder needs.
type CatalogStore interface {
	GetDefaultInterviewer(ctx context.Context) (*models.Interviewer, error)
	CreateInterviewer(ctx context.Context, interviewer *models.Interviewer) error
	GetDefaultTemplate(ctx context.Context) (*models.InterviewTemplate, error)
	CreateTemplate(ctx context.Context, template *models.InterviewTemplate) error
}

// DatabaseSeeder makes sure a default interviewer and template exist so
// sessions can be booked without naming either.
type DatabaseSeeder struct {
	repo CatalogStore
}

func NewDatabaseSeeder(repo CatalogStore) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

var defaultInterviewer = models.Interviewer{
	Name:        "Sarah Chen",
	Gender:      "female",
	Personality: "Professional, encouraging, and detail-oriented. Asks thoughtful follow-up questions and keeps the conversation moving.",
	IsDefault:   true,
	IsActive:    true,
}

var defaultTemplate = models.InterviewTemplate{
	Name:        "General Screening",
	Category:    "general",
	Difficulty:  "mid",
	Instruction: "Keep questions open-ended and let the candidate speak. Ask one question at a time.",
	Questions: datatypes.JSON(`[
		{"type":"behavioral","text":"Tell me about yourself and what you are working on right now.","category":"introduction"},
		{"type":"behavioral","text":"Describe a project you are proud of and the part you played in it.","category":"experience"},
		{"type":"behavioral","text":"Tell me about a time you disagreed with a teammate. How did you resolve it?","category":"collaboration"},
		{"type":"technical","text":"Walk me through how you would debug a production issue you cannot reproduce locally.","category":"problem-solving"}
	]`),
	Duration:  30,
	IsDefault: true,
}

// SeedDatabase creates the default interviewer and template when missing
// (idempotent) and returns their ids.
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) (Defaults, error) {
	interviewer, err := s.repo.GetDefaultInterviewer(ctx)
	if err != nil {
		return Defaults{}, fmt.Errorf("failed to check default interviewer: %w", err)
	}
	if interviewer == nil {
		seed := defaultInterviewer
		seed.ID = uuid.New().String()
		if err := s.repo.CreateInterviewer(ctx, &seed); err != nil {
			return Defaults{}, fmt.Errorf("failed to create default interviewer: %w", err)
		}
		interviewer = &seed
		slog.Info("Seeded default interviewer", "interviewer_id", seed.ID, "name", seed.Name)
	} else {
		slog.Info("Default interviewer already exists, skipping", "interviewer_id", interviewer.ID)
	}

	template, err := s.repo.GetDefaultTemplate(ctx)
	if err != nil {
		return Defaults{}, fmt.Errorf("failed to check default template: %w", err)
	}
	if template == nil {
		seed := defaultTemplate
		seed.ID = uuid.New().String()
		seed.InterviewerID = &interviewer.ID
		if err := s.repo.CreateTemplate(ctx, &seed); err != nil {
			return Defaults{}, fmt.Errorf("failed to create default template: %w", err)
		}
		template = &seed
		slog.Info("Seeded default template", "template_id", seed.ID, "name", seed.Name)
	} else {
		slog.Info("Default template already exists, skipping", "template_id", template.ID)
	}

	return Defaults{TemplateID: template.ID, InterviewerID: interviewer.ID}, nil
}

// ResolveDefaults looks the defaults up without creating anything. Missing
// rows leave the matching id empty; sessions must then name it explicitly.
func ResolveDefaults(ctx context.Context, repo CatalogStore) (Defaults, error) {
	var defaults Defaults
	interviewer, err := repo.GetDefaultInterviewer(ctx)
	if err != nil {
		return defaults, fmt.Errorf("failed to get default interviewer: %w", err)
	}
	if interviewer != nil {
		defaults.InterviewerID = interviewer.ID
	}
	template, err := repo.GetDefaultTemplate(ctx)
	if err != nil {
		return defaults, fmt.Errorf("failed to get default template: %w", err)
	}
	if template != nil {
		defaults.TemplateID = template.ID
	}
	if defaults.InterviewerID == "" || defaults.TemplateID == "" {
		slog.Warn("Default interviewer or template missing", "interviewer_id", defaults.InterviewerID, "template_id", defaults.TemplateID)
	}
	return defaults, nil
}
