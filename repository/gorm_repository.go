package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krshsl/praxis-voice/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSkipUpdate returned from an UpdateInterviewSession callback aborts the
// update without writing and without reporting an error.
var ErrSkipUpdate = errors.New("skip update")

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.Interviewer{},
		&models.InterviewTemplate{},
		&models.InterviewSession{},
		&models.InterviewTurn{},
	)
}

// Interviewer operations
func (r *GORMRepository) CreateInterviewer(ctx context.Context, interviewer *models.Interviewer) error {
	if err := r.db.WithContext(ctx).Create(interviewer).Error; err != nil {
		slog.Error("Failed to create interviewer", "error", err)
		return err
	}
	slog.Info("Interviewer created", "interviewer_id", interviewer.ID, "name", interviewer.Name)
	return nil
}

func (r *GORMRepository) GetInterviewer(ctx context.Context, id string) (*models.Interviewer, error) {
	var interviewer models.Interviewer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&interviewer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interviewer", "error", err, "interviewer_id", id)
		return nil, err
	}
	return &interviewer, nil
}

// GetDefaultInterviewer returns the oldest active interviewer flagged as default.
func (r *GORMRepository) GetDefaultInterviewer(ctx context.Context) (*models.Interviewer, error) {
	var interviewer models.Interviewer
	err := r.db.WithContext(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		Order("created_at").
		First(&interviewer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get default interviewer", "error", err)
		return nil, err
	}
	return &interviewer, nil
}

// Template operations
func (r *GORMRepository) CreateTemplate(ctx context.Context, template *models.InterviewTemplate) error {
	if err := r.db.WithContext(ctx).Create(template).Error; err != nil {
		slog.Error("Failed to create interview template", "error", err)
		return err
	}
	slog.Info("Interview template created", "template_id", template.ID, "name", template.Name)
	return nil
}

func (r *GORMRepository) GetTemplate(ctx context.Context, id string) (*models.InterviewTemplate, error) {
	var template models.InterviewTemplate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&template).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview template", "error", err, "template_id", id)
		return nil, err
	}
	return &template, nil
}

func (r *GORMRepository) GetDefaultTemplate(ctx context.Context) (*models.InterviewTemplate, error) {
	var template models.InterviewTemplate
	err := r.db.WithContext(ctx).
		Where("is_default = ?", true).
		Order("created_at").
		First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get default interview template", "error", err)
		return nil, err
	}
	return &template, nil
}

// Session operations
func (r *GORMRepository) CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(session).Error; err != nil {
		slog.Error("Failed to create interview session", "error", err)
		return err
	}
	slog.Info("Interview session created", "session_id", session.ID, "template_id", session.TemplateID)
	return nil
}

// GetInterviewSession gets an interview session by ID
func (r *GORMRepository) GetInterviewSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("id = ?", sessionID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview session", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &session, nil
}

// UpdateInterviewSession applies mutate to the persisted session under a row
// lock and saves the result in the same transaction. Concurrent webhook
// deliveries for one session are serialized here. A missing session yields
// (nil, nil). When mutate returns ErrSkipUpdate nothing is written and the
// current row is returned.
func (r *GORMRepository) UpdateInterviewSession(ctx context.Context, sessionID string, mutate func(*models.InterviewSession) error) (*models.InterviewSession, error) {
	var out *models.InterviewSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.InterviewSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", sessionID).
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to lock interview session: %w", err)
		}

		if err := mutate(&session); err != nil {
			if errors.Is(err, ErrSkipUpdate) {
				out = &session
				return nil
			}
			return err
		}

		if err := tx.Omit(clause.Associations).Save(&session).Error; err != nil {
			return fmt.Errorf("failed to save interview session: %w", err)
		}
		out = &session
		return nil
	})
	if err != nil {
		slog.Error("Failed to update interview session", "error", err, "session_id", sessionID)
		return nil, err
	}
	return out, nil
}
