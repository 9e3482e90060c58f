package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/krshsl/praxis-voice/models"
	"gorm.io/gorm"
)

// TurnRepository stores the per-session log of prompts handed to the provider.
type TurnRepository struct {
	db *gorm.DB
}

func NewTurnRepository(db *gorm.DB) *TurnRepository {
	return &TurnRepository{db: db}
}

// AppendTurn saves a turn, numbering it after the last one for the session.
func (r *TurnRepository) AppendTurn(ctx context.Context, turn *models.InterviewTurn) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&models.InterviewTurn{}).
			Where("session_id = ?", turn.SessionID).
			Select("COALESCE(MAX(turn_order), 0)").
			Scan(&last).Error; err != nil {
			return fmt.Errorf("failed to read last turn order: %w", err)
		}
		turn.TurnOrder = last + 1
		return tx.Create(turn).Error
	})
	if err != nil {
		slog.Error("Failed to save interview turn", "error", err, "session_id", turn.SessionID)
		return fmt.Errorf("failed to save interview turn: %w", err)
	}

	slog.Info("Interview turn saved", "session_id", turn.SessionID, "turn_order", turn.TurnOrder, "phase", turn.Phase)
	return nil
}

// GetTurns retrieves all turns for a session in the order they were spoken.
func (r *TurnRepository) GetTurns(ctx context.Context, sessionID string) ([]models.InterviewTurn, error) {
	var turns []models.InterviewTurn

	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("turn_order ASC").
		Find(&turns).Error; err != nil {
		slog.Error("Failed to get interview turns", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to get interview turns: %w", err)
	}

	return turns, nil
}
