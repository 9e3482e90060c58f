package models

import (
	"time"

	"gorm.io/gorm"
)

// Interviewer is the AI persona that conducts a session. Exactly one row is
// expected to carry IsDefault so sessions created without an explicit
// interviewer can fall back to it.
type Interviewer struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name        string         `gorm:"not null" json:"name"`
	Gender      string         `gorm:"size:20" json:"gender,omitempty"`
	Personality string         `gorm:"type:text;not null" json:"personality"` // persona guidance spoken through the system prompt
	VoiceID     string         `gorm:"size:100" json:"voice_id,omitempty"`
	IsDefault   bool           `gorm:"default:false;index" json:"is_default"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
