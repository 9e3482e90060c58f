package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InterviewTemplate is the reusable definition a session is booked against.
// Questions is stored exactly as the template editor wrote it; the interview
// package normalizes the several historic shapes on read.
type InterviewTemplate struct {
	ID            string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	Category      string         `gorm:"size:100" json:"category,omitempty"`
	Difficulty    string         `gorm:"size:50" json:"difficulty,omitempty"` // junior, mid, senior
	Instruction   string         `gorm:"type:text" json:"instruction,omitempty"`
	Questions     datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"questions"`
	Duration      int            `gorm:"not null;default:30" json:"duration"` // minutes
	InterviewerID *string        `gorm:"type:uuid;index" json:"interviewer_id,omitempty"`
	IsDefault     bool           `gorm:"default:false;index" json:"is_default"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Interviewer *Interviewer `gorm:"foreignKey:InterviewerID" json:"interviewer,omitempty"`
}

// BeforeSave keeps the jsonb column out of SQL NULL territory.
func (t *InterviewTemplate) BeforeSave(tx *gorm.DB) error {
	if len(t.Questions) == 0 {
		t.Questions = datatypes.JSON("[]")
	}
	return nil
}
