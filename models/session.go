package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of an interview session.
type SessionStatus string

const (
	StatusScheduled  SessionStatus = "scheduled"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
	StatusFailed     SessionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Phase is the question generator state of an in-progress session.
type Phase string

const (
	PhaseAskingTemplate Phase = "asking_template"
	PhaseAskingDynamic  Phase = "asking_dynamic"
	PhaseConcluding     Phase = "concluding"
)

// InterviewSession is one scheduled, conducted or finished interview.
type InterviewSession struct {
	ID                   string                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TemplateID           string                      `gorm:"type:uuid;not null;index" json:"template_id"`
	InterviewerID        string                      `gorm:"type:uuid;not null;index" json:"interviewer_id"`
	CandidateName        string                      `gorm:"size:255" json:"candidate_name,omitempty"`
	Position             string                      `gorm:"size:255" json:"position,omitempty"`
	Status               SessionStatus               `gorm:"type:varchar(20);not null;default:'scheduled';index;check:status IN ('scheduled', 'in_progress', 'completed', 'cancelled', 'failed')" json:"status"`
	Phase                Phase                       `gorm:"type:varchar(20)" json:"phase,omitempty"`
	StartedAt            *time.Time                  `json:"started_at,omitempty"`
	CompletedAt          *time.Time                  `json:"completed_at,omitempty"`
	CurrentQuestionIndex int                         `gorm:"not null;default:0" json:"current_question_index"`
	AskedQuestions       datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"asked_questions"`
	ClosingStatement     string                      `gorm:"type:text" json:"closing_statement,omitempty"`
	ProviderAssistantID  *string                     `gorm:"size:255" json:"provider_assistant_id,omitempty"`
	ProviderCallID       *string                     `gorm:"size:255;index" json:"provider_call_id,omitempty"`
	ProviderControlURL   string                      `gorm:"size:1024" json:"-"`
	DurationMinutes      int                         `gorm:"not null;default:0" json:"duration_minutes"` // frozen at call start
	EndReason            string                      `gorm:"size:255" json:"end_reason,omitempty"`
	Transcript           string                      `gorm:"type:text" json:"transcript,omitempty"`
	Analysis             AnalysisResult              `gorm:"embedded;embeddedPrefix:analysis_" json:"analysis"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
	DeletedAt            gorm.DeletedAt              `gorm:"index" json:"-"`

	Template    *InterviewTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	Interviewer *Interviewer       `gorm:"foreignKey:InterviewerID" json:"interviewer,omitempty"`
}

// BeforeSave keeps the raw jsonb analysis columns non-NULL.
func (s *InterviewSession) BeforeSave(tx *gorm.DB) error {
	s.Analysis.fillRaw()
	return nil
}

// AnalysisResult is the normalized post-call analysis embedded in a session.
// Every field is optional until an ingestion or on-demand generation fills it.
type AnalysisResult struct {
	OverallScore         *float64                               `gorm:"type:decimal(5,2)" json:"overall_score,omitempty"`
	CategoryScores       datatypes.JSONType[map[string]float64] `gorm:"type:jsonb;not null;default:'{}'" json:"category_scores"`
	Strengths            datatypes.JSONSlice[string]            `gorm:"type:jsonb;not null;default:'[]'" json:"strengths"`
	AreasForImprovement  datatypes.JSONSlice[string]            `gorm:"type:jsonb;not null;default:'[]'" json:"areas_for_improvement"`
	HiringRecommendation string                                 `gorm:"size:50" json:"hiring_recommendation,omitempty"`
	KeyInsights          datatypes.JSONSlice[string]            `gorm:"type:jsonb;not null;default:'[]'" json:"key_insights"`
	QuestionScores       datatypes.JSONSlice[QuestionScore]     `gorm:"type:jsonb;not null;default:'[]'" json:"question_scores"`

	// Provider payload retained verbatim for audit.
	Summary           string         `gorm:"type:text" json:"summary,omitempty"`
	SuccessEvaluation datatypes.JSON `gorm:"type:jsonb;not null;default:'null'" json:"success_evaluation,omitempty"`
	StructuredData    datatypes.JSON `gorm:"type:jsonb;not null;default:'null'" json:"structured_data,omitempty"`

	Source     string     `gorm:"size:20" json:"source,omitempty"` // webhook or generated
	AnalyzedAt *time.Time `json:"analyzed_at,omitempty"`
}

// QuestionScore is the per-question evaluation inside an analysis.
type QuestionScore struct {
	Question        string   `json:"question"`
	ResponseQuality *float64 `json:"responseQuality,omitempty"`
	Feedback        string   `json:"feedback,omitempty"`
	KeyPoints       []string `json:"keyPoints,omitempty"`
}

// IsEmpty reports whether nothing has been populated yet.
func (a AnalysisResult) IsEmpty() bool {
	return a.OverallScore == nil &&
		len(a.CategoryScores.Data()) == 0 &&
		len(a.Strengths) == 0 &&
		len(a.AreasForImprovement) == 0 &&
		a.HiringRecommendation == "" &&
		len(a.KeyInsights) == 0 &&
		len(a.QuestionScores) == 0 &&
		a.Summary == "" &&
		!HasJSON(a.SuccessEvaluation) &&
		!HasJSON(a.StructuredData)
}

func (a *AnalysisResult) fillRaw() {
	if len(a.SuccessEvaluation) == 0 {
		a.SuccessEvaluation = datatypes.JSON("null")
	}
	if len(a.StructuredData) == 0 {
		a.StructuredData = datatypes.JSON("null")
	}
}

// HasJSON reports whether raw holds an actual JSON value rather than nothing or null.
func HasJSON(raw datatypes.JSON) bool {
	s := string(raw)
	return s != "" && s != "null" && s != `""` && s != "{}" && s != "[]"
}

// InterviewTurn records every prompt the orchestrator handed to the provider.
type InterviewTurn struct {
	ID             string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_turn_session_order" json:"session_id"`
	TurnOrder      int       `gorm:"not null;uniqueIndex:idx_turn_session_order" json:"turn_order"`
	Phase          Phase     `gorm:"type:varchar(20);not null" json:"phase"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	QuestionIndex  *int      `json:"question_index,omitempty"`
	ElapsedMinutes float64   `gorm:"type:decimal(8,2)" json:"elapsed_minutes"`
	Fallback       bool      `gorm:"default:false" json:"fallback"`
	CreatedAt      time.Time `json:"created_at"`
}
