package delivery

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Encounter is one learning session on one concept with one style.
// Scores stay nil until completion; RetentionScore is filled by the first
// answered retention check, if any.
type Encounter struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ConceptID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"concept_id"`
	StyleUsed       string     `gorm:"column:style_used;not null" json:"style_used"`
	Forced          bool       `gorm:"column:forced;not null;default:false" json:"forced"`
	ExpectedMinutes float64    `gorm:"column:expected_minutes;not null;default:0" json:"expected_minutes"`
	StartedAt       time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	EndedAt         *time.Time `gorm:"column:ended_at;index" json:"ended_at,omitempty"`
	ActualMinutes   *float64   `gorm:"column:actual_minutes" json:"actual_minutes,omitempty"`

	EngagementScore    *float64 `gorm:"column:engagement_score" json:"engagement_score,omitempty"`
	ComprehensionScore *float64 `gorm:"column:comprehension_score" json:"comprehension_score,omitempty"`
	ImmediateReward    *float64 `gorm:"column:immediate_reward" json:"immediate_reward,omitempty"`
	RetentionScore     *float64 `gorm:"column:retention_score" json:"retention_score,omitempty"`

	// matched/missing points and feedback text from the exit check
	ComprehensionFeedback datatypes.JSON `gorm:"column:comprehension_feedback" json:"comprehension_feedback,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Encounter) TableName() string { return "encounter" }

func (e *Encounter) Completed() bool { return e != nil && e.EndedAt != nil }

type EncounterSignal struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EncounterID uuid.UUID `gorm:"type:uuid;not null;index" json:"encounter_id"`
	SignalType  string    `gorm:"column:signal_type;not null" json:"signal_type"`
	Value       float64   `gorm:"column:value;not null" json:"value"`
	RecordedAt  time.Time `gorm:"column:recorded_at;not null" json:"recorded_at"`
}

func (EncounterSignal) TableName() string { return "encounter_signal" }
