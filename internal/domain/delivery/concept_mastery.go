package delivery

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConceptMastery stores the undecayed mastery level. Decay is applied on read.
type ConceptMastery struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_concept_mastery_user_concept" json:"user_id"`
	ConceptID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_concept_mastery_user_concept" json:"concept_id"`
	MasteryLevel   float64    `gorm:"column:mastery_level;not null;default:0" json:"mastery_level"`
	TimesReviewed  int        `gorm:"column:times_reviewed;not null;default:0" json:"times_reviewed"`
	FirstExposedAt time.Time  `gorm:"column:first_exposed_at;not null" json:"first_exposed_at"`
	LastReviewedAt *time.Time `gorm:"column:last_reviewed_at" json:"last_reviewed_at,omitempty"`
	NextDueAt      *time.Time `gorm:"column:next_due_at" json:"next_due_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (ConceptMastery) TableName() string { return "concept_mastery" }

// ConceptBrief is written by the content layer: what the concept covers and
// how long a session on it should take.
type ConceptBrief struct {
	ConceptID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"concept_id"`
	Title           string         `gorm:"column:title;not null;default:''" json:"title"`
	ExpectedMinutes float64        `gorm:"column:expected_minutes;not null;default:0" json:"expected_minutes"`
	ExpectedPoints  datatypes.JSON `gorm:"column:expected_points" json:"expected_points,omitempty"`
	ExitQuestion    string         `gorm:"column:exit_question;not null;default:''" json:"exit_question"`
	RecallQuestion  string         `gorm:"column:recall_question;not null;default:''" json:"recall_question"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (ConceptBrief) TableName() string { return "concept_brief" }

// Points decodes ExpectedPoints; malformed JSON yields nil.
func (b *ConceptBrief) Points() []string {
	if b == nil || len(b.ExpectedPoints) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(b.ExpectedPoints, &out); err != nil {
		return nil
	}
	return out
}
