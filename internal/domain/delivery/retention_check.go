package delivery

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RetentionCheckPending   = "pending"
	RetentionCheckCompleted = "completed"
	RetentionCheckExpired   = "expired"
)

// RetentionCheck moves pending→completed or pending→expired exactly once.
type RetentionCheck struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_retention_check_due,priority:1" json:"user_id"`
	ConceptID   uuid.UUID `gorm:"type:uuid;not null;index" json:"concept_id"`
	EncounterID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_retention_check_stage" json:"encounter_id"`
	Stage       int       `gorm:"column:stage;not null;uniqueIndex:idx_retention_check_stage" json:"stage"`
	// ladder offset from encounter end, kept for interval reporting after reschedules
	OffsetSeconds int64     `gorm:"column:offset_seconds;not null" json:"offset_seconds"`
	DueAt         time.Time `gorm:"column:due_at;not null;index:idx_retention_check_due,priority:3" json:"due_at"`
	Status        string    `gorm:"column:status;not null;index:idx_retention_check_due,priority:2" json:"status"`

	RecallAccuracy     *float64       `gorm:"column:recall_accuracy" json:"recall_accuracy,omitempty"`
	Confidence         *float64       `gorm:"column:confidence" json:"confidence,omitempty"`
	ApplicationAbility *float64       `gorm:"column:application_ability" json:"application_ability,omitempty"`
	RetentionReward    *float64       `gorm:"column:retention_reward" json:"retention_reward,omitempty"`
	CompletedAt        *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ExpiredAt          *time.Time     `gorm:"column:expired_at" json:"expired_at,omitempty"`
	Feedback           datatypes.JSON `gorm:"column:feedback" json:"feedback,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (RetentionCheck) TableName() string { return "retention_check" }

func (c *RetentionCheck) Offset() time.Duration {
	return time.Duration(c.OffsetSeconds) * time.Second
}
