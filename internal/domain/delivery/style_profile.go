package delivery

import (
	"time"

	"github.com/google/uuid"
)

// LearnerStyleProfile fixes the bandit update rule for one learner.
type LearnerStyleProfile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	UpdateRule string    `gorm:"column:update_rule;not null" json:"update_rule"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (LearnerStyleProfile) TableName() string { return "learner_style_profile" }

// LearnerStyleArm is Beta(successes, failures) for one (learner, style).
// Both counters start at 1 and only grow.
type LearnerStyleArm struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_style_arm_user_style" json:"user_id"`
	Style     string    `gorm:"column:style;not null;uniqueIndex:idx_style_arm_user_style" json:"style"`
	Successes float64   `gorm:"column:successes;not null" json:"successes"`
	Failures  float64   `gorm:"column:failures;not null" json:"failures"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (LearnerStyleArm) TableName() string { return "learner_style_arm" }
