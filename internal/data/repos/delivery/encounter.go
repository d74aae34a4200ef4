package delivery

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

// EncounterCompletion is the set of fields written once when an encounter ends.
type EncounterCompletion struct {
	EndedAt            time.Time
	ActualMinutes      float64
	EngagementScore    float64
	ComprehensionScore float64
	ImmediateReward    float64
	Feedback           datatypes.JSON
}

type EncounterRepo interface {
	Create(dbc dbctx.Context, row *types.Encounter) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Encounter, error)
	// Complete writes the completion fields only if the encounter is still open.
	// ok is false when another caller completed it first.
	Complete(dbc dbctx.Context, id uuid.UUID, c EncounterCompletion) (ok bool, err error)
	// SetRetentionScoreIfUnset fills retention_score at most once.
	SetRetentionScoreIfUnset(dbc dbctx.Context, id uuid.UUID, score float64) (bool, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Encounter, error)
}

type encounterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEncounterRepo(db *gorm.DB, baseLog *logger.Logger) EncounterRepo {
	return &encounterRepo{db: db, log: baseLog.With("repo", "EncounterRepo")}
}

func (r *encounterRepo) Create(dbc dbctx.Context, row *types.Encounter) error {
	if row == nil || row.UserID == uuid.Nil || row.ConceptID == uuid.Nil || row.StyleUsed == "" {
		return apperrors.InvalidArgument("encounter requires learner, concept and style")
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.StartedAt.IsZero() {
		row.StartedAt = now
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return dbc.Conn(r.db).Create(row).Error
}

func (r *encounterRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Encounter, error) {
	var row types.Encounter
	if err := dbc.Conn(r.db).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, mapNotFound(err, "encounter", id)
	}
	return &row, nil
}

func (r *encounterRepo) Complete(dbc dbctx.Context, id uuid.UUID, c EncounterCompletion) (bool, error) {
	updates := map[string]any{
		"ended_at":            c.EndedAt.UTC(),
		"actual_minutes":      c.ActualMinutes,
		"engagement_score":    c.EngagementScore,
		"comprehension_score": c.ComprehensionScore,
		"immediate_reward":    c.ImmediateReward,
		"updated_at":          time.Now().UTC(),
	}
	if len(c.Feedback) > 0 {
		updates["comprehension_feedback"] = c.Feedback
	}
	res := dbc.Conn(r.db).
		Model(&types.Encounter{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *encounterRepo) SetRetentionScoreIfUnset(dbc dbctx.Context, id uuid.UUID, score float64) (bool, error) {
	res := dbc.Conn(r.db).
		Model(&types.Encounter{}).
		Where("id = ? AND retention_score IS NULL", id).
		Updates(map[string]any{
			"retention_score": score,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *encounterRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Encounter, error) {
	out := []*types.Encounter{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
