package delivery

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

type CheckCompletion struct {
	CompletedAt        time.Time
	RecallAccuracy     float64
	Confidence         float64
	ApplicationAbility float64
	RetentionReward    float64
	Feedback           datatypes.JSON
}

type RetentionCheckRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*types.RetentionCheck) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RetentionCheck, error)
	// Complete moves a pending check to completed; ok is false if it was not pending.
	Complete(dbc dbctx.Context, id uuid.UUID, c CheckCompletion) (ok bool, err error)
	// Expire moves a single pending check to expired.
	Expire(dbc dbctx.Context, id uuid.UUID, now time.Time) (bool, error)
	// ExpireDueBefore expires every pending check with due_at < cutoff.
	ExpireDueBefore(dbc dbctx.Context, cutoff, now time.Time) (int64, error)
	// ListDue returns the learner's pending checks due in [cutoff, now], earliest
	// first. Checks due before cutoff are past grace and only wait for the sweep.
	ListDue(dbc dbctx.Context, userID uuid.UUID, now, cutoff time.Time) ([]*types.RetentionCheck, error)
	GetPendingByStage(dbc dbctx.Context, encounterID uuid.UUID, stage int) (*types.RetentionCheck, error)
	// NextPending returns the encounter's earliest pending check, or nil.
	NextPending(dbc dbctx.Context, encounterID uuid.UUID) (*types.RetentionCheck, error)
	// PullIn moves a pending check's due_at earlier; later times are ignored.
	PullIn(dbc dbctx.Context, id uuid.UUID, dueAt time.Time) (bool, error)
	ListByEncounter(dbc dbctx.Context, encounterID uuid.UUID) ([]*types.RetentionCheck, error)
	ListCompletedByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.RetentionCheck, error)
}

type retentionCheckRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRetentionCheckRepo(db *gorm.DB, baseLog *logger.Logger) RetentionCheckRepo {
	return &retentionCheckRepo{db: db, log: baseLog.With("repo", "RetentionCheckRepo")}
}

func (r *retentionCheckRepo) CreateBatch(dbc dbctx.Context, rows []*types.RetentionCheck) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.Status == "" {
			row.Status = types.RetentionCheckPending
		}
		row.DueAt = row.DueAt.UTC()
		row.CreatedAt = now
		row.UpdatedAt = now
	}
	return dbc.Conn(r.db).Create(&rows).Error
}

func (r *retentionCheckRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RetentionCheck, error) {
	var row types.RetentionCheck
	if err := dbc.Conn(r.db).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, mapNotFound(err, "retention check", id)
	}
	return &row, nil
}

func (r *retentionCheckRepo) Complete(dbc dbctx.Context, id uuid.UUID, c CheckCompletion) (bool, error) {
	updates := map[string]any{
		"status":              types.RetentionCheckCompleted,
		"completed_at":        c.CompletedAt.UTC(),
		"recall_accuracy":     c.RecallAccuracy,
		"confidence":          c.Confidence,
		"application_ability": c.ApplicationAbility,
		"retention_reward":    c.RetentionReward,
		"updated_at":          time.Now().UTC(),
	}
	if len(c.Feedback) > 0 {
		updates["feedback"] = c.Feedback
	}
	res := dbc.Conn(r.db).
		Model(&types.RetentionCheck{}).
		Where("id = ? AND status = ?", id, types.RetentionCheckPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *retentionCheckRepo) Expire(dbc dbctx.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := dbc.Conn(r.db).
		Model(&types.RetentionCheck{}).
		Where("id = ? AND status = ?", id, types.RetentionCheckPending).
		Updates(map[string]any{
			"status":     types.RetentionCheckExpired,
			"expired_at": now.UTC(),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *retentionCheckRepo) ExpireDueBefore(dbc dbctx.Context, cutoff, now time.Time) (int64, error) {
	res := dbc.Conn(r.db).
		Model(&types.RetentionCheck{}).
		Where("status = ? AND due_at < ?", types.RetentionCheckPending, cutoff.UTC()).
		Updates(map[string]any{
			"status":     types.RetentionCheckExpired,
			"expired_at": now.UTC(),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *retentionCheckRepo) ListDue(dbc dbctx.Context, userID uuid.UUID, now, cutoff time.Time) ([]*types.RetentionCheck, error) {
	out := []*types.RetentionCheck{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("user_id = ? AND status = ? AND due_at <= ? AND due_at >= ?", userID, types.RetentionCheckPending, now.UTC(), cutoff.UTC()).
		Order("due_at ASC").
		Order("stage ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *retentionCheckRepo) GetPendingByStage(dbc dbctx.Context, encounterID uuid.UUID, stage int) (*types.RetentionCheck, error) {
	var rows []*types.RetentionCheck
	if err := dbc.Conn(r.db).
		Where("encounter_id = ? AND stage = ? AND status = ?", encounterID, stage, types.RetentionCheckPending).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *retentionCheckRepo) NextPending(dbc dbctx.Context, encounterID uuid.UUID) (*types.RetentionCheck, error) {
	var rows []*types.RetentionCheck
	if err := dbc.Conn(r.db).
		Where("encounter_id = ? AND status = ?", encounterID, types.RetentionCheckPending).
		Order("due_at ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *retentionCheckRepo) PullIn(dbc dbctx.Context, id uuid.UUID, dueAt time.Time) (bool, error) {
	dueAt = dueAt.UTC()
	res := dbc.Conn(r.db).
		Model(&types.RetentionCheck{}).
		Where("id = ? AND status = ? AND due_at > ?", id, types.RetentionCheckPending, dueAt).
		Updates(map[string]any{
			"due_at":     dueAt,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *retentionCheckRepo) ListByEncounter(dbc dbctx.Context, encounterID uuid.UUID) ([]*types.RetentionCheck, error) {
	out := []*types.RetentionCheck{}
	if err := dbc.Conn(r.db).
		Where("encounter_id = ?", encounterID).
		Order("stage ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *retentionCheckRepo) ListCompletedByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.RetentionCheck, error) {
	out := []*types.RetentionCheck{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("user_id = ? AND status = ?", userID, types.RetentionCheckCompleted).
		Order("completed_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
