package delivery

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

type ConceptMasteryRepo interface {
	// EnsureExists creates the row at mastery 0 on first exposure; later calls are no-ops.
	EnsureExists(dbc dbctx.Context, userID, conceptID uuid.UUID, exposedAt time.Time) error
	Get(dbc dbctx.Context, userID, conceptID uuid.UUID) (*types.ConceptMastery, error)
	// SaveReview persists the outcome of one retention review.
	SaveReview(dbc dbctx.Context, row *types.ConceptMastery) error
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.ConceptMastery, error)
}

type conceptMasteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptMasteryRepo(db *gorm.DB, baseLog *logger.Logger) ConceptMasteryRepo {
	return &conceptMasteryRepo{db: db, log: baseLog.With("repo", "ConceptMasteryRepo")}
}

func (r *conceptMasteryRepo) EnsureExists(dbc dbctx.Context, userID, conceptID uuid.UUID, exposedAt time.Time) error {
	now := time.Now().UTC()
	row := &types.ConceptMastery{
		ID:             uuid.New(),
		UserID:         userID,
		ConceptID:      conceptID,
		FirstExposedAt: exposedAt.UTC(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "concept_id"}},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil && !IsUniqueViolation(err) {
		return err
	}
	return nil
}

func (r *conceptMasteryRepo) Get(dbc dbctx.Context, userID, conceptID uuid.UUID) (*types.ConceptMastery, error) {
	var row types.ConceptMastery
	if err := dbc.Conn(r.db).
		Where("user_id = ? AND concept_id = ?", userID, conceptID).
		First(&row).Error; err != nil {
		return nil, mapNotFound(err, "mastery for concept", conceptID)
	}
	return &row, nil
}

func (r *conceptMasteryRepo) SaveReview(dbc dbctx.Context, row *types.ConceptMastery) error {
	if row == nil || row.ID == uuid.Nil {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()
	return dbc.Conn(r.db).
		Model(&types.ConceptMastery{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"mastery_level":    row.MasteryLevel,
			"times_reviewed":   row.TimesReviewed,
			"last_reviewed_at": row.LastReviewedAt,
			"next_due_at":      row.NextDueAt,
			"updated_at":       row.UpdatedAt,
		}).Error
}

func (r *conceptMasteryRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.ConceptMastery, error) {
	out := []*types.ConceptMastery{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("user_id = ?", userID).
		Order("mastery_level DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
