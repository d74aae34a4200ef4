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

type ConceptBriefRepo interface {
	// Get returns nil, nil when the content layer has not described the concept.
	Get(dbc dbctx.Context, conceptID uuid.UUID) (*types.ConceptBrief, error)
	Upsert(dbc dbctx.Context, row *types.ConceptBrief) error
}

type conceptBriefRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptBriefRepo(db *gorm.DB, baseLog *logger.Logger) ConceptBriefRepo {
	return &conceptBriefRepo{db: db, log: baseLog.With("repo", "ConceptBriefRepo")}
}

func (r *conceptBriefRepo) Get(dbc dbctx.Context, conceptID uuid.UUID) (*types.ConceptBrief, error) {
	var rows []*types.ConceptBrief
	if err := dbc.Conn(r.db).Where("concept_id = ?", conceptID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *conceptBriefRepo) Upsert(dbc dbctx.Context, row *types.ConceptBrief) error {
	if row == nil || row.ConceptID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "concept_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "expected_minutes", "expected_points", "exit_question", "recall_question", "updated_at",
			}),
		}).
		Create(row).Error
}

