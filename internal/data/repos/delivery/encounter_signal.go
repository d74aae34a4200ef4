package delivery

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

type EncounterSignalRepo interface {
	Create(dbc dbctx.Context, row *types.EncounterSignal) error
	ListByEncounter(dbc dbctx.Context, encounterID uuid.UUID) ([]*types.EncounterSignal, error)
}

type encounterSignalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEncounterSignalRepo(db *gorm.DB, baseLog *logger.Logger) EncounterSignalRepo {
	return &encounterSignalRepo{db: db, log: baseLog.With("repo", "EncounterSignalRepo")}
}

func (r *encounterSignalRepo) Create(dbc dbctx.Context, row *types.EncounterSignal) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = time.Now().UTC()
	}
	return dbc.Conn(r.db).Create(row).Error
}

func (r *encounterSignalRepo) ListByEncounter(dbc dbctx.Context, encounterID uuid.UUID) ([]*types.EncounterSignal, error) {
	out := []*types.EncounterSignal{}
	if encounterID == uuid.Nil {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("encounter_id = ?", encounterID).
		Order("recorded_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
