package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-delivery/internal/data/repos/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

type StyleProfileRepo = delivery.StyleProfileRepo
type EncounterRepo = delivery.EncounterRepo
type EncounterSignalRepo = delivery.EncounterSignalRepo
type RetentionCheckRepo = delivery.RetentionCheckRepo
type ConceptMasteryRepo = delivery.ConceptMasteryRepo
type ConceptBriefRepo = delivery.ConceptBriefRepo
type TxRunner = delivery.TxRunner

type EncounterCompletion = delivery.EncounterCompletion
type CheckCompletion = delivery.CheckCompletion

func NewStyleProfileRepo(db *gorm.DB, baseLog *logger.Logger) StyleProfileRepo {
	return delivery.NewStyleProfileRepo(db, baseLog)
}
func NewEncounterRepo(db *gorm.DB, baseLog *logger.Logger) EncounterRepo {
	return delivery.NewEncounterRepo(db, baseLog)
}
func NewEncounterSignalRepo(db *gorm.DB, baseLog *logger.Logger) EncounterSignalRepo {
	return delivery.NewEncounterSignalRepo(db, baseLog)
}
func NewRetentionCheckRepo(db *gorm.DB, baseLog *logger.Logger) RetentionCheckRepo {
	return delivery.NewRetentionCheckRepo(db, baseLog)
}
func NewConceptMasteryRepo(db *gorm.DB, baseLog *logger.Logger) ConceptMasteryRepo {
	return delivery.NewConceptMasteryRepo(db, baseLog)
}
func NewConceptBriefRepo(db *gorm.DB, baseLog *logger.Logger) ConceptBriefRepo {
	return delivery.NewConceptBriefRepo(db, baseLog)
}
func NewTxRunner(db *gorm.DB) TxRunner { return delivery.NewGormTxRunner(db) }

// Set bundles every delivery repo over one database handle.
type Set struct {
	StyleProfile    StyleProfileRepo
	Encounter       EncounterRepo
	EncounterSignal EncounterSignalRepo
	RetentionCheck  RetentionCheckRepo
	ConceptMastery  ConceptMasteryRepo
	ConceptBrief    ConceptBriefRepo
	Tx              TxRunner
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		StyleProfile:    NewStyleProfileRepo(db, baseLog),
		Encounter:       NewEncounterRepo(db, baseLog),
		EncounterSignal: NewEncounterSignalRepo(db, baseLog),
		RetentionCheck:  NewRetentionCheckRepo(db, baseLog),
		ConceptMastery:  NewConceptMasteryRepo(db, baseLog),
		ConceptBrief:    NewConceptBriefRepo(db, baseLog),
		Tx:              NewTxRunner(db),
	}
}
