package delivery

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
)

type StyleProfileRepo interface {
	// GetOrCreate returns the learner's profile, creating it with rule when absent.
	// An existing profile keeps its original rule.
	GetOrCreate(dbc dbctx.Context, userID uuid.UUID, rule string) (*types.LearnerStyleProfile, error)
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.LearnerStyleProfile, error)
	// EnsureArms inserts the (1,1) prior for styles the learner has no arm for.
	EnsureArms(dbc dbctx.Context, userID uuid.UUID, styles []string) error
	ListArms(dbc dbctx.Context, userID uuid.UUID) ([]*types.LearnerStyleArm, error)
	// IncrementArm adds to the counters in a single UPDATE.
	IncrementArm(dbc dbctx.Context, userID uuid.UUID, style string, successes, failures float64) error
}

type styleProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStyleProfileRepo(db *gorm.DB, baseLog *logger.Logger) StyleProfileRepo {
	return &styleProfileRepo{db: db, log: baseLog.With("repo", "StyleProfileRepo")}
}

func (r *styleProfileRepo) GetOrCreate(dbc dbctx.Context, userID uuid.UUID, rule string) (*types.LearnerStyleProfile, error) {
	if userID == uuid.Nil {
		return nil, apperrors.InvalidArgument("learner id required")
	}
	now := time.Now().UTC()
	row := &types.LearnerStyleProfile{
		ID:         uuid.New(),
		UserID:     userID,
		UpdateRule: rule,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := dbc.Conn(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(row).Error; err != nil && !IsUniqueViolation(err) {
		return nil, err
	}
	return r.Get(dbc, userID)
}

func (r *styleProfileRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.LearnerStyleProfile, error) {
	var row types.LearnerStyleProfile
	if err := dbc.Conn(r.db).Where("user_id = ?", userID).First(&row).Error; err != nil {
		return nil, mapNotFound(err, "style profile for learner", userID)
	}
	return &row, nil
}

func (r *styleProfileRepo) EnsureArms(dbc dbctx.Context, userID uuid.UUID, styles []string) error {
	if userID == uuid.Nil || len(styles) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]*types.LearnerStyleArm, 0, len(styles))
	seen := map[string]bool{}
	for _, s := range styles {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		rows = append(rows, &types.LearnerStyleArm{
			ID:        uuid.New(),
			UserID:    userID,
			Style:     s,
			Successes: 1,
			Failures:  1,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "style"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *styleProfileRepo) ListArms(dbc dbctx.Context, userID uuid.UUID) ([]*types.LearnerStyleArm, error) {
	out := []*types.LearnerStyleArm{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("user_id = ?", userID).
		Order("style ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *styleProfileRepo) IncrementArm(dbc dbctx.Context, userID uuid.UUID, style string, successes, failures float64) error {
	if !finite(successes) || !finite(failures) {
		return apperrors.InvalidArgument("arm deltas must be finite")
	}
	if successes < 0 || failures < 0 {
		return apperrors.InvalidArgument("arm counters only grow")
	}
	res := dbc.Conn(r.db).
		Model(&types.LearnerStyleArm{}).
		Where("user_id = ? AND style = ?", userID, style).
		Updates(map[string]any{
			"successes":  gorm.Expr("successes + ?", successes),
			"failures":   gorm.Expr("failures + ?", failures),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("style arm %s for learner %s", style, userID)
	}
	return nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
