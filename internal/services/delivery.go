package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/neurobridge-delivery/internal/data/repos"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/bandit"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/comprehension"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/signals"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/tuning"
	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/observability"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/logger"
	"github.com/yungbote/neurobridge-delivery/internal/platform/learnerlock"
)

type StartEncounterInput struct {
	LearnerID       uuid.UUID `json:"learner_id"`
	ConceptID       uuid.UUID `json:"concept_id"`
	AvailableStyles []string  `json:"available_styles"`
	ForceStyle      string    `json:"force_style,omitempty"`
}

type StartEncounterResult struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	StyleUsed   string    `json:"style_used"`
	Forced      bool      `json:"forced"`
	// effectiveness of every available style at selection time
	EffectivenessSnapshot map[string]float64 `json:"effectiveness_snapshot"`
}

type CompleteEncounterResult struct {
	EncounterID        uuid.UUID         `json:"encounter_id"`
	StyleUsed          string            `json:"style_used"`
	ImmediateReward    float64           `json:"immediate_reward"`
	ComprehensionScore float64           `json:"comprehension_score"`
	EngagementScore    float64           `json:"engagement_score"`
	Engagement         signals.Breakdown `json:"engagement"`
	ActualMinutes      float64           `json:"actual_minutes"`
	Success            bool              `json:"success"`
	Feedback           string            `json:"feedback"`
	MatchedPoints      []string          `json:"matched_points"`
	MissingPoints      []string          `json:"missing_points"`
	RetentionChecks    []time.Time       `json:"retention_checks"`
}

type RetentionCheckSummary struct {
	CheckID        uuid.UUID `json:"check_id"`
	EncounterID    uuid.UUID `json:"encounter_id"`
	ConceptID      uuid.UUID `json:"concept_id"`
	ConceptTitle   string    `json:"concept_title,omitempty"`
	RecallQuestion string    `json:"recall_question,omitempty"`
	Stage          int       `json:"stage"`
	Interval       string    `json:"interval"`
	DueAt          time.Time `json:"due_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type AnswerRetentionResult struct {
	CheckID         uuid.UUID  `json:"check_id"`
	RetentionReward float64    `json:"retention_reward"`
	Recall          float64    `json:"recall"`
	Confidence      float64    `json:"confidence"`
	Application     float64    `json:"application"`
	MasteryLevel    float64    `json:"mastery_level"`
	Feedback        string     `json:"feedback"`
	Rescheduled     bool       `json:"rescheduled"`
	NextCheckDueAt  *time.Time `json:"next_check_due_at,omitempty"`
}

type StyleStats struct {
	Style         string  `json:"style"`
	Effectiveness float64 `json:"effectiveness"`
	Confidence    float64 `json:"confidence"`
	Successes     float64 `json:"successes"`
	Failures      float64 `json:"failures"`
	Observations  float64 `json:"observations"`
}

type StyleProfileView struct {
	LearnerID         uuid.UUID    `json:"learner_id"`
	UpdateRule        string       `json:"update_rule"`
	Styles            []StyleStats `json:"styles"`
	TotalObservations float64      `json:"total_observations"`
	BestStyles        []string     `json:"best_styles"`
	StrugglingStyles  []string     `json:"struggling_styles"`
}

type IntervalRecall struct {
	Interval      string  `json:"interval"`
	Checks        int     `json:"checks"`
	AverageRecall float64 `json:"average_recall"`
}

type ConceptLevel struct {
	ConceptID uuid.UUID `json:"concept_id"`
	Title     string    `json:"title,omitempty"`
	Mastery   float64   `json:"mastery"`
}

type RetentionStatsView struct {
	LearnerID          uuid.UUID        `json:"learner_id"`
	CompletedChecks    int              `json:"completed_checks"`
	AverageRecall      float64          `json:"average_recall"`
	AverageConfidence  float64          `json:"average_confidence"`
	AverageApplication float64          `json:"average_application"`
	RecallByInterval   []IntervalRecall `json:"recall_by_interval"`
	StrongConcepts     []ConceptLevel   `json:"strong_concepts"`
	NeedsReview        []ConceptLevel   `json:"needs_review"`
}

type ConceptMasteryView struct {
	LearnerID      uuid.UUID  `json:"learner_id"`
	ConceptID      uuid.UUID  `json:"concept_id"`
	Stored         float64    `json:"stored"`
	Effective      float64    `json:"effective"`
	Decaying       bool       `json:"decaying"`
	TimesReviewed  int        `json:"times_reviewed"`
	FirstExposedAt time.Time  `json:"first_exposed_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	NextDueAt      *time.Time `json:"next_due_at,omitempty"`
}

type DeliveryService interface {
	StartEncounter(ctx context.Context, in StartEncounterInput) (*StartEncounterResult, error)
	RecordSignal(ctx context.Context, encounterID uuid.UUID, signalType string, value float64) error
	CompleteEncounter(ctx context.Context, encounterID uuid.UUID, rawAnswer string) (*CompleteEncounterResult, error)
	ListDueRetentionChecks(ctx context.Context, learnerID uuid.UUID, now time.Time) ([]RetentionCheckSummary, error)
	AnswerRetentionCheck(ctx context.Context, checkID uuid.UUID, rawAnswer string) (*AnswerRetentionResult, error)
	GetStyleProfile(ctx context.Context, learnerID uuid.UUID) (*StyleProfileView, error)
	RetentionStats(ctx context.Context, learnerID uuid.UUID, now time.Time) (*RetentionStatsView, error)
	ConceptMastery(ctx context.Context, learnerID, conceptID uuid.UUID, now time.Time) (*ConceptMasteryView, error)
	ExpireOverdueChecks(ctx context.Context, now time.Time) (int64, error)
}

type DeliveryDeps struct {
	Repos     repos.Set
	Evaluator comprehension.Evaluator
	Locker    learnerlock.Locker
	Tuning    tuning.Config
	// optional below
	Selector *bandit.Selector
	Metrics  *observability.Metrics
	Styles   []bandit.StyleID
	Now      func() time.Time
}

type deliveryService struct {
	log       *logger.Logger
	repos     repos.Set
	evaluator comprehension.Evaluator
	locker    learnerlock.Locker
	cfg       tuning.Config
	selector  *bandit.Selector
	metrics   *observability.Metrics
	styles    []bandit.StyleID
	known     map[bandit.StyleID]bool
	now       func() time.Time
}

func NewDeliveryService(baseLog *logger.Logger, deps DeliveryDeps) (DeliveryService, error) {
	if baseLog == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.Evaluator == nil {
		return nil, fmt.Errorf("comprehension evaluator required")
	}
	if deps.Locker == nil {
		return nil, fmt.Errorf("learner locker required")
	}
	if deps.Repos.Tx == nil || deps.Repos.Encounter == nil {
		return nil, fmt.Errorf("repos required")
	}
	if err := deps.Tuning.Validate(); err != nil {
		return nil, err
	}
	s := &deliveryService{
		log:       baseLog.With("service", "DeliveryService"),
		repos:     deps.Repos,
		evaluator: deps.Evaluator,
		locker:    deps.Locker,
		cfg:       deps.Tuning,
		selector:  deps.Selector,
		metrics:   deps.Metrics,
		styles:    deps.Styles,
		now:       deps.Now,
	}
	if s.selector == nil {
		s.selector = bandit.NewSelector(nil)
	}
	if len(s.styles) == 0 {
		s.styles = bandit.DefaultStyles
	}
	s.known = make(map[bandit.StyleID]bool, len(s.styles))
	for _, st := range s.styles {
		s.known[st] = true
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// withLearner runs fn in one transaction while holding the learner's lock.
func (s *deliveryService) withLearner(ctx context.Context, learnerID uuid.UUID, fn func(dbc dbctx.Context) error) error {
	unlock, err := s.locker.Lock(ctx, learnerID)
	if err != nil {
		return fmt.Errorf("lock learner: %w", err)
	}
	defer unlock()
	return s.repos.Tx.InTx(ctx, fn)
}

func (s *deliveryService) startOp(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "delivery."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		if err != nil {
			span.RecordError(err)
			if !isCallerError(err) {
				span.SetStatus(codes.Error, err.Error())
			}
		}
		s.metrics.ObserveOperation(op, start, err)
		span.End()
	}
}

func isCallerError(err error) bool {
	return apperrors.Is(err, apperrors.ErrInvalidArgument) ||
		apperrors.Is(err, apperrors.ErrNotFound) ||
		apperrors.Is(err, apperrors.ErrAlreadyCompleted)
}

// loadProfile reads the learner's profile and arms, creating the profile and
// the catalog arms on first use. Must run inside withLearner.
func (s *deliveryService) loadProfile(dbc dbctx.Context, learnerID uuid.UUID) (*bandit.Profile, error) {
	row, err := s.repos.StyleProfile.GetOrCreate(dbc, learnerID, string(s.cfg.UpdateRule))
	if err != nil {
		return nil, err
	}
	arms, err := s.repos.StyleProfile.ListArms(dbc, learnerID)
	if err != nil {
		return nil, err
	}
	p := profileFromRows(row, arms)
	if added := p.Ensure(s.styles...); len(added) > 0 {
		names := make([]string, len(added))
		for i, st := range added {
			names[i] = string(st)
		}
		if err := s.repos.StyleProfile.EnsureArms(dbc, learnerID, names); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func profileFromRows(row *types.LearnerStyleProfile, arms []*types.LearnerStyleArm) *bandit.Profile {
	rule := bandit.RuleThreshold
	if row != nil {
		rule = bandit.UpdateRule(row.UpdateRule)
	}
	p := bandit.NewProfile(rule)
	for _, a := range arms {
		if a == nil {
			continue
		}
		p.Arms[bandit.StyleID(a.Style)] = bandit.Params{Successes: a.Successes, Failures: a.Failures}
	}
	return p
}

// applyReward runs one bandit update for style and persists it as an atomic increment.
func (s *deliveryService) applyReward(dbc dbctx.Context, learnerID uuid.UUID, style string, reward float64) (bandit.Outcome, error) {
	p, err := s.loadProfile(dbc, learnerID)
	if err != nil {
		return bandit.Outcome{}, err
	}
	st := bandit.StyleID(style)
	if added := p.Ensure(st); len(added) > 0 {
		// style dropped from the catalog after the encounter started
		if err := s.repos.StyleProfile.EnsureArms(dbc, learnerID, []string{style}); err != nil {
			return bandit.Outcome{}, err
		}
	}
	out, err := bandit.Update(p, st, reward, s.cfg.Bandit)
	if err != nil {
		return bandit.Outcome{}, err
	}
	if err := s.repos.StyleProfile.IncrementArm(dbc, learnerID, style, out.SuccessesDelta, out.FailuresDelta); err != nil {
		return bandit.Outcome{}, err
	}
	return out, nil
}

func (s *deliveryService) brief(ctx context.Context, conceptID uuid.UUID) *types.ConceptBrief {
	b, err := s.repos.ConceptBrief.Get(dbctx.Context{Ctx: ctx}, conceptID)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			s.log.Warn("concept brief lookup failed", "concept_id", conceptID, "error", err)
		}
		return nil
	}
	return b
}

func (s *deliveryService) clock(now time.Time) time.Time {
	if now.IsZero() {
		return s.now()
	}
	return now.UTC()
}
