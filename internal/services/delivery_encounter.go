package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-delivery/internal/data/repos"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/bandit"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/comprehension"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/retention"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/reward"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/signals"
	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
)

func (s *deliveryService) StartEncounter(ctx context.Context, in StartEncounterInput) (_ *StartEncounterResult, err error) {
	ctx, done := s.startOp(ctx, "StartEncounter", attribute.String("concept_id", in.ConceptID.String()))
	defer done(&err)

	if in.LearnerID == uuid.Nil || in.ConceptID == uuid.Nil {
		return nil, apperrors.InvalidArgument("learner_id and concept_id are required")
	}
	available, err := s.parseStyles(in.AvailableStyles)
	if err != nil {
		return nil, err
	}
	forced := bandit.StyleID(strings.TrimSpace(in.ForceStyle))

	var expected float64
	if b := s.brief(ctx, in.ConceptID); b != nil {
		expected = b.ExpectedMinutes
	}

	now := s.now()
	out := &StartEncounterResult{EffectivenessSnapshot: map[string]float64{}}
	err = s.withLearner(ctx, in.LearnerID, func(dbc dbctx.Context) error {
		p, err := s.loadProfile(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		style, err := s.selector.Select(p, available, forced)
		if err != nil {
			return err
		}
		for _, st := range available {
			out.EffectivenessSnapshot[string(st)] = p.Arms[st].Effectiveness()
		}
		enc := &types.Encounter{
			UserID:          in.LearnerID,
			ConceptID:       in.ConceptID,
			StyleUsed:       string(style),
			Forced:          forced != "",
			ExpectedMinutes: expected,
			StartedAt:       now,
		}
		if err := s.repos.Encounter.Create(dbc, enc); err != nil {
			return err
		}
		if err := s.repos.ConceptMastery.EnsureExists(dbc, in.LearnerID, in.ConceptID, now); err != nil {
			return err
		}
		out.EncounterID = enc.ID
		out.StyleUsed = enc.StyleUsed
		out.Forced = enc.Forced
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start encounter: %w", err)
	}
	s.metrics.ObserveSelection(out.StyleUsed, out.Forced)
	s.log.Debug("encounter started",
		"learner_id", in.LearnerID,
		"encounter_id", out.EncounterID,
		"style", out.StyleUsed,
		"forced", out.Forced,
	)
	return out, nil
}

// parseStyles rejects an empty set and styles outside the catalog; duplicates collapse.
func (s *deliveryService) parseStyles(raw []string) ([]bandit.StyleID, error) {
	out := make([]bandit.StyleID, 0, len(raw))
	seen := map[bandit.StyleID]bool{}
	for _, r := range raw {
		st := bandit.StyleID(strings.TrimSpace(r))
		if st == "" || seen[st] {
			continue
		}
		if !s.known[st] {
			return nil, apperrors.InvalidArgument("unknown style %q", st)
		}
		seen[st] = true
		out = append(out, st)
	}
	if len(out) == 0 {
		return nil, apperrors.InvalidArgument("no available styles")
	}
	return out, nil
}

func (s *deliveryService) RecordSignal(ctx context.Context, encounterID uuid.UUID, signalType string, value float64) (err error) {
	ctx, done := s.startOp(ctx, "RecordSignal", attribute.String("encounter_id", encounterID.String()))
	defer done(&err)

	kind, err := signals.ParseKind(signalType)
	if err != nil {
		return err
	}
	var scratch signals.Counts
	if err := scratch.Add(kind, value); err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx}
	enc, err := s.repos.Encounter.GetByID(dbc, encounterID)
	if err != nil {
		return err
	}
	if enc.Completed() {
		return apperrors.AlreadyCompleted("encounter %s has ended", encounterID)
	}
	return s.repos.EncounterSignal.Create(dbc, &types.EncounterSignal{
		EncounterID: encounterID,
		SignalType:  string(kind),
		Value:       value,
		RecordedAt:  s.now(),
	})
}

func (s *deliveryService) CompleteEncounter(ctx context.Context, encounterID uuid.UUID, rawAnswer string) (_ *CompleteEncounterResult, err error) {
	ctx, done := s.startOp(ctx, "CompleteEncounter", attribute.String("encounter_id", encounterID.String()))
	defer done(&err)

	enc, err := s.repos.Encounter.GetByID(dbctx.Context{Ctx: ctx}, encounterID)
	if err != nil {
		return nil, err
	}
	if enc.Completed() {
		return nil, apperrors.AlreadyCompleted("encounter %s", encounterID)
	}

	req := comprehension.Request{ConceptID: enc.ConceptID.String(), Answer: rawAnswer}
	if b := s.brief(ctx, enc.ConceptID); b != nil {
		req.ConceptTitle = b.Title
		req.ExpectedPoints = b.Points()
		req.Question = b.ExitQuestion
	}
	graded, err := s.evaluator.Evaluate(ctx, req)
	if err != nil {
		s.metrics.ObserveEvaluatorFailure("exit")
		s.log.Warn("exit evaluation failed", "encounter_id", encounterID, "error", err)
		return nil, apperrors.EvaluationUnavailable(err)
	}

	now := s.now()
	out := &CompleteEncounterResult{
		EncounterID:        enc.ID,
		StyleUsed:          enc.StyleUsed,
		ComprehensionScore: graded.Score,
		Feedback:           graded.Feedback,
		MatchedPoints:      graded.MatchedPoints,
		MissingPoints:      graded.MissingPoints,
	}
	var outcome bandit.Outcome
	err = s.withLearner(ctx, enc.UserID, func(dbc dbctx.Context) error {
		rows, err := s.repos.EncounterSignal.ListByEncounter(dbc, enc.ID)
		if err != nil {
			return err
		}
		counts := countSignals(rows)
		out.ActualMinutes = counts.ActualMinutes(enc.StartedAt, now)
		out.Engagement = signals.Engagement(counts, enc.ExpectedMinutes, s.cfg.Signals)
		out.EngagementScore = out.Engagement.Total
		out.ImmediateReward = reward.Immediate(out.EngagementScore, graded.Score, out.ActualMinutes, enc.ExpectedMinutes, s.cfg.Reward)

		feedback, _ := json.Marshal(graded)
		ok, err := s.repos.Encounter.Complete(dbc, enc.ID, repos.EncounterCompletion{
			EndedAt:            now,
			ActualMinutes:      out.ActualMinutes,
			EngagementScore:    out.EngagementScore,
			ComprehensionScore: graded.Score,
			ImmediateReward:    out.ImmediateReward,
			Feedback:           datatypes.JSON(feedback),
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.AlreadyCompleted("encounter %s", enc.ID)
		}

		outcome, err = s.applyReward(dbc, enc.UserID, enc.StyleUsed, out.ImmediateReward)
		if err != nil {
			return err
		}

		plan := retention.Plan(now, s.cfg.Retention.Ladder)
		checks := make([]*types.RetentionCheck, len(plan))
		for i, pc := range plan {
			checks[i] = &types.RetentionCheck{
				UserID:        enc.UserID,
				ConceptID:     enc.ConceptID,
				EncounterID:   enc.ID,
				Stage:         pc.Stage,
				OffsetSeconds: int64(s.cfg.Retention.Ladder[i] / time.Second),
				DueAt:         pc.DueAt,
			}
			out.RetentionChecks = append(out.RetentionChecks, pc.DueAt)
		}
		return s.repos.RetentionCheck.CreateBatch(dbc, checks)
	})
	if err != nil {
		return nil, fmt.Errorf("complete encounter: %w", err)
	}
	out.Success = outcome.Success
	s.metrics.ObserveBanditUpdate("immediate", enc.StyleUsed, outcome.Success, out.ImmediateReward)
	s.log.Info("encounter completed",
		"learner_id", enc.UserID,
		"encounter_id", enc.ID,
		"style", enc.StyleUsed,
		"reward", out.ImmediateReward,
		"success", outcome.Success,
	)
	return out, nil
}

// countSignals folds stored rows; rows were validated on insert, so a bad
// row here is skipped rather than failing the completion.
func countSignals(rows []*types.EncounterSignal) signals.Counts {
	var c signals.Counts
	for _, r := range rows {
		if r == nil {
			continue
		}
		_ = c.Add(signals.Kind(r.SignalType), r.Value)
	}
	return c
}
