package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-delivery/internal/data/repos"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/bandit"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/comprehension"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/mastery"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/retention"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/reward"
	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
)

func (s *deliveryService) ListDueRetentionChecks(ctx context.Context, learnerID uuid.UUID, now time.Time) (_ []RetentionCheckSummary, err error) {
	ctx, done := s.startOp(ctx, "ListDueRetentionChecks")
	defer done(&err)

	if learnerID == uuid.Nil {
		return nil, apperrors.InvalidArgument("learner_id is required")
	}
	now = s.clock(now)
	cutoff := retention.ExpiryCutoff(now, s.cfg.Retention.GracePeriod)
	rows, err := s.repos.RetentionCheck.ListDue(dbctx.Context{Ctx: ctx}, learnerID, now, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list due checks: %w", err)
	}
	briefs := map[uuid.UUID]*types.ConceptBrief{}
	out := make([]RetentionCheckSummary, 0, len(rows))
	for _, r := range rows {
		b, ok := briefs[r.ConceptID]
		if !ok {
			b = s.brief(ctx, r.ConceptID)
			briefs[r.ConceptID] = b
		}
		sum := RetentionCheckSummary{
			CheckID:     r.ID,
			EncounterID: r.EncounterID,
			ConceptID:   r.ConceptID,
			Stage:       r.Stage,
			Interval:    retention.IntervalLabel(r.Offset()),
			DueAt:       r.DueAt,
			ExpiresAt:   r.DueAt.Add(s.cfg.Retention.GracePeriod),
		}
		if b != nil {
			sum.ConceptTitle = b.Title
			sum.RecallQuestion = b.RecallQuestion
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *deliveryService) AnswerRetentionCheck(ctx context.Context, checkID uuid.UUID, rawAnswer string) (_ *AnswerRetentionResult, err error) {
	ctx, done := s.startOp(ctx, "AnswerRetentionCheck", attribute.String("check_id", checkID.String()))
	defer done(&err)

	readDBC := dbctx.Context{Ctx: ctx}
	check, err := s.repos.RetentionCheck.GetByID(readDBC, checkID)
	if err != nil {
		return nil, err
	}
	if check.Status != types.RetentionCheckPending {
		return nil, apperrors.AlreadyCompleted("retention check %s is %s", checkID, check.Status)
	}

	now := s.now()
	if retention.IsExpired(check.DueAt, now, s.cfg.Retention.GracePeriod) {
		var expired bool
		err := s.withLearner(ctx, check.UserID, func(dbc dbctx.Context) error {
			var err error
			expired, err = s.repos.RetentionCheck.Expire(dbc, check.ID, now)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("expire retention check: %w", err)
		}
		if expired {
			s.metrics.ObserveRetentionTransition(types.RetentionCheckExpired, 1)
		}
		return nil, apperrors.AlreadyCompleted("retention check %s expired", checkID)
	}

	enc, err := s.repos.Encounter.GetByID(readDBC, check.EncounterID)
	if err != nil {
		return nil, err
	}
	req := comprehension.RecallRequest{ConceptID: check.ConceptID.String(), Answer: rawAnswer}
	if enc.EndedAt != nil {
		req.DaysSince = now.Sub(*enc.EndedAt).Hours() / 24
	}
	if b := s.brief(ctx, check.ConceptID); b != nil {
		req.ConceptTitle = b.Title
		req.ExpectedPoints = b.Points()
		req.Question = b.RecallQuestion
	}
	graded, err := s.evaluator.EvaluateRecall(ctx, req)
	if err != nil {
		s.metrics.ObserveEvaluatorFailure("recall")
		s.log.Warn("recall evaluation failed", "check_id", checkID, "error", err)
		return nil, apperrors.EvaluationUnavailable(err)
	}

	out := &AnswerRetentionResult{
		CheckID:     check.ID,
		Recall:      graded.Recall,
		Confidence:  graded.Confidence,
		Application: graded.Application,
		Feedback:    graded.Feedback,
	}
	out.RetentionReward = reward.Retention(graded.Recall, graded.Confidence, graded.Application, s.cfg.Reward)

	var outcome bandit.Outcome
	err = s.withLearner(ctx, check.UserID, func(dbc dbctx.Context) error {
		feedback, _ := json.Marshal(graded)
		ok, err := s.repos.RetentionCheck.Complete(dbc, check.ID, repos.CheckCompletion{
			CompletedAt:        now,
			RecallAccuracy:     graded.Recall,
			Confidence:         graded.Confidence,
			ApplicationAbility: graded.Application,
			RetentionReward:    out.RetentionReward,
			Feedback:           datatypes.JSON(feedback),
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.AlreadyCompleted("retention check %s", check.ID)
		}
		if _, err := s.repos.Encounter.SetRetentionScoreIfUnset(dbc, enc.ID, out.RetentionReward); err != nil {
			return err
		}

		outcome, err = s.applyReward(dbc, check.UserID, enc.StyleUsed, out.RetentionReward)
		if err != nil {
			return err
		}

		next, err := s.repos.RetentionCheck.GetPendingByStage(dbc, enc.ID, check.Stage+1)
		if err != nil {
			return err
		}
		if next != nil {
			if due, move := retention.PullIn(s.cfg.Retention, check.Stage, now, next.DueAt, out.RetentionReward); move {
				moved, err := s.repos.RetentionCheck.PullIn(dbc, next.ID, due)
				if err != nil {
					return err
				}
				out.Rescheduled = moved
			}
		}

		nextDue := check.DueAt
		pending, err := s.repos.RetentionCheck.NextPending(dbc, enc.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			nextDue = pending.DueAt
			out.NextCheckDueAt = &pending.DueAt
		}

		row, err := s.masteryRow(dbc, check.UserID, check.ConceptID, enc.StartedAt)
		if err != nil {
			return err
		}
		st := mastery.Update(masteryState(row), out.RetentionReward, now, nextDue, s.cfg.Mastery)
		row.MasteryLevel = st.Level
		row.TimesReviewed = st.TimesReviewed
		row.LastReviewedAt = st.LastReviewed
		row.NextDueAt = st.NextDue
		out.MasteryLevel = st.Level
		return s.repos.ConceptMastery.SaveReview(dbc, row)
	})
	if err != nil {
		return nil, fmt.Errorf("answer retention check: %w", err)
	}

	s.metrics.ObserveRetentionTransition(types.RetentionCheckCompleted, 1)
	s.metrics.ObserveBanditUpdate("retention", enc.StyleUsed, outcome.Success, out.RetentionReward)
	s.log.Info("retention check answered",
		"learner_id", check.UserID,
		"check_id", check.ID,
		"stage", check.Stage,
		"reward", out.RetentionReward,
		"rescheduled", out.Rescheduled,
	)
	return out, nil
}

// masteryRow loads the learner's mastery for the concept, creating it when the
// encounter predates mastery tracking.
func (s *deliveryService) masteryRow(dbc dbctx.Context, learnerID, conceptID uuid.UUID, exposedAt time.Time) (*types.ConceptMastery, error) {
	row, err := s.repos.ConceptMastery.Get(dbc, learnerID, conceptID)
	if err == nil {
		return row, nil
	}
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if err := s.repos.ConceptMastery.EnsureExists(dbc, learnerID, conceptID, exposedAt); err != nil {
		return nil, err
	}
	return s.repos.ConceptMastery.Get(dbc, learnerID, conceptID)
}

func masteryState(row *types.ConceptMastery) mastery.State {
	return mastery.State{
		Level:         row.MasteryLevel,
		TimesReviewed: row.TimesReviewed,
		LastReviewed:  row.LastReviewedAt,
		NextDue:       row.NextDueAt,
	}
}

func (s *deliveryService) ExpireOverdueChecks(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, done := s.startOp(ctx, "ExpireOverdueChecks")
	defer done(&err)

	now = s.clock(now)
	n, err := s.repos.RetentionCheck.ExpireDueBefore(dbctx.Context{Ctx: ctx}, retention.ExpiryCutoff(now, s.cfg.Retention.GracePeriod), now)
	s.metrics.ObserveSweep(n, err)
	if err != nil {
		return 0, fmt.Errorf("expire overdue checks: %w", err)
	}
	s.metrics.ObserveRetentionTransition(types.RetentionCheckExpired, int(n))
	if n > 0 {
		s.log.Info("expired overdue retention checks", "count", n)
	}
	return n, nil
}
