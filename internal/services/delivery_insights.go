package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-delivery/internal/delivery/bandit"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/mastery"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/retention"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
)

const (
	bestStyleCount        = 2
	strugglingBelow       = 0.6
	strugglingMinObserved = 1
	conceptListSize       = 5
	needsReviewBelow      = 0.7
)

// GetStyleProfile reports the learner's arms. A learner with no profile yet
// gets the uniform prior over the catalog; nothing is written.
func (s *deliveryService) GetStyleProfile(ctx context.Context, learnerID uuid.UUID) (_ *StyleProfileView, err error) {
	ctx, done := s.startOp(ctx, "GetStyleProfile")
	defer done(&err)

	if learnerID == uuid.Nil {
		return nil, apperrors.InvalidArgument("learner_id is required")
	}
	dbc := dbctx.Context{Ctx: ctx}
	p := bandit.NewProfile(s.cfg.UpdateRule)
	row, err := s.repos.StyleProfile.Get(dbc, learnerID)
	switch {
	case err == nil:
		arms, err := s.repos.StyleProfile.ListArms(dbc, learnerID)
		if err != nil {
			return nil, fmt.Errorf("get style profile: %w", err)
		}
		p = profileFromRows(row, arms)
	case !apperrors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("get style profile: %w", err)
	}
	p.Ensure(s.styles...)

	out := &StyleProfileView{
		LearnerID:         learnerID,
		UpdateRule:        string(p.Rule),
		TotalObservations: p.TotalObservations(),
		BestStyles:        []string{},
		StrugglingStyles:  []string{},
	}
	for _, st := range p.Styles() {
		a := p.Arms[st]
		conf, _ := bandit.Confidence(p, st, s.cfg.Bandit)
		out.Styles = append(out.Styles, StyleStats{
			Style:         string(st),
			Effectiveness: a.Effectiveness(),
			Confidence:    conf,
			Successes:     a.Successes,
			Failures:      a.Failures,
			Observations:  a.Observations(),
		})
	}

	ranked := make([]StyleStats, 0, len(out.Styles))
	for _, st := range out.Styles {
		if st.Observations > 0 {
			ranked = append(ranked, st)
		}
		if st.Effectiveness < strugglingBelow && st.Observations > strugglingMinObserved {
			out.StrugglingStyles = append(out.StrugglingStyles, st.Style)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Effectiveness > ranked[j].Effectiveness })
	for i := 0; i < len(ranked) && i < bestStyleCount; i++ {
		out.BestStyles = append(out.BestStyles, ranked[i].Style)
	}
	return out, nil
}

func (s *deliveryService) RetentionStats(ctx context.Context, learnerID uuid.UUID, now time.Time) (_ *RetentionStatsView, err error) {
	ctx, done := s.startOp(ctx, "RetentionStats")
	defer done(&err)

	if learnerID == uuid.Nil {
		return nil, apperrors.InvalidArgument("learner_id is required")
	}
	now = s.clock(now)
	dbc := dbctx.Context{Ctx: ctx}
	checks, err := s.repos.RetentionCheck.ListCompletedByUser(dbc, learnerID)
	if err != nil {
		return nil, fmt.Errorf("retention stats: %w", err)
	}
	out := &RetentionStatsView{
		LearnerID:        learnerID,
		RecallByInterval: []IntervalRecall{},
		StrongConcepts:   []ConceptLevel{},
		NeedsReview:      []ConceptLevel{},
	}

	type acc struct {
		n   int
		sum float64
	}
	byInterval := map[string]*acc{}
	var recall, conf, app float64
	for _, c := range checks {
		if c.RecallAccuracy == nil {
			continue
		}
		out.CompletedChecks++
		recall += *c.RecallAccuracy
		conf += deref(c.Confidence)
		app += deref(c.ApplicationAbility)
		label := retention.IntervalLabel(c.Offset())
		a := byInterval[label]
		if a == nil {
			a = &acc{}
			byInterval[label] = a
		}
		a.n++
		a.sum += *c.RecallAccuracy
	}
	if n := float64(out.CompletedChecks); n > 0 {
		out.AverageRecall = recall / n
		out.AverageConfidence = conf / n
		out.AverageApplication = app / n
	}
	for _, label := range retention.IntervalLabels {
		if a := byInterval[label]; a != nil {
			out.RecallByInterval = append(out.RecallByInterval, IntervalRecall{
				Interval:      label,
				Checks:        a.n,
				AverageRecall: a.sum / float64(a.n),
			})
		}
	}

	rows, err := s.repos.ConceptMastery.ListByUser(dbc, learnerID)
	if err != nil {
		return nil, fmt.Errorf("retention stats: %w", err)
	}
	levels := make([]ConceptLevel, 0, len(rows))
	for _, r := range rows {
		if r.TimesReviewed == 0 {
			continue
		}
		lvl := ConceptLevel{ConceptID: r.ConceptID, Mastery: mastery.Effective(masteryState(r), now, s.cfg.Mastery)}
		if b := s.brief(ctx, r.ConceptID); b != nil {
			lvl.Title = b.Title
		}
		levels = append(levels, lvl)
	}
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Mastery > levels[j].Mastery })
	for i := 0; i < len(levels) && i < conceptListSize; i++ {
		out.StrongConcepts = append(out.StrongConcepts, levels[i])
	}
	for i := len(levels) - 1; i >= 0 && len(out.NeedsReview) < conceptListSize; i-- {
		if levels[i].Mastery < needsReviewBelow {
			out.NeedsReview = append(out.NeedsReview, levels[i])
		}
	}
	return out, nil
}

func (s *deliveryService) ConceptMastery(ctx context.Context, learnerID, conceptID uuid.UUID, now time.Time) (_ *ConceptMasteryView, err error) {
	ctx, done := s.startOp(ctx, "ConceptMastery")
	defer done(&err)

	if learnerID == uuid.Nil || conceptID == uuid.Nil {
		return nil, apperrors.InvalidArgument("learner_id and concept_id are required")
	}
	now = s.clock(now)
	row, err := s.repos.ConceptMastery.Get(dbctx.Context{Ctx: ctx}, learnerID, conceptID)
	if err != nil {
		return nil, err
	}
	st := masteryState(row)
	eff := mastery.Effective(st, now, s.cfg.Mastery)
	return &ConceptMasteryView{
		LearnerID:      learnerID,
		ConceptID:      conceptID,
		Stored:         row.MasteryLevel,
		Effective:      eff,
		Decaying:       row.NextDueAt != nil && now.After(*row.NextDueAt),
		TimesReviewed:  row.TimesReviewed,
		FirstExposedAt: row.FirstExposedAt,
		LastReviewedAt: row.LastReviewedAt,
		NextDueAt:      row.NextDueAt,
	}, nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
