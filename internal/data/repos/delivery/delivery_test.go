package delivery

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-delivery/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-delivery/internal/domain/delivery"
	"github.com/yungbote/neurobridge-delivery/internal/pkg/dbctx"
	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
)

var t0 = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func TestStyleProfileRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewStyleProfileRepo(db, testutil.Logger(t))

	userID := uuid.New()
	p, err := repo.GetOrCreate(dbc, userID, "continuous")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if p.UpdateRule != "continuous" {
		t.Fatalf("rule: want=continuous got=%s", p.UpdateRule)
	}
	again, err := repo.GetOrCreate(dbc, userID, "threshold")
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if again.ID != p.ID || again.UpdateRule != "continuous" {
		t.Fatalf("existing profile must keep its rule: got=%+v", again)
	}

	if err := repo.EnsureArms(dbc, userID, []string{"a", "b", "a"}); err != nil {
		t.Fatalf("EnsureArms: %v", err)
	}
	if err := repo.IncrementArm(dbc, userID, "a", 1, 0); err != nil {
		t.Fatalf("IncrementArm: %v", err)
	}
	if err := repo.IncrementArm(dbc, userID, "a", 0.25, 0.75); err != nil {
		t.Fatalf("IncrementArm: %v", err)
	}
	if err := repo.EnsureArms(dbc, userID, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("EnsureArms again: %v", err)
	}
	arms, err := repo.ListArms(dbc, userID)
	if err != nil || len(arms) != 3 {
		t.Fatalf("ListArms: err=%v len=%d", err, len(arms))
	}
	if arms[0].Style != "a" || arms[0].Successes != 2.25 || arms[0].Failures != 1.75 {
		t.Fatalf("arm a: got=%+v", arms[0])
	}
	if arms[2].Successes != 1 || arms[2].Failures != 1 {
		t.Fatalf("new arm prior: got=%+v", arms[2])
	}

	if err := repo.IncrementArm(dbc, userID, "zzz", 1, 0); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unknown arm: want=ErrNotFound got=%v", err)
	}
	if err := repo.IncrementArm(dbc, userID, "a", -1, 0); !apperrors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("negative increment: want=ErrInvalidArgument got=%v", err)
	}
	for _, d := range []float64{math.NaN(), math.Inf(1)} {
		if err := repo.IncrementArm(dbc, userID, "a", d, 1-d); !apperrors.Is(err, apperrors.ErrInvalidArgument) {
			t.Fatalf("increment %v: want=ErrInvalidArgument got=%v", d, err)
		}
	}
	arms, _ = repo.ListArms(dbc, userID)
	if arms[0].Successes != 2.25 || arms[0].Failures != 1.75 {
		t.Fatalf("rejected increments must not touch arm a: got=%+v", arms[0])
	}
	if _, err := repo.Get(dbc, uuid.New()); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing profile: want=ErrNotFound got=%v", err)
	}
}

func TestEncounterRepoCompleteOnce(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewEncounterRepo(db, testutil.Logger(t))

	e := &types.Encounter{UserID: uuid.New(), ConceptID: uuid.New(), StyleUsed: "visual_diagrams", StartedAt: t0}
	if err := repo.Create(dbc, e); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(dbc, &types.Encounter{}); !apperrors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("invalid create: want=ErrInvalidArgument got=%v", err)
	}

	c := EncounterCompletion{
		EndedAt:            t0.Add(10 * time.Minute),
		ActualMinutes:      10,
		EngagementScore:    0.9,
		ComprehensionScore: 0.8,
		ImmediateReward:    0.94,
		Feedback:           datatypes.JSON([]byte(`{"feedback":"ok"}`)),
	}
	ok, err := repo.Complete(dbc, e.ID, c)
	if err != nil || !ok {
		t.Fatalf("Complete: ok=%v err=%v", ok, err)
	}
	c.ImmediateReward = 0.1
	ok, err = repo.Complete(dbc, e.ID, c)
	if err != nil || ok {
		t.Fatalf("second Complete must lose: ok=%v err=%v", ok, err)
	}
	got, err := repo.GetByID(dbc, e.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ImmediateReward == nil || *got.ImmediateReward != 0.94 || !got.Completed() {
		t.Fatalf("completion fields: got=%+v", got)
	}

	if ok, err := repo.SetRetentionScoreIfUnset(dbc, e.ID, 0.39); err != nil || !ok {
		t.Fatalf("SetRetentionScoreIfUnset: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.SetRetentionScoreIfUnset(dbc, e.ID, 0.99); err != nil || ok {
		t.Fatalf("retention score is write-once: ok=%v err=%v", ok, err)
	}
	got, _ = repo.GetByID(dbc, e.ID)
	if got.RetentionScore == nil || *got.RetentionScore != 0.39 {
		t.Fatalf("retention score: got=%v", got.RetentionScore)
	}

	if _, err := repo.GetByID(dbc, uuid.New()); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing encounter: want=ErrNotFound got=%v", err)
	}
	if rows, err := repo.ListByUser(dbc, e.UserID); err != nil || len(rows) != 1 {
		t.Fatalf("ListByUser: err=%v len=%d", err, len(rows))
	}
}

func TestEncounterSignalRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewEncounterSignalRepo(db, testutil.Logger(t))

	encID := uuid.New()
	for i, kind := range []string{"time_on_content", "question_asked"} {
		if err := repo.Create(dbc, &types.EncounterSignal{EncounterID: encID, SignalType: kind, Value: 1, RecordedAt: t0.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	rows, err := repo.ListByEncounter(dbc, encID)
	if err != nil || len(rows) != 2 || rows[0].SignalType != "time_on_content" {
		t.Fatalf("ListByEncounter: err=%v rows=%v", err, rows)
	}
}

func seedChecks(t *testing.T, dbc dbctx.Context, repo RetentionCheckRepo, userID, encID uuid.UUID) []*types.RetentionCheck {
	t.Helper()
	day := 24 * time.Hour
	offsets := []time.Duration{day, 3 * day, 7 * day}
	rows := make([]*types.RetentionCheck, len(offsets))
	for i, off := range offsets {
		rows[i] = &types.RetentionCheck{
			UserID:        userID,
			ConceptID:     uuid.New(),
			EncounterID:   encID,
			Stage:         i,
			OffsetSeconds: int64(off / time.Second),
			DueAt:         t0.Add(off),
		}
	}
	if err := repo.CreateBatch(dbc, rows); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	return rows
}

func TestRetentionCheckRepoLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRetentionCheckRepo(db, testutil.Logger(t))

	userID, encID := uuid.New(), uuid.New()
	rows := seedChecks(t, dbc, repo, userID, encID)

	due, err := repo.ListDue(dbc, userID, t0.Add(4*24*time.Hour), t0.Add(24*time.Hour))
	if err != nil || len(due) != 2 {
		t.Fatalf("ListDue: err=%v len=%d", err, len(due))
	}
	if late, err := repo.ListDue(dbc, userID, t0.Add(5*24*time.Hour), t0.Add(2*24*time.Hour)); err != nil || len(late) != 1 || late[0].Stage != 1 {
		t.Fatalf("ListDue past grace: err=%v got=%v", err, late)
	}
	if due[0].Stage != 0 || due[1].Stage != 1 {
		t.Fatalf("due order: got stages %d,%d", due[0].Stage, due[1].Stage)
	}

	comp := CheckCompletion{CompletedAt: t0.Add(25 * time.Hour), RecallAccuracy: 0.4, Confidence: 0.5, ApplicationAbility: 0.3, RetentionReward: 0.39}
	if ok, err := repo.Complete(dbc, rows[0].ID, comp); err != nil || !ok {
		t.Fatalf("Complete: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.Complete(dbc, rows[0].ID, comp); err != nil || ok {
		t.Fatalf("second Complete must lose: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.Expire(dbc, rows[0].ID, t0); err != nil || ok {
		t.Fatalf("completed check must not expire: ok=%v err=%v", ok, err)
	}

	next, err := repo.GetPendingByStage(dbc, encID, 1)
	if err != nil || next == nil || next.ID != rows[1].ID {
		t.Fatalf("GetPendingByStage: next=%v err=%v", next, err)
	}
	if ok, err := repo.PullIn(dbc, next.ID, t0.Add(49*time.Hour)); err != nil || !ok {
		t.Fatalf("PullIn earlier: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.PullIn(dbc, next.ID, t0.Add(60*time.Hour)); err != nil || ok {
		t.Fatalf("PullIn later must be ignored: ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(dbc, next.ID)
	if !got.DueAt.Equal(t0.Add(49 * time.Hour)) {
		t.Fatalf("due after pull-in: want=%s got=%s", t0.Add(49*time.Hour), got.DueAt)
	}
	if np, err := repo.NextPending(dbc, encID); err != nil || np == nil || np.ID != next.ID {
		t.Fatalf("NextPending: got=%v err=%v", np, err)
	}

	n, err := repo.ExpireDueBefore(dbc, t0.Add(3*24*time.Hour), t0.Add(6*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("ExpireDueBefore: n=%d err=%v", n, err)
	}
	got, _ = repo.GetByID(dbc, next.ID)
	if got.Status != types.RetentionCheckExpired || got.ExpiredAt == nil {
		t.Fatalf("expired check: got=%+v", got)
	}
	if ok, err := repo.Complete(dbc, next.ID, comp); err != nil || ok {
		t.Fatalf("expired check must not complete: ok=%v err=%v", ok, err)
	}

	completed, err := repo.ListCompletedByUser(dbc, userID)
	if err != nil || len(completed) != 1 || completed[0].RetentionReward == nil || *completed[0].RetentionReward != 0.39 {
		t.Fatalf("ListCompletedByUser: err=%v rows=%v", err, completed)
	}
	all, err := repo.ListByEncounter(dbc, encID)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListByEncounter: err=%v len=%d", err, len(all))
	}
	if _, err := repo.GetByID(dbc, uuid.New()); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing check: want=ErrNotFound got=%v", err)
	}
}

func TestConceptMasteryRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewConceptMasteryRepo(db, testutil.Logger(t))

	userID, conceptID := uuid.New(), uuid.New()
	if err := repo.EnsureExists(dbc, userID, conceptID, t0); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	row, err := repo.Get(dbc, userID, conceptID)
	if err != nil || row.MasteryLevel != 0 || row.TimesReviewed != 0 {
		t.Fatalf("Get: row=%+v err=%v", row, err)
	}

	reviewed := t0.Add(24 * time.Hour)
	row.MasteryLevel = 0.3
	row.TimesReviewed = 1
	row.LastReviewedAt = &reviewed
	row.NextDueAt = &reviewed
	if err := repo.SaveReview(dbc, row); err != nil {
		t.Fatalf("SaveReview: %v", err)
	}
	if err := repo.EnsureExists(dbc, userID, conceptID, t0.Add(time.Hour)); err != nil {
		t.Fatalf("EnsureExists again: %v", err)
	}
	row, _ = repo.Get(dbc, userID, conceptID)
	if row.MasteryLevel != 0.3 || row.TimesReviewed != 1 || !row.FirstExposedAt.Equal(t0) {
		t.Fatalf("EnsureExists must not reset: got=%+v", row)
	}
	if rows, err := repo.ListByUser(dbc, userID); err != nil || len(rows) != 1 {
		t.Fatalf("ListByUser: err=%v len=%d", err, len(rows))
	}
	if _, err := repo.Get(dbc, userID, uuid.New()); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing mastery: want=ErrNotFound got=%v", err)
	}
}

func TestConceptBriefRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewConceptBriefRepo(db, testutil.Logger(t))

	conceptID := uuid.New()
	if b, err := repo.Get(dbc, conceptID); err != nil || b != nil {
		t.Fatalf("missing brief: want nil,nil got=%v,%v", b, err)
	}
	b := &types.ConceptBrief{
		ConceptID:       conceptID,
		Title:           "Fractions",
		ExpectedMinutes: 12,
		ExpectedPoints:  datatypes.JSON([]byte(`["numerator","denominator"]`)),
	}
	if err := repo.Upsert(dbc, b); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	b.ExpectedMinutes = 15
	if err := repo.Upsert(dbc, b); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	got, err := repo.Get(dbc, conceptID)
	if err != nil || got == nil || got.ExpectedMinutes != 15 {
		t.Fatalf("Get: got=%+v err=%v", got, err)
	}
	if pts := got.Points(); len(pts) != 2 || pts[0] != "numerator" {
		t.Fatalf("Points: got=%v", pts)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Fatalf("nil is not a violation")
	}
	db := testutil.DB(t)
	row := &types.LearnerStyleArm{ID: uuid.New(), UserID: uuid.New(), Style: "x", Successes: 1, Failures: 1, CreatedAt: t0, UpdatedAt: t0}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := *row
	dup.ID = uuid.New()
	if err := db.Create(&dup).Error; !IsUniqueViolation(err) {
		t.Fatalf("duplicate arm: want unique violation got=%v", err)
	}
}
