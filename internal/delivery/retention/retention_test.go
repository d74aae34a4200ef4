package retention

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestPlanUsesLadder(t *testing.T) {
	plan := Plan(t0, DefaultLadder())
	want := []time.Duration{24 * time.Hour, 72 * time.Hour, 7 * 24 * time.Hour, 14 * 24 * time.Hour, 30 * 24 * time.Hour}
	if len(plan) != len(want) {
		t.Fatalf("plan length: want=%d got=%d", len(want), len(plan))
	}
	for i, pc := range plan {
		if pc.Stage != i {
			t.Fatalf("stage: want=%d got=%d", i, pc.Stage)
		}
		if got := pc.DueAt.Sub(t0); got != want[i] {
			t.Fatalf("stage %d offset: want=%s got=%s", i, want[i], got)
		}
	}
}

func TestPullInLowReward(t *testing.T) {
	cfg := DefaultConfig()
	// stage 0 (24h) answered at t0+24h; stage 1 is due at t0+72h; gap 48h ⇒ pull to +24h
	completedAt := t0.Add(24 * time.Hour)
	due, ok := PullIn(cfg, 0, completedAt, t0.Add(72*time.Hour), 0.39)
	if !ok {
		t.Fatalf("reward 0.39 should pull the next stage in")
	}
	if want := completedAt.Add(24 * time.Hour); !due.Equal(want) {
		t.Fatalf("pulled due: want=%s got=%s", want, due)
	}
}

func TestPullInHighRewardKeepsLadder(t *testing.T) {
	cfg := DefaultConfig()
	if _, ok := PullIn(cfg, 0, t0.Add(24*time.Hour), t0.Add(72*time.Hour), 0.7); ok {
		t.Fatalf("reward at threshold must leave ladder unchanged")
	}
}

func TestPullInNeverLater(t *testing.T) {
	cfg := DefaultConfig()
	// answered very late: completedAt + gap/2 lands after the current due
	completedAt := t0.Add(70 * time.Hour)
	if _, ok := PullIn(cfg, 0, completedAt, t0.Add(72*time.Hour), 0.1); ok {
		t.Fatalf("pull-in must never move a check later")
	}
}

func TestPullInMinimumOffset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ladder = Ladder{time.Hour, 3 * time.Hour, 100 * time.Hour}
	completedAt := t0
	due, ok := PullIn(cfg, 0, completedAt, t0.Add(100*time.Hour), 0)
	if !ok {
		t.Fatalf("expected pull-in")
	}
	if want := completedAt.Add(12 * time.Hour); !due.Equal(want) {
		t.Fatalf("minimum pull-in: want=%s got=%s", want, due)
	}
}

func TestPullInLastStage(t *testing.T) {
	cfg := DefaultConfig()
	if _, ok := PullIn(cfg, len(cfg.Ladder)-1, t0, t0.Add(time.Hour*1000), 0); ok {
		t.Fatalf("last stage has no successor")
	}
}

func TestIsExpired(t *testing.T) {
	grace := 72 * time.Hour
	if IsExpired(t0, t0.Add(grace), grace) {
		t.Fatalf("exactly at grace boundary is not expired")
	}
	if !IsExpired(t0, t0.Add(grace+time.Second), grace) {
		t.Fatalf("past grace should be expired")
	}
	if got := ExpiryCutoff(t0.Add(grace), grace); !got.Equal(t0) {
		t.Fatalf("cutoff: want=%s got=%s", t0, got)
	}
}

func TestLadderValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if err := (Ladder{time.Hour, time.Hour}).Validate(); err == nil {
		t.Fatalf("non-increasing ladder should be rejected")
	}
	if err := (Ladder{}).Validate(); err == nil {
		t.Fatalf("empty ladder should be rejected")
	}
}

func TestIntervalLabel(t *testing.T) {
	day := 24 * time.Hour
	for i, d := range DefaultLadder() {
		if got := IntervalLabel(d); got != IntervalLabels[i] {
			t.Fatalf("IntervalLabel(%s): want=%q got=%q", d, IntervalLabels[i], got)
		}
	}
	if got := IntervalLabel(60 * day); got != "1 month+" {
		t.Fatalf("IntervalLabel(60d): got=%q", got)
	}
}
