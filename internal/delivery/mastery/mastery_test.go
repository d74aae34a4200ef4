package mastery

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestUpdateWeights(t *testing.T) {
	cfg := DefaultConfig()
	s := State{}
	due := t0.Add(48 * time.Hour)

	s = Update(s, 1, t0, due, cfg)
	if !near(s.Level, 0.3) || s.TimesReviewed != 1 {
		t.Fatalf("first review: want level=0.3 reviews=1 got=%+v", s)
	}
	s = Update(s, 1, t0, due, cfg)
	s = Update(s, 1, t0, due, cfg)
	before := s.Level
	s = Update(s, 0, t0, due, cfg)
	if want := before * 0.85; !near(s.Level, want) {
		t.Fatalf("fourth review uses late weight: want=%v got=%v", want, s.Level)
	}
	if s.LastReviewed == nil || !s.LastReviewed.Equal(t0) {
		t.Fatalf("last reviewed not set: %+v", s.LastReviewed)
	}
	if s.NextDue == nil || !s.NextDue.Equal(due) {
		t.Fatalf("next due not set: %+v", s.NextDue)
	}
}

func TestUpdateBounded(t *testing.T) {
	cfg := DefaultConfig()
	s := State{Level: 0.99}
	for i := 0; i < 20; i++ {
		s = Update(s, 5, t0, t0, cfg)
		if s.Level < 0 || s.Level > 1 {
			t.Fatalf("level out of bounds: %v", s.Level)
		}
	}
}

func TestEffectiveDecayIsNonDestructive(t *testing.T) {
	cfg := DefaultConfig()
	due := t0
	s := State{Level: 0.8, TimesReviewed: 2, NextDue: &due}

	if got := Effective(s, t0.Add(-time.Hour), cfg); got != 0.8 {
		t.Fatalf("before due: want=0.8 got=%v", got)
	}
	week := Effective(s, t0.Add(7*24*time.Hour), cfg)
	if !near(week, 0.72) {
		t.Fatalf("one week overdue: want=0.72 got=%v", week)
	}
	if s.Level != 0.8 {
		t.Fatalf("stored level changed: %v", s.Level)
	}
	if again := Effective(s, t0.Add(7*24*time.Hour), cfg); again != week {
		t.Fatalf("repeated read differs: %v vs %v", week, again)
	}
	if later := Effective(s, t0.Add(30*24*time.Hour), cfg); later >= week {
		t.Fatalf("decay should grow with time: week=%v month=%v", week, later)
	}
}

func TestEffectiveWithoutDue(t *testing.T) {
	if got := Effective(State{Level: 0.5}, t0, DefaultConfig()); got != 0.5 {
		t.Fatalf("no due date: want=0.5 got=%v", got)
	}
}

func TestLambda(t *testing.T) {
	want := -math.Log(0.9) / 7
	if got := DefaultConfig().Lambda(); !near(got, want) {
		t.Fatalf("lambda: want=%v got=%v", want, got)
	}
}
