// Package mastery tracks per-concept mastery as an exponential moving average
// of retention rewards, with decay applied only when read.
package mastery

import (
	"math"
	"time"

	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
)

type State struct {
	Level         float64
	TimesReviewed int
	LastReviewed  *time.Time
	NextDue       *time.Time
}

type Config struct {
	// weight of the new reward while TimesReviewed < WarmupReviews
	EarlyWeight   float64 `yaml:"early_weight"`
	LateWeight    float64 `yaml:"late_weight"`
	WarmupReviews int     `yaml:"warmup_reviews"`
	// fraction of mastery kept after one DecayPeriod past due
	WeeklyRetention float64       `yaml:"weekly_retention"`
	DecayPeriod     time.Duration `yaml:"decay_period"`
}

func DefaultConfig() Config {
	return Config{
		EarlyWeight:     0.3,
		LateWeight:      0.15,
		WarmupReviews:   3,
		WeeklyRetention: 0.9,
		DecayPeriod:     7 * 24 * time.Hour,
	}
}

func (c Config) Validate() error {
	if c.EarlyWeight <= 0 || c.EarlyWeight > 1 || c.LateWeight <= 0 || c.LateWeight > 1 {
		return apperrors.InvalidArgument("mastery: weights must be in (0,1]")
	}
	if c.WarmupReviews < 0 {
		return apperrors.InvalidArgument("mastery: warmup_reviews must be >= 0")
	}
	if c.WeeklyRetention <= 0 || c.WeeklyRetention > 1 {
		return apperrors.InvalidArgument("mastery: weekly_retention must be in (0,1]")
	}
	if c.DecayPeriod <= 0 {
		return apperrors.InvalidArgument("mastery: decay_period must be > 0")
	}
	return nil
}

// Lambda is the per-day decay rate.
func (c Config) Lambda() float64 {
	days := c.DecayPeriod.Hours() / 24
	return -math.Log(c.WeeklyRetention) / days
}

func (c Config) weight(timesReviewed int) float64 {
	if timesReviewed < c.WarmupReviews {
		return c.EarlyWeight
	}
	return c.LateWeight
}

// Update folds a retention reward into s. nextDue is the next pending check's
// due time, or the triggering check's due time when none remains.
func Update(s State, reward float64, now, nextDue time.Time, cfg Config) State {
	w := cfg.weight(s.TimesReviewed)
	s.Level = clamp01(s.Level*(1-w) + clamp01(reward)*w)
	s.TimesReviewed++
	reviewed := now
	due := nextDue
	s.LastReviewed = &reviewed
	s.NextDue = &due
	return s
}

// Effective is the read-time level: decayed by exp(-λ·days) past NextDue.
// s itself is never modified.
func Effective(s State, now time.Time, cfg Config) float64 {
	if s.NextDue == nil || !now.After(*s.NextDue) {
		return s.Level
	}
	days := now.Sub(*s.NextDue).Hours() / 24
	return clamp01(s.Level * math.Exp(-cfg.Lambda()*days))
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
