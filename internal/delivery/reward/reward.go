// Package reward turns encounter and retention outcomes into the scalar
// rewards fed to the bandit.
package reward

import (
	"math"

	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
)

type Config struct {
	ComprehensionWeight float64 `yaml:"comprehension_weight"`
	EngagementWeight    float64 `yaml:"engagement_weight"`
	TimingBonus         float64 `yaml:"timing_bonus"`
	TimingLow           float64 `yaml:"timing_low"`
	TimingHigh          float64 `yaml:"timing_high"`

	RecallWeight      float64 `yaml:"recall_weight"`
	ConfidenceWeight  float64 `yaml:"confidence_weight"`
	ApplicationWeight float64 `yaml:"application_weight"`
}

func DefaultConfig() Config {
	return Config{
		ComprehensionWeight: 0.6,
		EngagementWeight:    0.4,
		TimingBonus:         0.1,
		TimingLow:           0.8,
		TimingHigh:          1.2,
		RecallWeight:        0.5,
		ConfidenceWeight:    0.2,
		ApplicationWeight:   0.3,
	}
}

func (c Config) Validate() error {
	if c.ComprehensionWeight < 0 || c.EngagementWeight < 0 || c.TimingBonus < 0 {
		return apperrors.InvalidArgument("reward: immediate weights must be >= 0")
	}
	if c.TimingLow <= 0 || c.TimingHigh < c.TimingLow {
		return apperrors.InvalidArgument("reward: timing window must satisfy 0 < low <= high")
	}
	if c.RecallWeight < 0 || c.ConfidenceWeight < 0 || c.ApplicationWeight < 0 {
		return apperrors.InvalidArgument("reward: retention weights must be >= 0")
	}
	if sum := c.RecallWeight + c.ConfidenceWeight + c.ApplicationWeight; math.Abs(sum-1) > 1e-6 {
		return apperrors.InvalidArgument("reward: retention weights must sum to 1, got %v", sum)
	}
	if c.RecallWeight < c.ConfidenceWeight || c.RecallWeight < c.ApplicationWeight {
		return apperrors.InvalidArgument("reward: recall must carry the largest retention weight")
	}
	return nil
}

// InTimingWindow reports whether actual/expected falls inside [low, high].
// A non-positive expected duration never qualifies.
func (c Config) InTimingWindow(actualMinutes, expectedMinutes float64) bool {
	if expectedMinutes <= 0 || actualMinutes < 0 {
		return false
	}
	ratio := actualMinutes / expectedMinutes
	return ratio >= c.TimingLow && ratio <= c.TimingHigh
}

// Immediate is the end-of-encounter reward in [0,1].
func Immediate(engagement, comprehension, actualMinutes, expectedMinutes float64, cfg Config) float64 {
	r := cfg.ComprehensionWeight*clamp01(comprehension) + cfg.EngagementWeight*clamp01(engagement)
	if cfg.InTimingWindow(actualMinutes, expectedMinutes) {
		r += cfg.TimingBonus
	}
	return clamp01(r)
}

// Retention is the delayed reward in [0,1]; it is applied as a separate
// bandit update, never merged into the immediate reward.
func Retention(recall, confidence, application float64, cfg Config) float64 {
	return clamp01(cfg.RecallWeight*clamp01(recall) +
		cfg.ConfidenceWeight*clamp01(confidence) +
		cfg.ApplicationWeight*clamp01(application))
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
