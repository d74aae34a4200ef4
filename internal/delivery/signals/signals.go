// Package signals reduces raw encounter events to an engagement score.
package signals

import (
	"math"
	"time"

	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
)

type Kind string

const (
	KindTimeOnContent Kind = "time_on_content"
	KindQuestionAsked Kind = "question_asked"
	KindInteraction   Kind = "interaction"
	KindScrolledBack  Kind = "scrolled_back"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTimeOnContent, KindQuestionAsked, KindInteraction, KindScrolledBack:
		return k, nil
	}
	return "", apperrors.InvalidArgument("unknown signal type %q", s)
}

// Counts is the accumulated state of one encounter's signals.
type Counts struct {
	TimeOnContentSeconds float64 `json:"time_on_content_seconds"`
	Questions            int     `json:"questions"`
	Interactions         int     `json:"interactions"`
	Rereads              int     `json:"rereads"`
}

// Add folds one event into c. Values must be non-negative. time_on_content
// values are seconds; count kinds add max(1, round(value)).
func (c *Counts) Add(kind Kind, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return apperrors.InvalidArgument("signal value must be finite")
	}
	if value < 0 {
		return apperrors.InvalidArgument("%s must be >= 0, got %v", kind, value)
	}
	switch kind {
	case KindTimeOnContent:
		c.TimeOnContentSeconds += value
	case KindQuestionAsked:
		c.Questions += countOf(value)
	case KindInteraction:
		c.Interactions += countOf(value)
	case KindScrolledBack:
		c.Rereads += countOf(value)
	default:
		return apperrors.InvalidArgument("unknown signal type %q", kind)
	}
	return nil
}

// countOf rounds a non-negative count; a recorded event counts at least once.
func countOf(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}

// ActualMinutes prefers accumulated time_on_content and falls back to wall clock.
func (c Counts) ActualMinutes(startedAt, endedAt time.Time) float64 {
	if c.TimeOnContentSeconds > 0 {
		return c.TimeOnContentSeconds / 60
	}
	if endedAt.After(startedAt) {
		return endedAt.Sub(startedAt).Minutes()
	}
	return 0
}

type Config struct {
	DefaultOptimalMinutes float64 `yaml:"default_optimal_minutes"`
	// time-on-content hits 0 at TimeCutoffFactor × optimal
	TimeCutoffFactor float64 `yaml:"time_cutoff_factor"`

	QuestionSaturation    int `yaml:"question_saturation"`
	InteractionSaturation int `yaml:"interaction_saturation"`
	RereadSaturation      int `yaml:"reread_saturation"`

	TimeWeight        float64 `yaml:"time_weight"`
	QuestionWeight    float64 `yaml:"question_weight"`
	InteractionWeight float64 `yaml:"interaction_weight"`
	RereadWeight      float64 `yaml:"reread_weight"`
}

func DefaultConfig() Config {
	return Config{
		DefaultOptimalMinutes: 10,
		TimeCutoffFactor:      3,
		QuestionSaturation:    3,
		InteractionSaturation: 5,
		RereadSaturation:      2,
		TimeWeight:            0.4,
		QuestionWeight:        0.2,
		InteractionWeight:     0.25,
		RereadWeight:          0.15,
	}
}

func (c Config) Validate() error {
	if c.DefaultOptimalMinutes <= 0 {
		return apperrors.InvalidArgument("signals: default_optimal_minutes must be > 0")
	}
	if c.TimeCutoffFactor <= 1 {
		return apperrors.InvalidArgument("signals: time_cutoff_factor must be > 1")
	}
	if c.QuestionSaturation < 1 || c.InteractionSaturation < 1 || c.RereadSaturation < 1 {
		return apperrors.InvalidArgument("signals: saturation counts must be >= 1")
	}
	w := []float64{c.TimeWeight, c.QuestionWeight, c.InteractionWeight, c.RereadWeight}
	sum := 0.0
	for _, x := range w {
		if x < 0 {
			return apperrors.InvalidArgument("signals: weights must be >= 0")
		}
		sum += x
	}
	if math.Abs(sum-1) > 1e-6 {
		return apperrors.InvalidArgument("signals: weights must sum to 1, got %v", sum)
	}
	return nil
}

// Breakdown holds the clipped sub-scores and their weighted total.
type Breakdown struct {
	Time        float64 `json:"time"`
	Questions   float64 `json:"questions"`
	Interaction float64 `json:"interaction"`
	Rereads     float64 `json:"rereads"`
	Total       float64 `json:"total"`
}

// Engagement scores c against optimalMinutes (cfg.DefaultOptimalMinutes when <= 0).
func Engagement(c Counts, optimalMinutes float64, cfg Config) Breakdown {
	if optimalMinutes <= 0 {
		optimalMinutes = cfg.DefaultOptimalMinutes
	}
	b := Breakdown{
		Time:        TimeScore(c.TimeOnContentSeconds/60, optimalMinutes, cfg.TimeCutoffFactor),
		Questions:   Saturating(c.Questions, cfg.QuestionSaturation),
		Interaction: Saturating(c.Interactions, cfg.InteractionSaturation),
		Rereads:     Saturating(c.Rereads, cfg.RereadSaturation),
	}
	b.Total = clamp01(cfg.TimeWeight*b.Time +
		cfg.QuestionWeight*b.Questions +
		cfg.InteractionWeight*b.Interaction +
		cfg.RereadWeight*b.Rereads)
	return b
}

// TimeScore is triangular: 0 at 0, 1 at optimal, 0 again at cutoff×optimal.
func TimeScore(minutes, optimal, cutoff float64) float64 {
	if optimal <= 0 || minutes <= 0 {
		return 0
	}
	if minutes <= optimal {
		return clamp01(minutes / optimal)
	}
	end := optimal * cutoff
	if minutes >= end {
		return 0
	}
	return clamp01((end - minutes) / (end - optimal))
}

func Saturating(n, saturation int) float64 {
	if n <= 0 || saturation <= 0 {
		return 0
	}
	return clamp01(float64(n) / float64(saturation))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
