// Package bandit is the modality selector: a Beta–Bernoulli Thompson Sampling
// bandit over teaching styles, one arm per style, held per learner.
//
// A Profile is a plain value loaded and saved by the caller. Nothing in this
// package is process-global except the Selector's random source, which is
// guarded by its own mutex.
package bandit

import (
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
)

type StyleID string

// Well-known styles. Any non-empty StyleID is accepted; these are the ones the
// lesson generator has templates for.
const (
	StyleNarrative   StyleID = "narrative_story"
	StyleInteractive StyleID = "interactive_hands_on"
	StyleSocratic    StyleID = "socratic_dialogue"
	StyleVisual      StyleID = "visual_diagrams"
)

var DefaultStyles = []StyleID{StyleNarrative, StyleInteractive, StyleSocratic, StyleVisual}

// UpdateRule converts a scalar reward into posterior evidence. A profile keeps
// the rule it was created with; mixing rules would corrupt the posterior.
type UpdateRule string

const (
	RuleThreshold  UpdateRule = "threshold"
	RuleContinuous UpdateRule = "continuous"
)

func (r UpdateRule) Valid() bool { return r == RuleThreshold || r == RuleContinuous }

// Params is one arm's Beta(successes, failures) belief. Both start at 1.
type Params struct {
	Successes float64 `json:"successes"`
	Failures  float64 `json:"failures"`
}

func Prior() Params { return Params{Successes: 1, Failures: 1} }

// Observations is (successes-1)+(failures-1).
func (p Params) Observations() float64 { return (p.Successes - 1) + (p.Failures - 1) }

func (p Params) Effectiveness() float64 {
	return p.Successes / (p.Successes + p.Failures)
}

type Profile struct {
	Rule UpdateRule
	Arms map[StyleID]Params
}

func NewProfile(rule UpdateRule) *Profile {
	if !rule.Valid() {
		rule = RuleThreshold
	}
	return &Profile{Rule: rule, Arms: map[StyleID]Params{}}
}

// Ensure adds the default prior for every style not yet in the profile and
// returns the styles that were added.
func (p *Profile) Ensure(styles ...StyleID) []StyleID {
	if p.Arms == nil {
		p.Arms = map[StyleID]Params{}
	}
	var added []StyleID
	for _, s := range styles {
		if s == "" {
			continue
		}
		if _, ok := p.Arms[s]; ok {
			continue
		}
		p.Arms[s] = Prior()
		added = append(added, s)
	}
	return added
}

// Styles returns the profile's styles in a stable order.
func (p *Profile) Styles() []StyleID {
	out := make([]StyleID, 0, len(p.Arms))
	for s := range p.Arms {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Profile) TotalObservations() float64 {
	var total float64
	for _, a := range p.Arms {
		total += a.Observations()
	}
	return total
}

func (p *Profile) arm(style StyleID) (Params, error) {
	if p == nil {
		return Params{}, apperrors.InvalidArgument("nil style profile")
	}
	a, ok := p.Arms[style]
	if !ok {
		return Params{}, apperrors.InvalidArgument("style %q not in profile", style)
	}
	return a, nil
}

type Config struct {
	// success iff reward > SuccessThreshold under RuleThreshold
	SuccessThreshold float64 `yaml:"success_threshold"`
	// observations at which Confidence reaches 1
	ConfidenceSaturation float64 `yaml:"confidence_saturation"`
}

func DefaultConfig() Config {
	return Config{SuccessThreshold: 0.6, ConfidenceSaturation: 20}
}

// Outcome is the evidence one Update added to an arm. Repositories apply it as
// an atomic increment so concurrent writers cannot lose counts.
type Outcome struct {
	Style          StyleID `json:"style"`
	Success        bool    `json:"success"`
	SuccessesDelta float64 `json:"successes_delta"`
	FailuresDelta  float64 `json:"failures_delta"`
}

// Update folds reward (clamped to [0,1]) into the style's arm using the
// profile's rule and returns the applied delta. A non-finite reward is rejected
// and leaves the arm untouched.
func Update(p *Profile, style StyleID, reward float64, cfg Config) (Outcome, error) {
	a, err := p.arm(style)
	if err != nil {
		return Outcome{}, err
	}
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		return Outcome{}, apperrors.InvalidArgument("reward must be finite, got %v", reward)
	}
	reward = clamp01(reward)
	out := Outcome{Style: style, Success: reward > cfg.SuccessThreshold}
	switch p.Rule {
	case RuleContinuous:
		out.SuccessesDelta = reward
		out.FailuresDelta = 1 - reward
	default:
		if out.Success {
			out.SuccessesDelta = 1
		} else {
			out.FailuresDelta = 1
		}
	}
	a.Successes += out.SuccessesDelta
	a.Failures += out.FailuresDelta
	p.Arms[style] = a
	return out, nil
}

func Effectiveness(p *Profile, style StyleID) (float64, error) {
	a, err := p.arm(style)
	if err != nil {
		return 0, err
	}
	return a.Effectiveness(), nil
}

func Confidence(p *Profile, style StyleID, cfg Config) (float64, error) {
	a, err := p.arm(style)
	if err != nil {
		return 0, err
	}
	return confidence(a.Observations(), cfg.ConfidenceSaturation), nil
}

func confidence(observations, saturation float64) float64 {
	if saturation <= 0 {
		return 1
	}
	if observations <= 0 {
		return 0
	}
	if c := observations / saturation; c < 1 {
		return c
	}
	return 1
}

// Selector draws Thompson samples. It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(src rand.Source) *Selector {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Selector{rng: rand.New(src)}
}

// Select returns the style with the largest Beta sample among available.
// A non-empty forced style that is one of available short-circuits sampling.
func (s *Selector) Select(p *Profile, available []StyleID, forced StyleID) (StyleID, error) {
	if len(available) == 0 {
		return "", apperrors.InvalidArgument("no available styles")
	}
	arms := make([]Params, len(available))
	for i, style := range available {
		a, err := p.arm(style)
		if err != nil {
			return "", err
		}
		arms[i] = a
	}
	if forced != "" {
		for _, style := range available {
			if style == forced {
				return forced, nil
			}
		}
		return "", apperrors.InvalidArgument("forced style %q not among available styles", forced)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	best := -1.0
	var winners []StyleID
	for i, style := range available {
		x := sampleBeta(s.rng, arms[i].Successes, arms[i].Failures)
		switch {
		case x > best:
			best = x
			winners = append(winners[:0], style)
		case x == best:
			winners = append(winners, style)
		}
	}
	if len(winners) == 1 {
		return winners[0], nil
	}
	return winners[s.rng.IntN(len(winners))], nil
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
