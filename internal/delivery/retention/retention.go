// Package retention holds the spaced-retrieval ladder and the pure scheduling
// rules: initial plan, adaptive pull-in and grace-window expiry.
package retention

import (
	"time"

	apperrors "github.com/yungbote/neurobridge-delivery/internal/pkg/errors"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// Ladder is the list of offsets from encounter end, one per stage.
type Ladder []time.Duration

func DefaultLadder() Ladder {
	day := 24 * time.Hour
	return Ladder{day, 3 * day, 7 * day, 14 * day, 30 * day}
}

func (l Ladder) Validate() error {
	if len(l) == 0 {
		return apperrors.InvalidArgument("retention: ladder is empty")
	}
	var prev time.Duration
	for i, d := range l {
		if d <= prev {
			return apperrors.InvalidArgument("retention: ladder stage %d must be > %s", i, prev)
		}
		prev = d
	}
	return nil
}

// Gap is the ladder distance between stage and stage+1.
func (l Ladder) Gap(stage int) (time.Duration, bool) {
	if stage < 0 || stage+1 >= len(l) {
		return 0, false
	}
	return l[stage+1] - l[stage], true
}

type Config struct {
	Ladder Ladder `yaml:"ladder"`
	// pending checks past due_at+GracePeriod expire
	GracePeriod time.Duration `yaml:"grace_period"`
	// rewards below this pull the next stage in
	RescheduleThreshold float64       `yaml:"reschedule_threshold"`
	MinPullIn           time.Duration `yaml:"min_pull_in"`
}

func DefaultConfig() Config {
	return Config{
		Ladder:              DefaultLadder(),
		GracePeriod:         72 * time.Hour,
		RescheduleThreshold: 0.7,
		MinPullIn:           12 * time.Hour,
	}
}

func (c Config) Validate() error {
	if err := c.Ladder.Validate(); err != nil {
		return err
	}
	if c.GracePeriod <= 0 {
		return apperrors.InvalidArgument("retention: grace_period must be > 0")
	}
	if c.RescheduleThreshold < 0 || c.RescheduleThreshold > 1 {
		return apperrors.InvalidArgument("retention: reschedule_threshold must be in [0,1]")
	}
	if c.MinPullIn < 0 {
		return apperrors.InvalidArgument("retention: min_pull_in must be >= 0")
	}
	return nil
}

type PlannedCheck struct {
	Stage int
	DueAt time.Time
}

// Plan returns one check per ladder stage, due at endedAt + offset.
func Plan(endedAt time.Time, ladder Ladder) []PlannedCheck {
	out := make([]PlannedCheck, len(ladder))
	for i, d := range ladder {
		out[i] = PlannedCheck{Stage: i, DueAt: endedAt.Add(d)}
	}
	return out
}

// PullIn computes where the stage after completedStage should move to given
// the retention reward. ok is false when the ladder stays unchanged: the reward
// cleared the threshold, there is no next stage, or the proposed time is not
// earlier than currentDue.
func PullIn(cfg Config, completedStage int, completedAt, currentDue time.Time, reward float64) (time.Time, bool) {
	if reward >= cfg.RescheduleThreshold {
		return time.Time{}, false
	}
	gap, ok := cfg.Ladder.Gap(completedStage)
	if !ok {
		return time.Time{}, false
	}
	offset := gap / 2
	if offset < cfg.MinPullIn {
		offset = cfg.MinPullIn
	}
	proposed := completedAt.Add(offset)
	if !proposed.Before(currentDue) {
		return time.Time{}, false
	}
	return proposed, true
}

// IsExpired reports whether a pending check due at dueAt is past its grace window.
func IsExpired(dueAt, now time.Time, grace time.Duration) bool {
	return now.After(dueAt.Add(grace))
}

// ExpiryCutoff is the due_at bound for the sweep: checks due before it are expired.
func ExpiryCutoff(now time.Time, grace time.Duration) time.Time {
	return now.Add(-grace)
}

// IntervalLabel buckets a ladder offset for reporting.
func IntervalLabel(offset time.Duration) string {
	days := offset.Hours() / 24
	switch {
	case days <= 1:
		return "1 day"
	case days <= 3:
		return "3 days"
	case days <= 7:
		return "1 week"
	case days <= 14:
		return "2 weeks"
	default:
		return "1 month+"
	}
}

var IntervalLabels = []string{"1 day", "3 days", "1 week", "2 weeks", "1 month+"}
