// Package tuning collects the delivery engine's algorithm constants. Defaults
// ship embedded; an optional YAML file overlays them.
package tuning

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-delivery/internal/delivery/bandit"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/mastery"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/retention"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/reward"
	"github.com/yungbote/neurobridge-delivery/internal/delivery/signals"
)

//go:embed defaults.yaml
var defaultsFS embed.FS

type Config struct {
	// rule assigned to newly created style profiles
	UpdateRule bandit.UpdateRule `yaml:"update_rule"`

	Bandit    bandit.Config    `yaml:"bandit"`
	Signals   signals.Config   `yaml:"signals"`
	Reward    reward.Config    `yaml:"reward"`
	Retention retention.Config `yaml:"retention"`
	Mastery   mastery.Config   `yaml:"mastery"`
}

// Default returns the compiled-in constants.
func Default() Config {
	return Config{
		UpdateRule: bandit.RuleThreshold,
		Bandit:     bandit.DefaultConfig(),
		Signals:    signals.DefaultConfig(),
		Reward:     reward.DefaultConfig(),
		Retention:  retention.DefaultConfig(),
		Mastery:    mastery.DefaultConfig(),
	}
}

// Load reads the embedded defaults and overlays path when non-empty.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := defaultsFS.ReadFile("defaults.yaml")
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("tuning: embedded defaults: %w", err)
	}
	if path = strings.TrimSpace(path); path != "" {
		override, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("tuning: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(override, &cfg); err != nil {
			return Config{}, fmt.Errorf("tuning: parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !c.UpdateRule.Valid() {
		return fmt.Errorf("tuning: unknown update_rule %q", c.UpdateRule)
	}
	if c.Bandit.SuccessThreshold < 0 || c.Bandit.SuccessThreshold >= 1 {
		return fmt.Errorf("tuning: bandit.success_threshold must be in [0,1)")
	}
	if c.Bandit.ConfidenceSaturation <= 0 {
		return fmt.Errorf("tuning: bandit.confidence_saturation must be > 0")
	}
	for _, v := range []interface{ Validate() error }{c.Signals, c.Reward, c.Retention, c.Mastery} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
