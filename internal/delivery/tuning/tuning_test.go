package tuning

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-delivery/internal/delivery/bandit"
)

func TestEmbeddedDefaultsMatchCompiled(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := Default(); !reflect.DeepEqual(cfg, want) {
		t.Fatalf("embedded defaults drifted:\nwant=%+v\ngot=%+v", want, cfg)
	}
}

func TestOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	body := "update_rule: continuous\nretention:\n  grace_period: 96h\nmastery:\n  late_weight: 0.2\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UpdateRule != bandit.RuleContinuous {
		t.Fatalf("update rule: want=continuous got=%s", cfg.UpdateRule)
	}
	if cfg.Retention.GracePeriod != 96*time.Hour {
		t.Fatalf("grace: want=96h got=%s", cfg.Retention.GracePeriod)
	}
	if cfg.Mastery.LateWeight != 0.2 {
		t.Fatalf("late weight: want=0.2 got=%v", cfg.Mastery.LateWeight)
	}
	if cfg.Mastery.EarlyWeight != 0.3 {
		t.Fatalf("untouched key changed: early weight=%v", cfg.Mastery.EarlyWeight)
	}
	if len(cfg.Retention.Ladder) != 5 {
		t.Fatalf("ladder should keep defaults: %v", cfg.Retention.Ladder)
	}
}

func TestOverrideRejectedWhenInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("retention:\n  ladder: [72h, 24h]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("decreasing ladder should fail validation")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing override file should fail")
	}
}
