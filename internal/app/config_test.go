package app

import (
	"os"
	"testing"
	"time"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	unsetEnv(t, "REDIS_ADDR", "RETENTION_SWEEP_INTERVAL", "LEARNER_LOCK_TTL", "HTTP_ADDR", "TEMPORAL_ADDRESS")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr: want=:8080 got=%q", cfg.HTTPAddr)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("SweepInterval: want=5m got=%v", cfg.SweepInterval)
	}
	if cfg.LockTTL != 30*time.Second {
		t.Fatalf("LockTTL: want=30s got=%v", cfg.LockTTL)
	}
	if cfg.UseRedisLock() {
		t.Fatalf("no REDIS_ADDR should mean in-process locks")
	}
	if got := cfg.Database().Driver; got != "sqlite" {
		t.Fatalf("driver: want=sqlite got=%q", got)
	}
	if cfg.Temporal().Enabled() {
		t.Fatalf("temporal should be disabled without TEMPORAL_ADDRESS")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("RETENTION_SWEEP_INTERVAL", "90s")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("TEMPORAL_ADDRESS", "temporal:7233")
	t.Setenv("OPENAI_MAX_RETRIES", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SweepInterval != 90*time.Second {
		t.Fatalf("SweepInterval: want=90s got=%v", cfg.SweepInterval)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins: got=%v", cfg.CORSOrigins)
	}
	if !cfg.UseRedisLock() || !cfg.Temporal().Enabled() {
		t.Fatalf("redis and temporal should be enabled")
	}
	if cfg.OpenAI().MaxRetries != 0 {
		t.Fatalf("MaxRetries: want=0 got=%d", cfg.OpenAI().MaxRetries)
	}
}

func TestLoadConfigRejectsBadInterval(t *testing.T) {
	t.Setenv("RETENTION_SWEEP_INTERVAL", "-1s")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("negative interval should be rejected")
	}
	t.Setenv("RETENTION_SWEEP_INTERVAL", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("unparseable interval should be rejected")
	}
}
