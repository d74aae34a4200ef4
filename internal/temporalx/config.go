package temporalx

import (
	"strings"
	"time"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	AutoRegisterNamespace bool
	NamespaceRetention    time.Duration
	DialTimeout           time.Duration
	DialMaxWait           time.Duration

	// cron spec for the retention expiry sweep; empty disables registration
	SweepCron string
	// worker concurrency for activities and workflow tasks
	Concurrency int
}

// Enabled reports whether a Temporal frontend is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Address) != "" }

// WithDefaults fills namespace, task queue and dial settings left empty.
func (c Config) WithDefaults() Config {
	c.Address = strings.TrimSpace(c.Address)
	c.Namespace = stringsOr(strings.TrimSpace(c.Namespace), "neurobridge-delivery")
	c.TaskQueue = stringsOr(strings.TrimSpace(c.TaskQueue), "neurobridge-delivery")
	c.ClientCertPath = strings.TrimSpace(c.ClientCertPath)
	c.ClientKeyPath = strings.TrimSpace(c.ClientKeyPath)
	c.ClientCAPath = strings.TrimSpace(c.ClientCAPath)
	if c.NamespaceRetention <= 0 {
		c.NamespaceRetention = 7 * 24 * time.Hour
	}
	if c.NamespaceRetention > 365*24*time.Hour {
		c.NamespaceRetention = 365 * 24 * time.Hour
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	}
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	return c
}

func (c Config) hasTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func stringsOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
