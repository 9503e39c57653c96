package config

import "time"

const (
	defaultSessionIdleTTL       = 30 * time.Minute
	defaultSessionSweepInterval = time.Minute
	minSessionSweepInterval     = time.Second
)

// SessionConfig controls the lifetime of per-browser auth contexts held in memory.
type SessionConfig struct {
	// IdleTTL is how long an auth context survives without requests before it is torn down.
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	// SweepInterval is how often idle auth contexts are collected.
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`

	// BrowserCookie names the cookie carrying the opaque browser id.
	BrowserCookie string `env:"SESSION_BROWSER_COOKIE" envDefault:"scolay_browser"`
}

// Sanitize applies defaults for zero or invalid durations.
func (s *SessionConfig) Sanitize() {
	if s.IdleTTL <= 0 {
		s.IdleTTL = defaultSessionIdleTTL
	}
	if s.SweepInterval <= 0 {
		s.SweepInterval = defaultSessionSweepInterval
	}
	if s.SweepInterval < minSessionSweepInterval {
		s.SweepInterval = minSessionSweepInterval
	}
	if s.BrowserCookie == "" {
		s.BrowserCookie = "scolay_browser"
	}
}
