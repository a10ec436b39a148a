// Package config holds the explicit, caller-assembled options the engine
// consumes immutably, replacing the global-configuration-at-construction
// pattern the original engine used (spec §9).
package config

import "time"

// LockRetry controls the advisory lock's exponential backoff (spec §5).
// The policy itself is unspecified by spec.md; SPEC_FULL.md fixes the
// defaults below.
type LockRetry struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultLockRetry is the backoff policy resolved in SPEC_FULL.md: 50ms
// base, factor 2, capped at 2s, 10 attempts before LockUnavailable.
var DefaultLockRetry = LockRetry{
	BaseDelay:   50 * time.Millisecond,
	Factor:      2,
	MaxDelay:    2 * time.Second,
	MaxAttempts: 10,
}

// Config is the full set of options recognised by the engine (spec §6).
type Config struct {
	Target              string
	BaselineVersion     string
	BaselineDescription string
	Encoding            string
	Locations           []string
	Timeout             time.Duration
	TablePrefix         string
	AllowOutOfOrder     bool
	LockRetry           LockRetry
}

// Default returns a Config populated with spec §6's defaults.
func Default() Config {
	return Config{
		Target:              "LATEST",
		BaselineVersion:     "1",
		BaselineDescription: "<< Cassandra Baseline >>",
		Encoding:            "UTF-8",
		Locations:           []string{"db/migration"},
		Timeout:             60 * time.Second,
		TablePrefix:         "",
		AllowOutOfOrder:     false,
		LockRetry:           DefaultLockRetry,
	}
}
