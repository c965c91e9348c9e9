// Package config reads process configuration from the environment once at
// start. Dispute settings apply uniformly to all disputes; they are not
// per-dispute configurable.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every setting the process consumes.
type Config struct {
	// DatabaseURL selects the postgres store. When empty the process runs
	// on the in-memory store.
	DatabaseURL string

	// JWTSecret signs API tokens.
	JWTSecret string

	// ListenAddr is the HTTP bind address.
	ListenAddr string

	// ArbitrationPeriod bounds every arbitration decision window.
	ArbitrationPeriod time.Duration

	// DaoVotingThreshold is the majority fraction required for DAO voting
	// arbitration, in (0, 1].
	DaoVotingThreshold float64
}

const (
	defaultArbitrationDays    = 7
	defaultDaoVotingThreshold = 0.66
	defaultListenAddr         = ":8080"
)

// Load reads and validates the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		ListenAddr:         defaultListenAddr,
		ArbitrationPeriod:  defaultArbitrationDays * 24 * time.Hour,
		DaoVotingThreshold: defaultDaoVotingThreshold,
	}

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	if v := os.Getenv("ARBITRATION_PERIOD_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return Config{}, fmt.Errorf("config: invalid ARBITRATION_PERIOD_DAYS %q", v)
		}
		cfg.ArbitrationPeriod = time.Duration(days) * 24 * time.Hour
	}

	if v := os.Getenv("DAO_VOTING_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil || threshold <= 0 || threshold > 1 {
			return Config{}, fmt.Errorf("config: invalid DAO_VOTING_THRESHOLD %q", v)
		}
		cfg.DaoVotingThreshold = threshold
	}

	return cfg, nil
}
