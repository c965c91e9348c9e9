package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: unexpected error: %v", err)
	}

	if cfg.ArbitrationPeriod != 7*24*time.Hour {
		t.Fatalf("expected default arbitration period of 7 days, got %s", cfg.ArbitrationPeriod)
	}
	if cfg.DaoVotingThreshold != 0.66 {
		t.Fatalf("expected default voting threshold 0.66, got %v", cfg.DaoVotingThreshold)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr :8080, got %q", cfg.ListenAddr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ARBITRATION_PERIOD_DAYS", "14")
	t.Setenv("DAO_VOTING_THRESHOLD", "0.75")
	t.Setenv("LISTEN_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: unexpected error: %v", err)
	}

	if cfg.ArbitrationPeriod != 14*24*time.Hour {
		t.Fatalf("expected 14 day arbitration period, got %s", cfg.ArbitrationPeriod)
	}
	if cfg.DaoVotingThreshold != 0.75 {
		t.Fatalf("expected voting threshold 0.75, got %v", cfg.DaoVotingThreshold)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected listen addr :9090, got %q", cfg.ListenAddr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("ARBITRATION_PERIOD_DAYS", "zero")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric arbitration period")
	}
	t.Setenv("ARBITRATION_PERIOD_DAYS", "7")

	t.Setenv("DAO_VOTING_THRESHOLD", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range voting threshold")
	}
}
