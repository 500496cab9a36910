package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "8090" {
		t.Errorf("Expected Port to be 8090, got %s", cfg.Port)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Database.MaxConns != 25 {
		t.Errorf("Expected DB MaxConns to be 25, got %d", cfg.Database.MaxConns)
	}

	if cfg.Access.FreeDataset != "sp500" {
		t.Errorf("Expected free dataset sp500, got %s", cfg.Access.FreeDataset)
	}

	if len(cfg.Access.PaidTiers) != 2 {
		t.Errorf("Expected 2 default paid tiers, got %v", cfg.Access.PaidTiers)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	os.Setenv("PORT", "9000")
	os.Setenv("ENV", "production")
	os.Setenv("FUNDAMENTALS_DERIVED_PAGE_SIZE", "1000")
	os.Setenv("ACCESS_PAID_TIERS", "plus, pro ,premium")

	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("ENV")
		os.Unsetenv("FUNDAMENTALS_DERIVED_PAGE_SIZE")
		os.Unsetenv("ACCESS_PAID_TIERS")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be 9000, got %s", cfg.Port)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}

	if cfg.Fundamentals.DerivedPageSize != 1000 {
		t.Errorf("Expected derived page size 1000, got %d", cfg.Fundamentals.DerivedPageSize)
	}

	// List values are trimmed
	want := []string{"plus", "pro", "premium"}
	if len(cfg.Access.PaidTiers) != len(want) {
		t.Fatalf("Expected %v, got %v", want, cfg.Access.PaidTiers)
	}
	for i, tier := range want {
		if cfg.Access.PaidTiers[i] != tier {
			t.Errorf("Expected tier %q at %d, got %q", tier, i, cfg.Access.PaidTiers[i])
		}
	}
}

func TestValidate(t *testing.T) {
	os.Setenv("ENV", "nonsense")
	defer os.Unsetenv("ENV")

	if _, err := Load(); err == nil {
		t.Error("Expected validation error for bad ENV")
	}
}
