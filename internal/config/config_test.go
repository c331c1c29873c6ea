package config

import "testing"

func TestDefaultConfig_MatchesSpecDefaults(t *testing.T) {
	// Act
	cfg := DefaultConfig()

	// Assert
	if cfg.RateLimit.MaxRequests != 100 || cfg.RateLimit.WindowSeconds != 60 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.Breaker.FailureThreshold != 5 || cfg.Breaker.WindowSeconds != 60 || cfg.Breaker.RecoverySeconds != 30 {
		t.Fatalf("unexpected breaker defaults: %+v", cfg.Breaker)
	}
	if cfg.LLM.ConfidenceThreshold != 0.7 {
		t.Fatalf("ConfidenceThreshold = %v, want 0.7", cfg.LLM.ConfidenceThreshold)
	}
	if cfg.Cache.TTLSeconds != 1800 || cfg.Cache.MaxValueBytes != 1048576 {
		t.Fatalf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if len(cfg.Validator.AllowlistedTables) != 3 {
		t.Fatalf("expected 3 default allowlisted tables, got %d", len(cfg.Validator.AllowlistedTables))
	}
}

func TestLoad_ToleratesNoConfigFileInSearchPath(t *testing.T) {
	// Act: no explicit path, and no config.yaml in the search paths
	// this test process runs from — exercises the "no config file
	// present" tolerance path.
	cfg, err := Load("")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error with no config file present: %v", err)
	}
	if cfg.RateLimit.MaxRequests != 100 {
		t.Fatalf("expected defaults to apply, got %+v", cfg.RateLimit)
	}
}
