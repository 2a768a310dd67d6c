package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("THREAD_RESOLUTION", "")
	t.Setenv("RATE_LIMIT_WHITELIST", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
	if cfg.ThreadResolution != "pair" {
		t.Errorf("resolution = %q, want pair", cfg.ThreadResolution)
	}
	if cfg.AnalyticsResponseWeight != 0.7 || cfg.AnalyticsEngagementWeight != 0.3 {
		t.Errorf("analytics weights = %v/%v", cfg.AnalyticsResponseWeight, cfg.AnalyticsEngagementWeight)
	}
	if len(cfg.RateLimitWhitelist) != 0 {
		t.Errorf("whitelist = %v, want empty", cfg.RateLimitWhitelist)
	}
}

func TestLoadListsAndOverrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("THREAD_RESOLUTION", "pair_subject")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 192.168.0.0/16 ,,")
	t.Setenv("ANALYTICS_RESPONSE_WEIGHT", "0.5")

	cfg := Load()
	if cfg.ThreadResolution != "pair_subject" {
		t.Errorf("resolution = %q", cfg.ThreadResolution)
	}
	if len(cfg.RateLimitWhitelist) != 2 ||
		cfg.RateLimitWhitelist[0] != "10.0.0.1" ||
		cfg.RateLimitWhitelist[1] != "192.168.0.0/16" {
		t.Errorf("whitelist = %v", cfg.RateLimitWhitelist)
	}
	if cfg.AnalyticsResponseWeight != 0.5 {
		t.Errorf("response weight = %v", cfg.AnalyticsResponseWeight)
	}
}

func TestLoadRejectsUnknownResolution(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("THREAD_RESOLUTION", "per-case")

	defer func() {
		if recover() == nil {
			t.Fatal("unknown resolution mode should panic")
		}
	}()
	Load()
}
