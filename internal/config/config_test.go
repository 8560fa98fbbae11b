package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	yaml := `
scrape:
  listing_url: https://example.com/ongoing
  nav_delay: 2s
  all_episodes: true
retry:
  max_attempts: 5
logging:
  level: debug
  structured: false
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scrape.ListingURL != "https://example.com/ongoing" {
		t.Errorf("listing_url not overridden: %q", cfg.Scrape.ListingURL)
	}
	if cfg.Scrape.NavDelay.Duration != 2*time.Second {
		t.Errorf("nav_delay not parsed: %v", cfg.Scrape.NavDelay)
	}
	if !cfg.Scrape.AllEpisodes {
		t.Error("all_episodes not overridden")
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("retry.max_attempts not overridden: %d", cfg.Retry.MaxAttempts)
	}
	// untouched sections keep their defaults
	if cfg.Scrape.Selectors.ListingItem != ".product__item" {
		t.Errorf("selector default lost: %q", cfg.Scrape.Selectors.ListingItem)
	}
	if cfg.Catalog.CacheTTL.Duration != time.Hour {
		t.Errorf("catalog cache_ttl default lost: %v", cfg.Catalog.CacheTTL)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("crawl:\n  max_depth: 3\n")); err == nil {
		t.Fatal("expected unknown top-level section to be rejected")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty catalog endpoint": func(c *Config) { c.Catalog.Endpoint = "" },
		"empty listing url":      func(c *Config) { c.Scrape.ListingURL = "" },
		"empty selector":         func(c *Config) { c.Scrape.Selectors.EpisodeList = "" },
		"zero retry attempts":    func(c *Config) { c.Retry.MaxAttempts = 0 },
		"negative nav delay":     func(c *Config) { c.Scrape.NavDelay = DurationFrom(-time.Second) },
		"empty user agent":       func(c *Config) { c.Browser.UserAgent = "   " },
		"bad log level":          func(c *Config) { c.Logging.Level = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			cfg.normalise()
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDurationYAMLForms(t *testing.T) {
	yaml := `
catalog:
  timeout: 30
ingest:
  timeout: 1m30s
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Catalog.Timeout.Duration != 30*time.Second {
		t.Errorf("numeric seconds not accepted: %v", cfg.Catalog.Timeout)
	}
	if cfg.Ingest.Timeout.Duration != 90*time.Second {
		t.Errorf("duration string not accepted: %v", cfg.Ingest.Timeout)
	}
}
