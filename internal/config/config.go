package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration for one reconciliation run.
type Config struct {
	Catalog Catalog `yaml:"catalog"`
	Ingest  Ingest  `yaml:"ingest"`
	Scrape  Scrape  `yaml:"scrape"`
	Browser Browser `yaml:"browser"`
	Retry   Retry   `yaml:"retry"`
	Logging Logging `yaml:"logging"`
}

// Catalog configures the remote tracked-titles endpoint.
type Catalog struct {
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// Ingest configures the episode submission endpoint.
type Ingest struct {
	Endpoint string   `yaml:"endpoint"`
	Timeout  Duration `yaml:"timeout"`
}

// Scrape selects the listing source, the DOM selectors tied to its markup,
// and the behaviour switches for one pass.
type Scrape struct {
	ListingURL     string    `yaml:"listing_url"`
	Selectors      Selectors `yaml:"selectors"`
	NavDelay       Duration  `yaml:"nav_delay"`
	AllEpisodes    bool      `yaml:"all_episodes"`
	SubstringMatch bool      `yaml:"substring_match"`
}

// Selectors are the markup hooks for the target site. Defaults follow the
// kuramanime layout; a site redesign should only require edits here.
type Selectors struct {
	ListingItem     string `yaml:"listing_item"`
	ListingAnchor   string `yaml:"listing_anchor"`
	EpisodeList     string `yaml:"episode_list"`
	EpisodeButton   string `yaml:"episode_button"`
	DownloadSection string `yaml:"download_section"`
	QualityHeading  string `yaml:"quality_heading"`
}

// Browser controls the headless Chrome session.
type Browser struct {
	UserAgent   string   `yaml:"user_agent"`
	NavTimeout  Duration `yaml:"nav_timeout"`
	WaitTimeout Duration `yaml:"wait_timeout"`
	SettleDelay Duration `yaml:"settle_delay"`
	Headful     bool     `yaml:"headful"`
}

// Retry bounds the retry combinator applied around every network and
// navigation call site.
type Retry struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
}

// Logging selects log verbosity and format.
type Logging struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults for the
// kuramanime listing source.
func Default() Config {
	return Config{
		Catalog: Catalog{
			Endpoint: "https://app.ciptakode.my.id/getData.php",
			Timeout:  DurationFrom(12 * time.Second),
			CacheTTL: DurationFrom(time.Hour),
		},
		Ingest: Ingest{
			Endpoint: "https://app.ciptakode.my.id/insertEpisode.php",
			Timeout:  DurationFrom(15 * time.Second),
		},
		Scrape: Scrape{
			ListingURL: "https://v6.kuramanime.run/quick/ongoing?order_by=latest&page=1",
			NavDelay:   DurationFrom(4 * time.Second),
			Selectors: Selectors{
				ListingItem:     ".product__item",
				ListingAnchor:   "h5 a",
				EpisodeList:     "#animeEpisodes",
				EpisodeButton:   "a.ep-button",
				DownloadSection: "#animeDownloadLink",
				QualityHeading:  "h6.font-weight-bold",
			},
		},
		Browser: Browser{
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0 Safari/537.36",
			NavTimeout:  DurationFrom(60 * time.Second),
			WaitTimeout: DurationFrom(30 * time.Second),
			SettleDelay: DurationFrom(500 * time.Millisecond),
		},
		Retry: Retry{
			MaxAttempts:  3,
			InitialDelay: DurationFrom(time.Second),
			MaxDelay:     DurationFrom(30 * time.Second),
		},
		Logging: Logging{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants for a runnable configuration.
func (c Config) Validate() error {
	if c.Catalog.Endpoint == "" {
		return errors.New("catalog.endpoint must be set")
	}
	if c.Ingest.Endpoint == "" {
		return errors.New("ingest.endpoint must be set")
	}
	if c.Scrape.ListingURL == "" {
		return errors.New("scrape.listing_url must be set")
	}
	sel := c.Scrape.Selectors
	for _, pair := range []struct{ name, value string }{
		{"scrape.selectors.listing_item", sel.ListingItem},
		{"scrape.selectors.listing_anchor", sel.ListingAnchor},
		{"scrape.selectors.episode_list", sel.EpisodeList},
		{"scrape.selectors.episode_button", sel.EpisodeButton},
		{"scrape.selectors.download_section", sel.DownloadSection},
		{"scrape.selectors.quality_heading", sel.QualityHeading},
	} {
		if pair.value == "" {
			return fmt.Errorf("%s must be set", pair.name)
		}
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0 (got %d)", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelay.Duration < 0 || c.Retry.MaxDelay.Duration < 0 {
		return errors.New("retry delays must be >= 0")
	}
	if c.Scrape.NavDelay.Duration < 0 {
		return errors.New("scrape.nav_delay must be >= 0")
	}
	if strings.TrimSpace(c.Browser.UserAgent) == "" {
		return errors.New("browser.user_agent must be set")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) normalise() {
	c.Catalog.Endpoint = strings.TrimSpace(c.Catalog.Endpoint)
	c.Ingest.Endpoint = strings.TrimSpace(c.Ingest.Endpoint)
	c.Scrape.ListingURL = strings.TrimSpace(c.Scrape.ListingURL)
	c.Browser.UserAgent = strings.TrimSpace(c.Browser.UserAgent)

	sel := &c.Scrape.Selectors
	sel.ListingItem = strings.TrimSpace(sel.ListingItem)
	sel.ListingAnchor = strings.TrimSpace(sel.ListingAnchor)
	sel.EpisodeList = strings.TrimSpace(sel.EpisodeList)
	sel.EpisodeButton = strings.TrimSpace(sel.EpisodeButton)
	sel.DownloadSection = strings.TrimSpace(sel.DownloadSection)
	sel.QualityHeading = strings.TrimSpace(sel.QualityHeading)
}
