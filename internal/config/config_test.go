package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/taoharvest/taoharvest/internal/types"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero nav timeout", func(c *Config) { c.Browser.NavTimeout = 0 }, "browser.nav_timeout"},
		{"zero wait timeout", func(c *Config) { c.Browser.WaitTimeout = 0 }, "browser.wait_timeout"},
		{"zero scrolls", func(c *Config) { c.Discovery.MaxScrolls = 0 }, "discovery.max_scrolls"},
		{"negative reviews", func(c *Config) { c.Extract.MaxReviews = -1 }, "extract.max_reviews"},
		{"empty output root", func(c *Config) { c.Output.Root = "" }, "output.root"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"mongo without uri", func(c *Config) { c.Index.MongoEnabled = true }, "index.mongo_uri"},
		{"bad metrics port", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Port = 0
		}, "metrics.port"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var cfgErr *types.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error type = %T", err)
			}
			if cfgErr.Field != tc.field {
				t.Errorf("field = %q, want %q", cfgErr.Field, tc.field)
			}
		})
	}
}

func TestValidateShops(t *testing.T) {
	good := []types.ShopEntry{
		{Name: "A", URL: "https://a.example.com"},
		{Name: "B", URL: "https://b.example.com"},
	}
	if err := ValidateShops(good); err != nil {
		t.Fatalf("valid shops rejected: %v", err)
	}

	if err := ValidateShops(nil); !errors.Is(err, types.ErrNoShops) {
		t.Errorf("empty list err = %v, want ErrNoShops", err)
	}

	missingName := []types.ShopEntry{{URL: "https://a.example.com"}}
	if err := ValidateShops(missingName); err == nil {
		t.Error("missing name accepted")
	}

	badURL := []types.ShopEntry{{Name: "A", URL: "not a url"}}
	if err := ValidateShops(badURL); err == nil {
		t.Error("malformed URL accepted")
	}
}

func TestValidateShopsDuplicateURL(t *testing.T) {
	dup := []types.ShopEntry{
		{Name: "First", URL: "https://same.example.com"},
		{Name: "Second", URL: "https://same.example.com"},
	}

	err := ValidateShops(dup)
	if err == nil {
		t.Fatal("duplicate URLs must be rejected, never merged")
	}
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T", err)
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taoharvest.yaml")
	yaml := `
browser:
  headless: true
  nav_timeout: 90s
output:
  root: /tmp/harvest-test
  csv_index: true
shops:
  - name: Acme
    url: https://acme.example.com
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.Browser.Headless {
		t.Error("headless not applied")
	}
	if cfg.Browser.NavTimeout != 90*time.Second {
		t.Errorf("nav_timeout = %v", cfg.Browser.NavTimeout)
	}
	if cfg.Output.Root != "/tmp/harvest-test" || !cfg.Output.CSVIndex {
		t.Errorf("output = %+v", cfg.Output)
	}
	// Untouched keys keep their defaults.
	if cfg.Discovery.MaxScrolls != 30 {
		t.Errorf("max_scrolls default lost: %d", cfg.Discovery.MaxScrolls)
	}
	if len(cfg.Shops) != 1 || cfg.Shops[0].Name != "Acme" {
		t.Errorf("shops = %+v", cfg.Shops)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("explicitly named missing config must fail")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.Root == "" || cfg.Discovery.CardSelector == "" {
		t.Errorf("defaults missing: %+v", cfg)
	}
}
