package config

import (
	"time"

	"github.com/taoharvest/taoharvest/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for taoharvest.
type Config struct {
	Browser   BrowserConfig   `mapstructure:"browser"   yaml:"browser"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Extract   ExtractConfig   `mapstructure:"extract"   yaml:"extract"`
	Output    OutputConfig    `mapstructure:"output"    yaml:"output"`
	Index     IndexConfig     `mapstructure:"index"     yaml:"index"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`

	// Shops drives batch mode: storefronts in processing order.
	Shops []types.ShopEntry `mapstructure:"shops" yaml:"shops"`
}

// BrowserConfig controls the shared browser session.
type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"    yaml:"headless"`
	ProfileDir string        `mapstructure:"profile_dir" yaml:"profile_dir"`
	NavTimeout time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	// WaitTimeout bounds every wait-for-element call for the run.
	WaitTimeout time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	// StableWait is how long the DOM must stay unchanged after a
	// navigation or scroll before the page counts as settled.
	StableWait time.Duration `mapstructure:"stable_wait" yaml:"stable_wait"`
	// LoginWait holds the browser open after launch so a human can
	// complete the storefront login. Zero skips the grace period.
	LoginWait time.Duration `mapstructure:"login_wait" yaml:"login_wait"`
}

// DiscoveryConfig controls storefront product-link enumeration.
type DiscoveryConfig struct {
	// MaxScrolls bounds the scroll loop so a storefront whose
	// pagination never settles cannot stall the run.
	MaxScrolls   int    `mapstructure:"max_scrolls"   yaml:"max_scrolls"`
	CardSelector string `mapstructure:"card_selector" yaml:"card_selector"`
}

// ExtractConfig controls per-product extraction.
type ExtractConfig struct {
	MaxReviews     int  `mapstructure:"max_reviews"     yaml:"max_reviews"`
	DownloadImages bool `mapstructure:"download_images" yaml:"download_images"`
	// MaxImageSizeMB bounds a single downloaded image.
	MaxImageSizeMB int64 `mapstructure:"max_image_size_mb" yaml:"max_image_size_mb"`
}

// OutputConfig controls the on-disk result layout.
type OutputConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
	// CSVIndex additionally mirrors index rows into index.csv with
	// the same columns as the JSONL index.
	CSVIndex bool `mapstructure:"csv_index" yaml:"csv_index"`
}

// IndexConfig controls the optional MongoDB index mirror.
type IndexConfig struct {
	MongoEnabled    bool   `mapstructure:"mongo_enabled"    yaml:"mongo_enabled"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:    false,
			ProfileDir:  "chrome_profile",
			NavTimeout:  45 * time.Second,
			WaitTimeout: 10 * time.Second,
			StableWait:  500 * time.Millisecond,
			LoginWait:   0,
		},
		Discovery: DiscoveryConfig{
			MaxScrolls:   30,
			CardSelector: `div[class*="cardContainer"]`,
		},
		Extract: ExtractConfig{
			MaxReviews:     types.MaxReviews,
			DownloadImages: true,
			MaxImageSizeMB: 20,
		},
		Output: OutputConfig{
			Root:     "./scraped_data",
			CSVIndex: false,
		},
		Index: IndexConfig{
			MongoEnabled:    false,
			MongoDatabase:   "taoharvest",
			MongoCollection: "index",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
