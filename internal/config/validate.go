package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/taoharvest/taoharvest/internal/types"
)

var validate = validator.New()

// Validate checks the configuration for invalid values. It runs before
// any navigation; failures here are fatal to the whole run.
func Validate(cfg *Config) error {
	if cfg.Browser.NavTimeout <= 0 {
		return &types.ConfigError{Field: "browser.nav_timeout", Err: errors.New("must be > 0")}
	}
	if cfg.Browser.WaitTimeout <= 0 {
		return &types.ConfigError{Field: "browser.wait_timeout", Err: errors.New("must be > 0")}
	}
	if cfg.Discovery.MaxScrolls < 1 {
		return &types.ConfigError{Field: "discovery.max_scrolls", Err: errors.New("must be >= 1")}
	}
	if cfg.Extract.MaxReviews < 0 {
		return &types.ConfigError{Field: "extract.max_reviews", Err: errors.New("must be >= 0")}
	}
	if cfg.Output.Root == "" {
		return &types.ConfigError{Field: "output.root", Err: errors.New("must not be empty")}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return &types.ConfigError{Field: "logging.level", Err: fmt.Errorf("must be debug/info/warn/error, got %q", cfg.Logging.Level)}
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return &types.ConfigError{Field: "logging.format", Err: fmt.Errorf("must be 'text' or 'json', got %q", cfg.Logging.Format)}
	}

	if cfg.Index.MongoEnabled && cfg.Index.MongoURI == "" {
		return &types.ConfigError{Field: "index.mongo_uri", Err: errors.New("required when index.mongo_enabled is true")}
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		return &types.ConfigError{Field: "metrics.port", Err: fmt.Errorf("must be 1-65535, got %d", cfg.Metrics.Port)}
	}

	return nil
}

// ValidateShops checks the batch shop list: every entry needs a name
// and a well-formed URL, and URLs must be unique within the run.
// Duplicates are a configuration error, never silently merged.
func ValidateShops(shops []types.ShopEntry) error {
	if len(shops) == 0 {
		return &types.ConfigError{Field: "shops", Err: types.ErrNoShops}
	}

	seen := make(map[string]string, len(shops))
	for i, shop := range shops {
		if err := validate.Struct(shop); err != nil {
			return &types.ConfigError{
				Field: fmt.Sprintf("shops[%d]", i),
				Err:   err,
			}
		}
		if prev, ok := seen[shop.URL]; ok {
			return &types.ConfigError{
				Field: fmt.Sprintf("shops[%d]", i),
				Err:   fmt.Errorf("duplicate shop URL %q (already used by %q)", shop.URL, prev),
			}
		}
		seen[shop.URL] = shop.Name
	}
	return nil
}
