package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrElementNotFound  = errors.New("element not found")
	ErrContainerTimeout = errors.New("product container did not appear")
	ErrBrowserClosed    = errors.New("browser session closed")
	ErrNoShops          = errors.New("no shops configured")
)

// ExtractError is a product-level hard failure: navigation failed or
// the fundamental product container never materialized. It aborts that
// product's record only.
type ExtractError struct {
	URL   string
	Stage string
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s (stage=%s): %v", e.URL, e.Stage, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// DiscoveryError means a storefront's product list could not be
// enumerated. The shop contributes zero products; other shops are
// unaffected.
type DiscoveryError struct {
	Shop string
	URL  string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover shop %q (%s): %v", e.Shop, e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ConfigError is fatal at run start, before any navigation occurs.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StorageError wraps failures of an output or index backend.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
