package types

import "time"

// ShopEntry is one storefront in the batch configuration. URLs must be
// unique within a run; duplicates are a configuration error.
type ShopEntry struct {
	Name string `mapstructure:"name" yaml:"name" json:"name" validate:"required"`
	URL  string `mapstructure:"url"  yaml:"url"  json:"url"  validate:"required,url"`
}

// Extraction statuses recorded in the batch index.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// BatchIndexRow is one append-only index entry per product attempt.
// Rows are created exactly once, immediately after the attempt
// concludes, and never revised.
type BatchIndexRow struct {
	ProductID string    `json:"product_id,omitempty"`
	Shop      string    `json:"shop"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ShopSummary is the per-shop breakdown inside a TaskSummary.
type ShopSummary struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	Discovered      int    `json:"discovered"`
	Succeeded       int    `json:"succeeded"`
	Failed          int    `json:"failed"`
	DiscoveryFailed bool   `json:"discovery_failed,omitempty"`
}

// TaskSummary is the terminal marker of a cleanly finished run. A run
// interrupted mid-way leaves a valid index but no summary.
type TaskSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Attempted  int           `json:"attempted"`
	Succeeded  int           `json:"succeeded"`
	Partial    int           `json:"partial"`
	Failed     int           `json:"failed"`
	Shops      []ShopSummary `json:"shops"`
}
