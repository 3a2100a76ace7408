// Package storage defines sinks for batch index rows and extracted
// records beyond the filesystem layout.
package storage

import "github.com/taoharvest/taoharvest/internal/types"

// IndexSink receives each batch index row as it is appended. The
// filesystem index is authoritative; sinks are best-effort mirrors.
type IndexSink interface {
	// Append mirrors one index row.
	Append(row types.BatchIndexRow) error

	// StoreRecord mirrors one successfully extracted record.
	StoreRecord(rec *types.ProductRecord) error

	// Close flushes and releases the backend.
	Close() error

	// Name identifies the backend for logging.
	Name() string
}
