// Package output persists product records and the run's append-only
// index. A record folder is staged in full and renamed into place, so
// a partially written folder is never visible as complete.
package output

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/taoharvest/taoharvest/internal/media"
	"github.com/taoharvest/taoharvest/internal/types"
)

// Writer lays out one run's results under a root directory:
//
//	<root>/index.jsonl
//	<root>/index.csv            (optional mirror)
//	<root>/summary.json         (clean-finish marker)
//	<root>/failures/<name>.html (hard-failure artifacts)
//	<root>/<shop>/<product-id>/product.json
//	                           /product.txt
//	                           /raw/parameters.html
//	                           /raw/gallery.html
//	                           /images/...
type Writer struct {
	root       string
	downloader *media.Downloader
	index      *indexFile
	logger     *slog.Logger
}

// NewWriter creates the output root and opens the index for appending.
// downloader may be nil to skip image downloading.
func NewWriter(root string, csvMirror bool, downloader *media.Downloader, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("create output root: %w", err)}
	}

	index, err := openIndexFile(root, csvMirror)
	if err != nil {
		return nil, err
	}

	return &Writer{
		root:       root,
		downloader: downloader,
		index:      index,
		logger:     logger.With("component", "output_writer"),
	}, nil
}

// Root returns the output root directory.
func (w *Writer) Root() string { return w.root }

// WriteRecord persists a frozen record and returns the final folder
// path. The folder is built in a staging directory and renamed into
// place as the last step.
func (w *Writer) WriteRecord(ctx context.Context, rec *types.ProductRecord, shopName string) (string, error) {
	id := slugify(rec.ID)
	if rec.ID == "" {
		id = shortHash(rec.URL)
	}

	staging, err := os.MkdirTemp(w.root, ".staging-"+id+"-")
	if err != nil {
		return "", &types.StorageError{Backend: "file", Err: err}
	}
	defer os.RemoveAll(staging) // no-op after a successful rename

	if err := w.stageRecord(ctx, staging, rec); err != nil {
		return "", err
	}

	final := filepath.Join(w.root, slugify(shopName), id)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", &types.StorageError{Backend: "file", Err: err}
	}
	// A leftover folder from an earlier attempt is replaced whole.
	if err := os.RemoveAll(final); err != nil {
		return "", &types.StorageError{Backend: "file", Err: err}
	}
	if err := os.Rename(staging, final); err != nil {
		return "", &types.StorageError{Backend: "file", Err: err}
	}

	w.logger.Info("record written", "id", id, "path", final)
	return final, nil
}

// stageRecord writes every file of a record folder into dir.
func (w *Writer) stageRecord(ctx context.Context, dir string, rec *types.ProductRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &types.StorageError{Backend: "file", Err: fmt.Errorf("encode record: %w", err)}
	}
	if err := os.WriteFile(filepath.Join(dir, "product.json"), data, 0o644); err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}

	if err := os.WriteFile(filepath.Join(dir, "product.txt"), []byte(renderReadable(rec)), 0o644); err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}

	if len(rec.Raw) > 0 {
		rawDir := filepath.Join(dir, "raw")
		if err := os.MkdirAll(rawDir, 0o755); err != nil {
			return &types.StorageError{Backend: "file", Err: err}
		}
		for section, blob := range rec.Raw {
			name := filepath.Join(rawDir, slugify(section)+".html")
			if err := os.WriteFile(name, []byte(blob), 0o644); err != nil {
				return &types.StorageError{Backend: "file", Err: err}
			}
		}
	}

	if w.downloader != nil {
		w.downloadImages(ctx, dir, rec)
	}
	return nil
}

// downloadImages fetches style thumbnails and gallery images into the
// staging folder. Download failures are logged and never fail the
// record.
func (w *Writer) downloadImages(ctx context.Context, dir string, rec *types.ProductRecord) {
	var main, detail []string
	for _, style := range rec.Styles {
		if style.ImageURL != "" {
			main = append(main, style.ImageURL)
		}
	}
	detail = append(detail, rec.Details.GalleryImages...)

	manifest := w.downloader.DownloadSet(ctx, filepath.Join(dir, "images"), rec.URL, main, detail)
	if manifest.Empty() {
		return
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "images", "manifest.json"), data, 0o644); err != nil {
		w.logger.Warn("image manifest write failed", "error", err)
	}
}

// WriteFailureArtifact saves the page state of a hard-failed product
// for postmortem inspection; returns the artifact path.
func (w *Writer) WriteFailureArtifact(name, html string) (string, error) {
	dir := filepath.Join(w.root, "failures")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &types.StorageError{Backend: "file", Err: err}
	}
	path := filepath.Join(dir, slugify(name)+".html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", &types.StorageError{Backend: "file", Err: err}
	}
	return path, nil
}

// AppendIndex appends one row to the run index (and its CSV mirror).
func (w *Writer) AppendIndex(row types.BatchIndexRow) error {
	return w.index.Append(row)
}

// ExistingURLs reads URLs already present in the index, for resume
// mode.
func (w *Writer) ExistingURLs() (map[string]struct{}, error) {
	return w.index.ExistingURLs()
}

// WriteSummary persists the task summary, the terminal marker of a
// clean finish. Written atomically like record folders.
func (w *Writer) WriteSummary(summary *types.TaskSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}
	tmp := filepath.Join(w.root, ".summary.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}
	if err := os.Rename(tmp, filepath.Join(w.root, "summary.json")); err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}
	w.logger.Info("summary written",
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return nil
}

// Close flushes and closes the index files.
func (w *Writer) Close() error {
	return w.index.Close()
}

// slugify makes a string safe for a path component.
func slugify(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	var sb strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// shortHash derives a stable folder name from a URL when the page
// yields no product ID.
func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
