// Package media downloads product imagery referenced by extracted
// records. Image hosts serve brotli-compressed bodies, so the client
// handles decompression itself.
package media

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/taoharvest/taoharvest/internal/observability"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// Galleries repeat the same asset across records of one shop;
	// already-fetched URLs are skipped for the life of the downloader.
	seenCacheSize = 4096
)

// Manifest records what was fetched for one product, keyed by the
// relative path inside the images folder.
type Manifest struct {
	Main   []Entry `json:"main,omitempty"`
	Detail []Entry `json:"detail,omitempty"`
	Failed []Entry `json:"failed,omitempty"`
}

// Entry maps one source URL to its saved file (empty on failure).
type Entry struct {
	URL    string `json:"url"`
	File   string `json:"file,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Empty reports whether nothing was fetched or attempted.
func (m *Manifest) Empty() bool {
	return len(m.Main) == 0 && len(m.Detail) == 0 && len(m.Failed) == 0
}

// Downloader fetches images over HTTP with a bounded body size.
type Downloader struct {
	client   *http.Client
	maxBytes int64
	seen     *lru.Cache[string, struct{}]
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewDownloader creates a Downloader. maxSizeMB bounds each image body;
// zero means 20 MB.
func NewDownloader(maxSizeMB int, metrics *observability.Metrics, logger *slog.Logger) (*Downloader, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	seen, err := lru.New[string, struct{}](seenCacheSize)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decompression handled below, including brotli
	}

	return &Downloader{
		client: &http.Client{
			Transport: transport,
			Timeout:   45 * time.Second,
		},
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		seen:     seen,
		metrics:  metrics,
		logger:   logger.With("component", "media"),
	}, nil
}

// DownloadSet fetches the main (style thumbnail) and detail (gallery)
// image URLs into destDir/main and destDir/detail. referer is sent
// with every request; image hosts reject bare requests. Failures are
// recorded in the manifest and never returned as errors.
func (d *Downloader) DownloadSet(ctx context.Context, destDir, referer string, main, detail []string) *Manifest {
	m := &Manifest{}
	d.downloadGroup(ctx, filepath.Join(destDir, "main"), referer, main, &m.Main, &m.Failed)
	d.downloadGroup(ctx, filepath.Join(destDir, "detail"), referer, detail, &m.Detail, &m.Failed)
	return m
}

func (d *Downloader) downloadGroup(ctx context.Context, dir, referer string, urls []string, ok, failed *[]Entry) {
	for _, u := range urls {
		if ctx.Err() != nil {
			return
		}
		if existed, _ := d.seen.ContainsOrAdd(u, struct{}{}); existed {
			continue
		}
		file, err := d.downloadOne(ctx, dir, referer, u)
		if err != nil {
			d.metrics.IncImage("failed")
			d.logger.Warn("image download failed", "url", u, "error", err)
			*failed = append(*failed, Entry{URL: u, Reason: err.Error()})
			continue
		}
		d.metrics.IncImage("ok")
		*ok = append(*ok, Entry{URL: u, File: file})
	}
}

// downloadOne fetches a single image and returns its path relative to
// the images folder.
func (d *Downloader) downloadOne(ctx context.Context, dir, referer, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	reader, err := decompressReader(resp, io.LimitReader(resp.Body, d.maxBytes))
	if err != nil {
		return "", err
	}
	// The compressed limit above does not bound what a small body
	// inflates to, so the decompressed stream is capped as well.
	reader = io.LimitReader(reader, d.maxBytes)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := fileName(imageURL)
	dest := filepath.Join(dir, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", err
	}

	rel := filepath.Join(filepath.Base(dir), name)
	d.logger.Debug("image saved", "url", imageURL, "file", rel)
	return rel, nil
}

// Close releases idle connections.
func (d *Downloader) Close() {
	d.client.CloseIdleConnections()
}

// fileName derives a collision-free local name: the URL's base name
// suffixed with a short hash of the full URL. CDN URLs reuse base
// names across size variants, so the base name alone is ambiguous.
func fileName(imageURL string) string {
	base := path.Base(strings.SplitN(imageURL, "?", 2)[0])
	ext := path.Ext(base)
	if ext == "" || len(ext) > 6 {
		ext = ".jpg"
	}
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." || stem == "/" {
		stem = "image"
	}
	sum := sha1.Sum([]byte(imageURL))
	return stem + "_" + hex.EncodeToString(sum[:])[:8] + ext
}

// decompressReader wraps a reader with the decompressor matching the
// response's Content-Encoding. Handles gzip, deflate, and brotli.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
