package observability

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for a crawl run. A nil
// *Metrics is safe to call, so components never need nil checks at
// every increment site.
type Metrics struct {
	Registry *prometheus.Registry

	ProductsTotal   *prometheus.CounterVec
	FieldsMissing   *prometheus.CounterVec
	FallbacksTotal  prometheus.Counter
	ReviewsTotal    prometheus.Counter
	ScrollsTotal    prometheus.Counter
	LinksDiscovered prometheus.Counter
	ImagesTotal     *prometheus.CounterVec
	IndexRowsTotal  *prometheus.CounterVec
	ExtractSeconds  prometheus.Histogram

	logger *slog.Logger
}

// NewMetrics constructs and registers all collectors on a dedicated
// registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taoharvest_products_total",
			Help: "Product extraction attempts by outcome.",
		},
		[]string{"status"},
	)
	fieldsMissing := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taoharvest_fields_missing_total",
			Help: "Fields no strategy could resolve, by field name.",
		},
		[]string{"field"},
	)
	fallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taoharvest_strategy_fallbacks_total",
			Help: "Fields resolved by a non-primary strategy.",
		},
	)
	reviews := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taoharvest_reviews_total",
			Help: "Reviews collected across all products.",
		},
	)
	scrolls := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taoharvest_discovery_scrolls_total",
			Help: "Scroll operations performed during link discovery.",
		},
	)
	links := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taoharvest_links_discovered_total",
			Help: "Unique product links discovered.",
		},
	)
	images := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taoharvest_images_total",
			Help: "Image downloads by outcome.",
		},
		[]string{"outcome"},
	)
	indexRows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taoharvest_index_rows_total",
			Help: "Batch index rows appended by status.",
		},
		[]string{"status"},
	)
	extractSeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taoharvest_extract_duration_seconds",
			Help:    "Wall time per product extraction.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	registry.MustRegister(products, fieldsMissing, fallbacks, reviews,
		scrolls, links, images, indexRows, extractSeconds)

	return &Metrics{
		Registry:        registry,
		ProductsTotal:   products,
		FieldsMissing:   fieldsMissing,
		FallbacksTotal:  fallbacks,
		ReviewsTotal:    reviews,
		ScrollsTotal:    scrolls,
		LinksDiscovered: links,
		ImagesTotal:     images,
		IndexRowsTotal:  indexRows,
		ExtractSeconds:  extractSeconds,
		logger:          logger.With("component", "metrics"),
	}
}

// IncProduct counts one extraction attempt outcome ("ok"/"failed").
func (m *Metrics) IncProduct(status string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(status).Inc()
}

// IncFieldMissing counts an unresolvable field.
func (m *Metrics) IncFieldMissing(field string) {
	if m == nil {
		return
	}
	m.FieldsMissing.WithLabelValues(field).Inc()
}

// IncFallback counts a field resolved by a non-primary strategy.
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}

// IncReviews adds collected reviews.
func (m *Metrics) IncReviews(n int) {
	if m == nil {
		return
	}
	m.ReviewsTotal.Add(float64(n))
}

// IncScroll counts a discovery scroll.
func (m *Metrics) IncScroll() {
	if m == nil {
		return
	}
	m.ScrollsTotal.Inc()
}

// IncLinks adds discovered links.
func (m *Metrics) IncLinks(n int) {
	if m == nil {
		return
	}
	m.LinksDiscovered.Add(float64(n))
}

// IncImage counts an image download outcome ("ok"/"failed"/"skipped").
func (m *Metrics) IncImage(outcome string) {
	if m == nil {
		return
	}
	m.ImagesTotal.WithLabelValues(outcome).Inc()
}

// IncIndexRow counts an appended index row by status.
func (m *Metrics) IncIndexRow(status string) {
	if m == nil {
		return
	}
	m.IndexRowsTotal.WithLabelValues(status).Inc()
}

// ObserveExtract records one extraction duration in seconds.
func (m *Metrics) ObserveExtract(seconds float64) {
	if m == nil {
		return
	}
	m.ExtractSeconds.Observe(seconds)
}

// StartServer exposes the registry over HTTP in the background.
func (m *Metrics) StartServer(port int, path string) {
	if m == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
}
