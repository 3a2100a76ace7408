// Package batch drives a crawl run: storefront by storefront, product
// by product, over a single browser session. One product's failure is
// isolated to its index row; only configuration errors and a closed
// browser abort the run.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taoharvest/taoharvest/internal/browser"
	"github.com/taoharvest/taoharvest/internal/config"
	"github.com/taoharvest/taoharvest/internal/discover"
	"github.com/taoharvest/taoharvest/internal/extract"
	"github.com/taoharvest/taoharvest/internal/observability"
	"github.com/taoharvest/taoharvest/internal/output"
	"github.com/taoharvest/taoharvest/internal/storage"
	"github.com/taoharvest/taoharvest/internal/types"
)

// Orchestrator sequences discovery and extraction for a shop list.
type Orchestrator struct {
	page       browser.Page
	discoverer *discover.Discoverer
	extractor  *extract.Extractor
	writer     *output.Writer
	sink       storage.IndexSink
	metrics    *observability.Metrics
	logger     *slog.Logger

	// Resume skips URLs already present in the run index.
	Resume bool
}

// New creates an Orchestrator. sink may be nil when no mirror backend
// is configured.
func New(
	page browser.Page,
	discoverer *discover.Discoverer,
	extractor *extract.Extractor,
	writer *output.Writer,
	sink storage.IndexSink,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		page:       page,
		discoverer: discoverer,
		extractor:  extractor,
		writer:     writer,
		sink:       sink,
		metrics:    metrics,
		logger:     logger.With("component", "batch"),
	}
}

// Run crawls every shop in order and returns the task summary. The
// summary is persisted only when the run finishes cleanly; ctx
// cancellation returns the error and leaves the index as the record of
// progress.
func (o *Orchestrator) Run(ctx context.Context, shops []types.ShopEntry) (*types.TaskSummary, error) {
	if err := config.ValidateShops(shops); err != nil {
		return nil, err
	}

	var skip map[string]struct{}
	if o.Resume {
		existing, err := o.writer.ExistingURLs()
		if err != nil {
			return nil, err
		}
		skip = existing
		o.logger.Info("resuming run", "already_attempted", len(skip))
	}

	summary := &types.TaskSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Shops:     []types.ShopSummary{},
	}
	o.logger.Info("run starting", "run_id", summary.RunID, "shops", len(shops))

	for _, shop := range shops {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		shopSummary, err := o.runShop(ctx, shop, skip, summary)
		summary.Shops = append(summary.Shops, shopSummary)
		if err != nil {
			return summary, err
		}
	}

	summary.FinishedAt = time.Now()
	if err := o.writer.WriteSummary(summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// runShop discovers and extracts one storefront. Discovery failure
// flags the shop and moves on; the error return is reserved for
// conditions that must abort the whole run.
func (o *Orchestrator) runShop(ctx context.Context, shop types.ShopEntry, skip map[string]struct{}, summary *types.TaskSummary) (types.ShopSummary, error) {
	shopSummary := types.ShopSummary{Name: shop.Name, URL: shop.URL}
	logger := o.logger.With("shop", shop.Name)

	links, err := o.discoverer.Discover(ctx, o.page, shop.URL)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, types.ErrBrowserClosed) {
			return shopSummary, err
		}
		logger.Error("storefront discovery failed", "error", err)
		shopSummary.DiscoveryFailed = true
		return shopSummary, nil
	}
	shopSummary.Discovered = len(links)

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return shopSummary, err
		}
		if skip != nil {
			if _, done := skip[link]; done {
				logger.Debug("already attempted, skipping", "url", link)
				continue
			}
		}

		summary.Attempted++
		row, partial := o.extractOne(ctx, shop, link, logger)
		if row.Status == types.StatusOK {
			shopSummary.Succeeded++
			summary.Succeeded++
			if partial {
				summary.Partial++
			}
		} else {
			shopSummary.Failed++
			summary.Failed++
		}

		if err := o.appendRow(row); err != nil {
			return shopSummary, err
		}
	}
	return shopSummary, nil
}

// extractOne runs a single product attempt end to end and returns its
// index row, plus whether the record succeeded with unresolved fields.
func (o *Orchestrator) extractOne(ctx context.Context, shop types.ShopEntry, link string, logger *slog.Logger) (types.BatchIndexRow, bool) {
	row := types.BatchIndexRow{
		Shop:      shop.Name,
		URL:       link,
		Timestamp: time.Now(),
	}

	rec, err := o.extractor.Extract(ctx, o.page, link)
	if err != nil {
		o.metrics.IncProduct("failed")
		logger.Error("product extraction failed", "url", link, "error", err)
		row.ProductID = types.ProductIDFromURL(link)
		row.Status = types.StatusFailed
		row.Reason = err.Error()
		o.saveFailureArtifact(row.ProductID, link)
		return row, false
	}

	if len(rec.MissingFields) > 0 {
		logger.Warn("record has unresolved fields",
			"url", link, "missing", rec.MissingFields)
	}

	path, err := o.writer.WriteRecord(ctx, rec, shop.Name)
	if err != nil {
		o.metrics.IncProduct("failed")
		logger.Error("record write failed", "url", link, "error", err)
		row.ProductID = rec.ID
		row.Status = types.StatusFailed
		row.Reason = err.Error()
		return row, false
	}

	if o.sink != nil {
		if err := o.sink.StoreRecord(rec); err != nil {
			logger.Warn("record mirror failed", "url", link, "error", err)
		}
	}

	o.metrics.IncProduct("ok")
	row.ProductID = rec.ID
	row.Status = types.StatusOK
	row.Path = path
	return row, len(rec.MissingFields) > 0
}

// appendRow writes the row to the run index and mirrors it. The index
// is authoritative; an index write failure aborts the run, a mirror
// failure does not.
func (o *Orchestrator) appendRow(row types.BatchIndexRow) error {
	if err := o.writer.AppendIndex(row); err != nil {
		return err
	}
	o.metrics.IncIndexRow(row.Status)
	if o.sink != nil {
		if err := o.sink.Append(row); err != nil {
			o.logger.Warn("index mirror failed", "url", row.URL, "error", err)
		}
	}
	return nil
}

// saveFailureArtifact captures the page HTML of a hard-failed product.
func (o *Orchestrator) saveFailureArtifact(productID, link string) {
	html, err := o.page.HTML()
	if err != nil || html == "" {
		return
	}
	name := productID
	if name == "" {
		name = "unknown-" + time.Now().Format("150405")
	}
	if _, err := o.writer.WriteFailureArtifact(name, html); err != nil {
		o.logger.Warn("failure artifact write failed", "url", link, "error", err)
	}
}
