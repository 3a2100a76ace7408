// Package discover enumerates the product URLs of a storefront by
// scrolling its listing page until the lazy-loaded grid stops growing.
package discover

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/taoharvest/taoharvest/internal/browser"
	"github.com/taoharvest/taoharvest/internal/config"
	"github.com/taoharvest/taoharvest/internal/observability"
	"github.com/taoharvest/taoharvest/internal/types"
)

// seenCacheSize bounds the dedup cache; storefronts large enough to
// overflow it would long since have hit the scroll bound.
const seenCacheSize = 8192

// Discoverer walks storefront listings.
type Discoverer struct {
	cfg     config.DiscoveryConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Discoverer.
func New(cfg config.DiscoveryConfig, metrics *observability.Metrics, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With("component", "discovery"),
	}
}

// Discover returns the storefront's product URLs, deduplicated, in
// first-encounter order. A storefront with zero products yields an
// empty slice. The scroll loop is bounded by MaxScrolls so pagination
// that never settles cannot stall the run.
func (d *Discoverer) Discover(ctx context.Context, page browser.Page, storefrontURL string) ([]string, error) {
	if err := page.Navigate(ctx, storefrontURL); err != nil {
		return nil, &types.DiscoveryError{URL: storefrontURL, Err: err}
	}

	base, err := url.Parse(storefrontURL)
	if err != nil {
		return nil, &types.DiscoveryError{URL: storefrontURL, Err: err}
	}

	seen, err := lru.New[string, struct{}](seenCacheSize)
	if err != nil {
		return nil, err
	}
	var links []string

	collect := func() error {
		cards, err := page.FindAll(d.cfg.CardSelector)
		if err != nil {
			return err
		}
		for _, card := range cards {
			// Not every card is a product; ads and banners carry no
			// link and are skipped.
			link, err := card.Find("a")
			if err != nil {
				continue
			}
			href, err := link.Attr("href")
			if err != nil {
				continue
			}
			abs, ok := resolveLink(base, href)
			if !ok {
				continue
			}
			if existed, _ := seen.ContainsOrAdd(abs, struct{}{}); !existed {
				links = append(links, abs)
			}
		}
		return nil
	}

	if err := collect(); err != nil {
		return nil, &types.DiscoveryError{URL: storefrontURL, Err: err}
	}

	lastHeight, _ := page.ScrollHeight(ctx)
	for i := 0; i < d.cfg.MaxScrolls; i++ {
		if err := ctx.Err(); err != nil {
			return links, err
		}
		if err := page.ScrollToBottom(ctx); err != nil {
			break
		}
		d.metrics.IncScroll()
		if err := page.WaitStable(ctx); err != nil {
			d.logger.Debug("listing slow to settle", "url", storefrontURL)
		}

		if err := collect(); err != nil {
			break
		}

		height, err := page.ScrollHeight(ctx)
		if err != nil || height == lastHeight {
			break
		}
		lastHeight = height
	}

	if links == nil {
		links = []string{}
	}
	d.metrics.IncLinks(len(links))
	d.logger.Info("storefront discovered",
		"url", storefrontURL, "products", len(links))
	return links, nil
}

// resolveLink absolutizes an href against the storefront URL and
// filters non-navigable schemes.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" ||
		strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "data:") {
		return "", false
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}
