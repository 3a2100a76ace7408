// Package extract turns a live product page into a ProductRecord.
// Every field is resolved independently through the strategy cascade;
// missing data is recorded as absent, never raised. The only hard
// failure is an unreachable page or a product container that never
// appears within the wait budget.
package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/taoharvest/taoharvest/internal/browser"
	"github.com/taoharvest/taoharvest/internal/config"
	"github.com/taoharvest/taoharvest/internal/observability"
	"github.com/taoharvest/taoharvest/internal/resolver"
	"github.com/taoharvest/taoharvest/internal/types"
)

// Extractor composes field resolution into full product records.
type Extractor struct {
	res     *resolver.Resolver
	cfg     config.ExtractConfig
	wait    time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates an Extractor. wait bounds every wait-for-element call.
func New(res *resolver.Resolver, cfg config.ExtractConfig, wait time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Extractor {
	return &Extractor{
		res:     res,
		cfg:     cfg,
		wait:    wait,
		metrics: metrics,
		logger:  logger.With("component", "extractor"),
	}
}

// Extract navigates to the product URL on the supplied page and builds
// its record. The returned record is complete (with absent fields
// noted) unless the error is non-nil, in which case the page itself
// was unusable and the product is a hard failure.
func (e *Extractor) Extract(ctx context.Context, page browser.Page, productURL string) (*types.ProductRecord, error) {
	start := time.Now()

	if err := page.Navigate(ctx, productURL); err != nil {
		return nil, &types.ExtractError{URL: productURL, Stage: "navigate", Err: err}
	}

	if err := e.waitForContainer(ctx, page); err != nil {
		return nil, &types.ExtractError{URL: productURL, Stage: "container", Err: err}
	}

	rec := types.NewProductRecord(productURL)

	e.extractTitle(page, rec)
	e.extractShop(page, rec)
	e.extractPrice(page, rec)
	e.extractCoupons(page, rec)
	e.extractShipping(page, rec)
	e.extractStyles(ctx, page, rec)
	e.extractReviews(page, rec)
	e.extractParameters(page, rec)
	e.extractGallery(page, rec)

	e.metrics.ObserveExtract(time.Since(start).Seconds())
	e.logger.Info("product extracted",
		"url", productURL,
		"id", rec.ID,
		"styles", len(rec.Styles),
		"reviews", len(rec.Details.Reviews),
		"parameters", len(rec.Details.Parameters),
		"gallery_images", len(rec.Details.GalleryImages),
		"missing_fields", len(rec.MissingFields),
		"duration", time.Since(start),
	)
	return rec, nil
}

// waitForContainer waits for any of the known product container
// shapes. All of them absent means the page is not a product page (or
// never rendered) and the record is aborted.
func (e *Extractor) waitForContainer(ctx context.Context, page browser.Page) error {
	for _, sel := range containerSelectors {
		if err := page.WaitFor(ctx, sel, e.wait); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return types.ErrContainerTimeout
}

// resolve runs a spec and stores the value, recording absence on the
// record and in metrics.
func (e *Extractor) resolve(scope browser.Scope, spec resolver.FieldSpec, rec *types.ProductRecord, dst *string) bool {
	result, ok := e.res.Resolve(scope, spec)
	if !ok {
		rec.RecordMissing(spec.Field)
		e.metrics.IncFieldMissing(spec.Field)
		return false
	}
	if result.Rank > 0 {
		e.metrics.IncFallback()
	}
	*dst = result.Value
	return true
}

func (e *Extractor) extractTitle(page browser.Page, rec *types.ProductRecord) {
	if result, ok := e.res.Resolve(page, titleSpec); ok {
		if result.Rank > 0 {
			e.metrics.IncFallback()
		}
		rec.Title = result.Value
		return
	}
	// Last resort: the document title carries the product name before
	// the site suffix. A title filled here is not a missing field.
	if title, err := page.Title(); err == nil && title != "" {
		rec.Title = strings.TrimSpace(strings.SplitN(title, " - ", 2)[0])
	}
	if rec.Title == "" {
		rec.RecordMissing("title")
		e.metrics.IncFieldMissing("title")
	}
}

func (e *Extractor) extractShop(page browser.Page, rec *types.ProductRecord) {
	header, err := page.Find(shopHeaderSelector)
	if err != nil {
		rec.RecordMissing("shop")
		e.metrics.IncFieldMissing("shop")
		return
	}

	e.resolve(header, shopNameSpec, rec, &rec.Shop.Name)
	if e.resolve(header, shopURLSpec, rec, &rec.Shop.URL) {
		rec.Shop.URL = absoluteURL(rec.Shop.URL)
	}
	// Rating and review rate are best effort; storefronts hide them
	// for new shops.
	e.resolve(header, shopRatingSpec, rec, &rec.Shop.Rating)
	e.resolve(header, shopReviewRateSpec, rec, &rec.Shop.GoodReviewRate)
}

func (e *Extractor) extractPrice(page browser.Page, rec *types.ProductRecord) {
	wrap, err := page.Find(priceWrapSelector)
	if err != nil {
		rec.RecordMissing("price")
		e.metrics.IncFieldMissing("price")
		return
	}
	e.resolve(wrap, priceCurrentSpec, rec, &rec.Price.Current)
	e.resolve(wrap, priceOriginalSpec, rec, &rec.Price.Original)
	e.resolve(wrap, priceSalesSpec, rec, &rec.Price.Sales)
}

func (e *Extractor) extractCoupons(page browser.Page, rec *types.ProductRecord) {
	area, err := page.Find(couponAreaSelector)
	if err != nil {
		return
	}
	wraps, err := area.FindAll(couponWrapSelector)
	if err != nil {
		return
	}
	for _, wrap := range wraps {
		textEl, err := wrap.Find(couponTextSelector)
		if err != nil {
			continue
		}
		text, _ := textEl.Text()
		title, _ := textEl.Attr("title")
		text = strings.TrimSpace(text)
		if text == "" && title == "" {
			continue
		}
		rec.Coupons = append(rec.Coupons, types.Coupon{Title: title, Text: text})
	}
}

func (e *Extractor) extractShipping(page browser.Page, rec *types.ProductRecord) {
	card, err := page.Find(shippingSelector)
	if err != nil {
		return
	}
	e.resolve(card, shippingDeliverySpec, rec, &rec.Shipping.Delivery)
	e.resolve(card, shippingFreightSpec, rec, &rec.Shipping.Freight)
	e.resolve(card, shippingAddressSpec, rec, &rec.Shipping.Address)

	guarantees, err := card.FindAll(shippingGuaranteeSelector)
	if err != nil {
		return
	}
	for _, g := range guarantees {
		text, _ := g.Text()
		if text = strings.TrimSpace(text); text != "" {
			rec.Shipping.Guarantees = append(rec.Shipping.Guarantees, text)
		}
	}
}

func (e *Extractor) extractReviews(page browser.Page, rec *types.ProductRecord) {
	var scope browser.Scope = page
	if detail, err := page.Find(detailInfoSelector); err == nil {
		scope = detail
	}

	els, err := scope.FindAll(reviewSelector)
	if err != nil || len(els) == 0 {
		return
	}
	if len(els) > e.cfg.MaxReviews {
		els = els[:e.cfg.MaxReviews]
	}

	for _, el := range els {
		// A malformed review still contributes a partial entry.
		var review types.Review
		if r, ok := e.res.Resolve(el, reviewUserSpec); ok {
			review.User = r.Value
		}
		if r, ok := e.res.Resolve(el, reviewMetaSpec); ok {
			review.Meta = r.Value
		}
		if r, ok := e.res.Resolve(el, reviewContentSpec); ok {
			review.Content = r.Value
		}
		if imgs, err := el.FindAll(reviewImagesSelector); err == nil {
			for _, img := range imgs {
				if src, _ := img.Attr("src"); src != "" {
					review.Images = append(review.Images, absoluteURL(src))
				}
			}
		}
		rec.Details.Reviews = append(rec.Details.Reviews, review)
	}
	e.metrics.IncReviews(len(rec.Details.Reviews))
}

func (e *Extractor) extractParameters(page browser.Page, rec *types.ProductRecord) {
	area, err := page.Find(paramsAreaSelector)
	if err != nil {
		rec.RecordMissing("parameters")
		e.metrics.IncFieldMissing("parameters")
		return
	}

	raw, err := area.HTML()
	if err != nil {
		rec.RecordMissing("parameters")
		e.metrics.IncFieldMissing("parameters")
		return
	}
	rec.Raw[types.RawSectionParameters] = raw

	params, err := ParseParameters(raw)
	if err != nil {
		e.logger.Warn("parameter fragment unparseable", "error", err)
		return
	}
	rec.Details.Parameters = params
}

func (e *Extractor) extractGallery(page browser.Page, rec *types.ProductRecord) {
	tab := e.findGalleryTab(page)
	if tab == nil {
		rec.RecordMissing("gallery")
		e.metrics.IncFieldMissing("gallery")
		return
	}

	raw, err := tab.HTML()
	if err != nil {
		rec.RecordMissing("gallery")
		e.metrics.IncFieldMissing("gallery")
		return
	}
	rec.Raw[types.RawSectionGallery] = raw

	images, err := ParseGalleryImages(raw)
	if err != nil {
		e.logger.Warn("gallery fragment unparseable", "error", err)
		return
	}
	rec.Details.GalleryImages = images
}

// findGalleryTab locates the image-detail tab by its title text,
// falling back to the description root when tabs are not rendered.
func (e *Extractor) findGalleryTab(page browser.Page) browser.Element {
	tabs, err := page.FindAll(galleryTabSelector)
	if err == nil {
		for _, tab := range tabs {
			title, err := tab.Find(galleryTabTitle)
			if err != nil {
				continue
			}
			text, _ := title.Text()
			if strings.Contains(text, "图文详情") {
				return tab
			}
		}
	}
	if root, err := page.Find(galleryRootSelector); err == nil {
		return root
	}
	return nil
}

// absoluteURL fixes scheme-relative and CDN-relative image URLs.
func absoluteURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return "https://img.alicdn.com" + raw
	default:
		return raw
	}
}
