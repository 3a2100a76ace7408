package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/taoharvest/taoharvest/internal/browser"
	"github.com/taoharvest/taoharvest/internal/types"
)

// Property labels on the SKU panel. The style property is the color
// classification; anything size-shaped holds the size list.
var (
	styleLabels = []string{"颜色分类", "颜色", "款式"}
	sizeLabels  = []string{"尺码", "尺寸", "大小", "型号", "码数"}
)

// extractStyles enumerates the style property's value items in
// presentation order. Each available style is clicked so the size
// panel reflects that selection before its sizes are read. Element
// handles go stale after a click re-renders the SKU panel, so the
// panel is re-located on every iteration.
func (e *Extractor) extractStyles(ctx context.Context, page browser.Page, rec *types.ProductRecord) {
	styleItem := e.findSKUItem(page, styleLabels)
	if styleItem == nil {
		// Single-style product: no style property on the panel.
		return
	}

	total := len(e.valueItems(styleItem))
	for i := 0; i < total; i++ {
		styleItem = e.findSKUItem(page, styleLabels)
		if styleItem == nil {
			break
		}
		els := e.valueItems(styleItem)
		if i >= len(els) {
			break
		}
		el := els[i]

		variant := types.StyleVariant{
			Available: !isDisabled(el),
			Sizes:     []types.SizeOption{},
		}

		if nameEl, err := el.Find(skuValueTextSelector); err == nil {
			if title, _ := nameEl.Attr("title"); title != "" {
				variant.Name = title
			} else if text, err := nameEl.Text(); err == nil {
				variant.Name = strings.TrimSpace(text)
			}
		}
		if variant.Name == "" {
			variant.Name = fmt.Sprintf("Style_%d", i+1)
		}

		if imgEl, err := el.Find(skuValueImgSelector); err == nil {
			if src, _ := imgEl.Attr("src"); src != "" {
				variant.ImageURL = absoluteURL(src)
			}
		}

		// Sold-out styles cannot be selected; their size list stays
		// empty rather than reflecting another style's selection.
		if variant.Available {
			if err := el.Click(ctx); err != nil {
				e.logger.Warn("style selection failed",
					"style", variant.Name, "error", err)
			} else {
				if err := page.WaitStable(ctx); err != nil {
					e.logger.Debug("sku panel slow to settle", "style", variant.Name)
				}
				variant.Sizes = e.extractSizes(page)
			}
		}

		e.logger.Debug("style extracted",
			"style", variant.Name,
			"available", variant.Available,
			"sizes", len(variant.Sizes),
		)
		rec.Styles = append(rec.Styles, variant)
	}
}

// extractSizes reads the size property for the currently selected
// style.
func (e *Extractor) extractSizes(page browser.Page) []types.SizeOption {
	sizes := []types.SizeOption{}

	sizeItem := e.findSKUItem(page, sizeLabels)
	if sizeItem == nil {
		return sizes
	}

	for i, el := range e.valueItems(sizeItem) {
		opt := types.SizeOption{Available: !isDisabled(el)}
		if nameEl, err := el.Find(skuValueTextSelector); err == nil {
			if title, _ := nameEl.Attr("title"); title != "" {
				opt.Name = title
			} else if text, err := nameEl.Text(); err == nil {
				opt.Name = strings.TrimSpace(text)
			}
		}
		if opt.Name == "" {
			opt.Name = fmt.Sprintf("Size_%d", i+1)
		}
		sizes = append(sizes, opt)
	}
	return sizes
}

// findSKUItem returns the SKU property row whose label matches one of
// the given labels.
func (e *Extractor) findSKUItem(page browser.Page, labels []string) browser.Element {
	items, err := page.FindAll(skuItemSelector)
	if err != nil {
		return nil
	}
	for _, item := range items {
		text, err := item.Text()
		if err != nil {
			continue
		}
		for _, label := range labels {
			if strings.Contains(text, label) {
				return item
			}
		}
	}
	return nil
}

// valueItems lists the selectable values of one SKU property in
// presentation order.
func (e *Extractor) valueItems(item browser.Element) []browser.Element {
	els, err := item.FindAll(skuValueItemSelector)
	if err != nil {
		return nil
	}
	return els
}

// isDisabled reports whether a SKU value is marked sold out via its
// class list.
func isDisabled(el browser.Element) bool {
	class, err := el.Attr("class")
	if err != nil {
		return false
	}
	class = strings.ToLower(class)
	return strings.Contains(class, "disabled") || strings.Contains(class, "soldout")
}
