package extract

import (
	"github.com/taoharvest/taoharvest/internal/resolver"
)

// Storefront pages generate hashed CSS class suffixes on every deploy
// (mainTitle--SfYXBqZ9 and the like), so every primary selector keys
// on the stable class prefix via substring match, with structural and
// text-pattern fallbacks behind it.

// containerSelectors identify the fundamental product container. If
// none appears within the wait budget the product is a hard failure.
var containerSelectors = []string{
	`[class*="skuItem"]`,
	`[class*="BasicContent--"]`,
	`[class*="mainTitle--"]`,
}

var titleSpec = resolver.Spec("title",
	resolver.ByAttr(`[class*="mainTitle--"]`, "title"),
	resolver.ByCSS(`[class*="mainTitle--"]`),
	resolver.ByCSS(`h1`),
)

// Shop fields are resolved inside the shop header block.
const shopHeaderSelector = `[class*="shopHeader--"]`

var (
	shopNameSpec = resolver.Spec("shop.name",
		resolver.ByAttr(`[class*="shopName--"]`, "title"),
		resolver.ByCSS(`[class*="shopName--"]`),
	)
	shopURLSpec = resolver.Spec("shop.url",
		resolver.ByAttr(`a[href*="shop"]`, "href"),
		resolver.ByXPathAttr(`//a[contains(@href, "shop")]`, "href"),
	)
	shopRatingSpec = resolver.Spec("shop.rating",
		resolver.ByCSS(`[class*="starNum--"]`),
		resolver.ByPattern(`([0-9]\.[0-9])\s*分`),
	)
	shopReviewRateSpec = resolver.Spec("shop.good_review_rate",
		resolver.ByXPath(`//*[contains(text(), '好评率')]`),
		resolver.ByPattern(`(好评率[0-9.]+%)`),
	)
)

// Price fields are resolved inside the price wrap block.
const priceWrapSelector = `[class*="priceWrap--"]`

var (
	priceCurrentSpec = resolver.Spec("price.current",
		resolver.ByCSS(`[class*="highlightPrice--"]`),
		resolver.ByCSS(`[class*="price--"]`),
	)
	priceOriginalSpec = resolver.Spec("price.original",
		resolver.ByCSS(`[class*="subPrice--"]`),
	)
	priceSalesSpec = resolver.Spec("price.sales",
		resolver.ByCSS(`[class*="salesDesc--"]`),
		resolver.ByPattern(`(已售\s*[0-9]+[^<]*)`),
	)
)

// Coupon list.
const (
	couponAreaSelector = `[class*="couponInfoArea--"]`
	couponWrapSelector = `[class*="couponWrap--"]`
	couponTextSelector = `[class*="couponText--"]`
)

// Shipping block.
const shippingSelector = `[class*="SecondCard--"]`

var (
	shippingDeliverySpec = resolver.Spec("shipping.delivery",
		resolver.ByCSS(`[class*="shipping--"]`),
	)
	shippingFreightSpec = resolver.Spec("shipping.freight",
		resolver.ByCSS(`[class*="freight--"]`),
	)
	shippingAddressSpec = resolver.Spec("shipping.address",
		resolver.ByCSS(`[class*="deliveryAddrWrap--"] span`),
	)
)

const shippingGuaranteeSelector = `[class*="guaranteeText--"]`

// SKU panel: the style (color) property and per-style size lists.
const (
	skuItemSelector      = `[class*="skuItem"]`
	skuValueItemSelector = `div[class*="valueItem--"]`
	skuValueTextSelector = `span[class*="valueItemText"]`
	skuValueImgSelector  = `img[class*="valueItemImg"]`
)

// Reviews, capped at the configured maximum.
const (
	detailInfoSelector   = `[class*="detailInfo"]`
	reviewSelector       = `[class*="Comment--"]`
	reviewImagesSelector = `[class*="photo--"] img`
)

var (
	reviewUserSpec = resolver.Spec("review.user",
		resolver.ByCSS(`[class*="userName--"]`),
	)
	reviewMetaSpec = resolver.Spec("review.meta",
		resolver.ByCSS(`[class*="meta--"]`),
	)
	reviewContentSpec = resolver.Spec("review.content",
		resolver.ByAttr(`[class*="content--"]`, "title"),
		resolver.ByCSS(`[class*="content--"]`),
	)
)

// Parameter table and gallery panels; both are also captured as raw
// HTML debug blobs.
const (
	paramsAreaSelector  = `[class*="paramsInfoArea"]`
	galleryTabSelector  = `[data-tabindex]`
	galleryTabTitle     = `[class*="tabDetailItemTitle"]`
	galleryRootSelector = `[class*="desc-root"]`
)
