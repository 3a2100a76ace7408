package types

import (
	"net/url"
	"time"
)

// ProductRecord is the full structured result of one product extraction.
// It is built incrementally by the extractor and frozen once returned;
// nothing mutates it afterwards.
type ProductRecord struct {
	// ID is the product identifier extracted from the URL.
	ID string `json:"product_id"`

	// URL is the source product page URL.
	URL string `json:"url"`

	// Title is the product display title.
	Title string `json:"title"`

	Shop     ShopInfo     `json:"shop"`
	Price    PriceInfo    `json:"price"`
	Shipping ShippingInfo `json:"shipping"`
	Coupons  []Coupon     `json:"coupons,omitempty"`

	// Styles holds the selectable variants in presentation order.
	// Always present, possibly empty (single-style products).
	Styles []StyleVariant `json:"styles"`

	Details ProductDetails `json:"details"`

	// MissingFields lists field names no strategy could resolve.
	MissingFields []string `json:"missing_fields,omitempty"`

	// Raw holds verbatim HTML fragments keyed by section name
	// ("parameters", "gallery"). Persisted as separate files, not
	// serialized into the record JSON.
	Raw map[string]string `json:"-"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// NewProductRecord creates an empty record with all sequence fields
// initialized so they serialize as [] / {} rather than null.
func NewProductRecord(productURL string) *ProductRecord {
	return &ProductRecord{
		ID:     ProductIDFromURL(productURL),
		URL:    productURL,
		Styles: []StyleVariant{},
		Details: ProductDetails{
			Reviews:       []Review{},
			Parameters:    map[string]string{},
			GalleryImages: []string{},
		},
		Raw:       map[string]string{},
		ScrapedAt: time.Now(),
	}
}

// ProductIDFromURL extracts the product identifier from the page URL's
// id query parameter, falling back to the last path segment.
func ProductIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("id"); id != "" {
		return id
	}
	segs := u.Path
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] == '/' {
			return segs[i+1:]
		}
	}
	return segs
}

// ShopInfo describes the seller of a product.
type ShopInfo struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	Rating         string `json:"rating,omitempty"`
	GoodReviewRate string `json:"good_review_rate,omitempty"`
}

// PriceInfo is the price summary visible on the product page. Values
// are kept as displayed text; storefronts obfuscate numeric prices.
type PriceInfo struct {
	Current  string `json:"current,omitempty"`
	Original string `json:"original,omitempty"`
	Sales    string `json:"sales,omitempty"`
}

// Coupon is one promotion entry from the coupon area.
type Coupon struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// ShippingInfo is the delivery summary block.
type ShippingInfo struct {
	Delivery   string   `json:"delivery,omitempty"`
	Freight    string   `json:"freight,omitempty"`
	Address    string   `json:"address,omitempty"`
	Guarantees []string `json:"guarantees,omitempty"`
}

// StyleVariant is one selectable product option (typically a color)
// with its own availability and size list. Variant availability is
// independent of per-size availability.
type StyleVariant struct {
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	Available bool   `json:"available"`

	// Sizes is always present, possibly empty.
	Sizes []SizeOption `json:"sizes"`
}

// SizeOption is a single size choice within a style.
type SizeOption struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Review is one customer review surfaced on the product page.
type Review struct {
	User    string   `json:"user"`
	Meta    string   `json:"meta,omitempty"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// MaxReviews caps how many reviews are collected per product.
const MaxReviews = 5

// Raw debug blob section names.
const (
	RawSectionParameters = "parameters"
	RawSectionGallery    = "gallery"
)

// ProductDetails aggregates the lower page sections: reviews, the
// parameter table and the image gallery.
type ProductDetails struct {
	Reviews       []Review          `json:"reviews"`
	Parameters    map[string]string `json:"parameters"`
	GalleryImages []string          `json:"gallery_images"`
}

// RecordMissing appends a field name to the record's missing list.
func (r *ProductRecord) RecordMissing(field string) {
	r.MissingFields = append(r.MissingFields, field)
}
