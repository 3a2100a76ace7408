package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The parameter and gallery panels are captured as raw HTML and parsed
// offline with goquery. Parsing the snapshot instead of walking live
// element handles keeps the captured blob and the structured data in
// exact agreement, and lets saved blobs be re-parsed after the fact.

// ParseParameters extracts the parameter table from a raw panel
// fragment. Keys keep page presentation order semantics: a duplicate
// key overwrites the earlier value (last wins). Emphasis cards render
// value-first, so their title/subtitle roles are swapped.
func ParseParameters(raw string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse parameters fragment: %w", err)
	}

	params := make(map[string]string)

	doc.Find(`[class*="emphasisParamsInfoItem--"], [class*="generalParamsInfoItem--"], [class*="paramsInfoItem--"]`).
		Each(func(_ int, item *goquery.Selection) {
			class, _ := item.Attr("class")
			isEmphasis := strings.Contains(class, "emphasisParamsInfoItem")

			title, subtitle := paramPair(item)
			if title == "" || subtitle == "" {
				return
			}

			name, value := title, subtitle
			if isEmphasis {
				name, value = subtitle, title
			}
			params[name] = value
		})

	return params, nil
}

// paramPair finds the label/value element pair inside one parameter
// item, trying the known class patterns before falling back to the
// first two spans.
func paramPair(item *goquery.Selection) (string, string) {
	patterns := [][2]string{
		{`[class*="ItemTitle--"]`, `[class*="ItemSubTitle--"]`},
		{`[class*="InfoItemTitle--"]`, `[class*="InfoItemSubTitle--"]`},
	}
	for _, p := range patterns {
		title := item.Find(p[0]).First()
		sub := item.Find(p[1]).First()
		if title.Length() > 0 && sub.Length() > 0 {
			return cellText(title), cellText(sub)
		}
	}

	spans := item.Find("span")
	if spans.Length() >= 2 {
		return cellText(spans.Eq(0)), cellText(spans.Eq(1))
	}
	return "", ""
}

// cellText prefers the title attribute (which carries untruncated
// text) over the rendered text.
func cellText(sel *goquery.Selection) string {
	if title, ok := sel.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return strings.TrimSpace(sel.Text())
}

// ParseGalleryImages extracts all image URLs from a raw gallery
// fragment in page order. Duplicate URLs are kept; lazy-load
// placeholders resolve through data-src.
func ParseGalleryImages(raw string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse gallery fragment: %w", err)
	}

	images := []string{}
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("data-src")
		if src == "" {
			src, _ = img.Attr("src")
		}
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		// Placeholder pixel used before lazy load fires.
		if strings.Contains(src, "g.alicdn.com/s.gif") {
			return
		}
		images = append(images, absoluteURL(src))
	})

	return images, nil
}
