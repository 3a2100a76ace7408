package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taoharvest/taoharvest/internal/types"
)

// renderReadable formats a record as the human-readable product.txt.
// Map-backed sections are sorted so the rendering is deterministic.
func renderReadable(rec *types.ProductRecord) string {
	var sb strings.Builder

	section := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(title)
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("-", len(title)))
		sb.WriteString("\n")
	}
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%s: %s\n", name, value)
		}
	}

	sb.WriteString("Product Information\n")
	sb.WriteString("===================\n")
	field("Title", rec.Title)
	field("Product ID", rec.ID)
	field("URL", rec.URL)
	field("Scraped At", rec.ScrapedAt.Format("2006-01-02 15:04:05"))

	section("Shop")
	field("Name", rec.Shop.Name)
	field("URL", rec.Shop.URL)
	field("Rating", rec.Shop.Rating)
	field("Good Review Rate", rec.Shop.GoodReviewRate)

	section("Price")
	field("Current", rec.Price.Current)
	field("Original", rec.Price.Original)
	field("Sales", rec.Price.Sales)

	if len(rec.Coupons) > 0 {
		section("Coupons")
		for _, c := range rec.Coupons {
			if c.Title != "" {
				fmt.Fprintf(&sb, "- %s: %s\n", c.Title, c.Text)
			} else {
				fmt.Fprintf(&sb, "- %s\n", c.Text)
			}
		}
	}

	section("Shipping")
	field("Delivery", rec.Shipping.Delivery)
	field("Freight", rec.Shipping.Freight)
	field("Address", rec.Shipping.Address)
	if len(rec.Shipping.Guarantees) > 0 {
		field("Guarantees", strings.Join(rec.Shipping.Guarantees, "; "))
	}

	section(fmt.Sprintf("Styles (%d)", len(rec.Styles)))
	for i, style := range rec.Styles {
		status := "available"
		if !style.Available {
			status = "sold out"
		}
		fmt.Fprintf(&sb, "%d. %s [%s]\n", i+1, style.Name, status)
		for _, size := range style.Sizes {
			mark := " "
			if !size.Available {
				mark = "x"
			}
			fmt.Fprintf(&sb, "   [%s] %s\n", mark, size.Name)
		}
	}

	section(fmt.Sprintf("Reviews (%d)", len(rec.Details.Reviews)))
	for i, review := range rec.Details.Reviews {
		fmt.Fprintf(&sb, "%d. %s", i+1, review.User)
		if review.Meta != "" {
			fmt.Fprintf(&sb, " (%s)", review.Meta)
		}
		sb.WriteString("\n")
		if review.Content != "" {
			fmt.Fprintf(&sb, "   %s\n", review.Content)
		}
	}

	if len(rec.Details.Parameters) > 0 {
		section("Parameters")
		keys := make([]string, 0, len(rec.Details.Parameters))
		for k := range rec.Details.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s: %s\n", k, rec.Details.Parameters[k])
		}
	}

	if len(rec.Details.GalleryImages) > 0 {
		section(fmt.Sprintf("Gallery Images (%d)", len(rec.Details.GalleryImages)))
		for _, img := range rec.Details.GalleryImages {
			fmt.Fprintf(&sb, "- %s\n", img)
		}
	}

	if len(rec.MissingFields) > 0 {
		section("Missing Fields")
		for _, f := range rec.MissingFields {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}

	return sb.String()
}
