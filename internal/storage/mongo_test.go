package storage

import (
	"testing"
	"time"

	"github.com/taoharvest/taoharvest/internal/types"
)

// The upsert filter matches on "product_id", so stored documents must
// carry the JSON field names, not the Go field names.
func TestToDocumentUsesJSONFieldNames(t *testing.T) {
	row := types.BatchIndexRow{
		ProductID: "42",
		Shop:      "Acme",
		URL:       "https://e.com/detail?id=42",
		Status:    types.StatusOK,
		Timestamp: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}

	doc, err := toDocument(row)
	if err != nil {
		t.Fatalf("toDocument: %v", err)
	}
	if doc["product_id"] != "42" {
		t.Errorf("product_id = %v", doc["product_id"])
	}
	if doc["shop"] != "Acme" {
		t.Errorf("shop = %v", doc["shop"])
	}
	if _, ok := doc["ProductID"]; ok {
		t.Error("Go field name leaked into the document")
	}
}

func TestToDocumentRecordOmitsRawBlobs(t *testing.T) {
	rec := types.NewProductRecord("https://e.com/detail?id=7")
	rec.Title = "Tee"
	rec.Raw[types.RawSectionParameters] = "<div>params</div>"

	doc, err := toDocument(rec)
	if err != nil {
		t.Fatalf("toDocument: %v", err)
	}
	if doc["product_id"] != "7" {
		t.Errorf("product_id = %v", doc["product_id"])
	}
	for _, key := range []string{"raw", "Raw"} {
		if _, ok := doc[key]; ok {
			t.Errorf("raw HTML blob %q must stay out of the mirror", key)
		}
	}
}
