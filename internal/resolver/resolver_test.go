package resolver

import (
	"log/slog"
	"os"
	"testing"

	"github.com/taoharvest/taoharvest/internal/browser"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const resolverHTML = `<!DOCTYPE html>
<html>
<head><title>Resolver Test</title></head>
<body>
  <div class="mainTitle--Abc123" title="Full Product Title">Truncated Ti…</div>
  <div class="priceBlock">
    <span class="highlightPrice--Xy9">128.00</span>
    <span class="salesDesc--Qw2">已售 300+</span>
  </div>
  <div class="shopCard">
    <span>4.8 分</span>
    <span>好评率98.7%</span>
  </div>
  <div class="empty--Node">   </div>
</body>
</html>`

func newScope(t *testing.T) browser.Scope {
	t.Helper()
	page, err := browser.NewStaticPage(resolverHTML)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return page
}

func TestResolvePrimaryWins(t *testing.T) {
	r := New(testLogger, nil)
	spec := Spec("title",
		ByAttr(`[class*="mainTitle--"]`, "title"),
		ByCSS(`[class*="mainTitle--"]`),
	)

	result, ok := r.Resolve(newScope(t), spec)
	if !ok {
		t.Fatal("expected title to resolve")
	}
	if result.Value != "Full Product Title" {
		t.Errorf("value = %q, want %q", result.Value, "Full Product Title")
	}
	if result.Rank != 0 {
		t.Errorf("rank = %d, want 0 (primary strategy)", result.Rank)
	}
}

func TestResolveFallbackRank(t *testing.T) {
	r := New(testLogger, nil)
	// Primary selector matches nothing; second strategy must win and
	// report its rank.
	spec := Spec("price.current",
		ByCSS(`[class*="promoPrice--"]`),
		ByCSS(`[class*="highlightPrice--"]`),
	)

	result, ok := r.Resolve(newScope(t), spec)
	if !ok {
		t.Fatal("expected price to resolve via fallback")
	}
	if result.Value != "128.00" {
		t.Errorf("value = %q, want %q", result.Value, "128.00")
	}
	if result.Rank != 1 {
		t.Errorf("rank = %d, want 1", result.Rank)
	}
}

func TestResolveWhitespaceIsAMiss(t *testing.T) {
	r := New(testLogger, nil)
	// The matched element contains only whitespace; the cascade must
	// move past it rather than return an empty value.
	spec := Spec("anything",
		ByCSS(`[class*="empty--"]`),
		ByCSS(`[class*="salesDesc--"]`),
	)

	result, ok := r.Resolve(newScope(t), spec)
	if !ok {
		t.Fatal("expected fallback to resolve")
	}
	if result.Rank != 1 {
		t.Errorf("rank = %d, want 1 (whitespace value skipped)", result.Rank)
	}
	if result.Value != "已售 300+" {
		t.Errorf("value = %q", result.Value)
	}
}

func TestResolveAllStrategiesMiss(t *testing.T) {
	r := New(testLogger, nil)
	spec := Spec("ghost",
		ByCSS(`[class*="doesNotExist--"]`),
		ByPattern(`(no such text here \d+)`),
	)

	if _, ok := r.Resolve(newScope(t), spec); ok {
		t.Fatal("expected resolution to fail")
	}
}

func TestResolveXPathTextSearch(t *testing.T) {
	r := New(testLogger, nil)
	spec := Spec("shop.good_review_rate",
		ByXPath(`//*[contains(text(), '好评率')]`),
	)

	result, ok := r.Resolve(newScope(t), spec)
	if !ok {
		t.Fatal("expected xpath strategy to resolve")
	}
	if result.Value != "好评率98.7%" {
		t.Errorf("value = %q", result.Value)
	}
}

func TestResolvePatternCaptureGroup(t *testing.T) {
	r := New(testLogger, nil)
	spec := Spec("shop.rating",
		ByPattern(`([0-9]\.[0-9])\s*分`),
	)

	result, ok := r.Resolve(newScope(t), spec)
	if !ok {
		t.Fatal("expected pattern strategy to resolve")
	}
	if result.Value != "4.8" {
		t.Errorf("value = %q, want capture group only", result.Value)
	}
}

func TestDriftTrackerReport(t *testing.T) {
	tracker := NewDriftTracker()
	tracker.RecordWin("title", 0, "css:primary")
	tracker.RecordWin("title", 0, "css:primary")
	tracker.RecordWin("price", 1, "css:fallback")
	tracker.RecordWin("price", 1, "css:fallback")
	tracker.RecordWin("price", 0, "css:primary")
	tracker.RecordMiss("shop.rating")

	report := tracker.Report()
	if len(report) != 3 {
		t.Fatalf("report entries = %d, want 3", len(report))
	}

	// Drifting fields sort first; "title" resolved cleanly and must be
	// last.
	if report[len(report)-1].Field != "title" {
		t.Errorf("last entry = %q, want title", report[len(report)-1].Field)
	}
	for _, d := range report {
		switch d.Field {
		case "price":
			if d.PrimaryWins != 1 || d.FallbackWins != 2 {
				t.Errorf("price: primary=%d fallback=%d", d.PrimaryWins, d.FallbackWins)
			}
			if d.TopFallback != "css:fallback" {
				t.Errorf("price top fallback = %q", d.TopFallback)
			}
		case "shop.rating":
			if d.Misses != 1 {
				t.Errorf("shop.rating misses = %d", d.Misses)
			}
		}
	}
}

func TestResolveRecordsIntoTracker(t *testing.T) {
	tracker := NewDriftTracker()
	r := New(testLogger, tracker)

	r.Resolve(newScope(t), Spec("title", ByCSS(`[class*="mainTitle--"]`)))
	r.Resolve(newScope(t), Spec("ghost", ByCSS(`[class*="nope--"]`)))

	report := tracker.Report()
	if len(report) != 2 {
		t.Fatalf("report entries = %d, want 2", len(report))
	}
	for _, d := range report {
		switch d.Field {
		case "title":
			if d.PrimaryWins != 1 {
				t.Errorf("title primary wins = %d", d.PrimaryWins)
			}
		case "ghost":
			if d.Misses != 1 {
				t.Errorf("ghost misses = %d", d.Misses)
			}
		}
	}
}
