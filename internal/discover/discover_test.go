package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"testing"

	"github.com/taoharvest/taoharvest/internal/browser"
	"github.com/taoharvest/taoharvest/internal/config"
	"github.com/taoharvest/taoharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const storefrontURL = "https://shop.example.com/index.htm"

func testConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		MaxScrolls:   10,
		CardSelector: `div[class*="cardContainer"]`,
	}
}

const listingPage1 = `<html><body>
  <div class="cardContainer--a"><a href="/item?id=1">P1</a></div>
  <div class="cardContainer--b"><a href="https://shop.example.com/item?id=2#detail">P2</a></div>
  <div class="cardContainer--ad">banner without link</div>
  <div class="cardContainer--c"><a href="javascript:void(0)">not a product</a></div>
</body></html>`

const listingPage2 = `<html><body>
  <div class="cardContainer--a"><a href="/item?id=1">P1</a></div>
  <div class="cardContainer--b"><a href="https://shop.example.com/item?id=2">P2</a></div>
  <div class="cardContainer--d"><a href="/item?id=3">P3</a></div>
  <div class="cardContainer--d2">filler to change the page height</div>
</body></html>`

func TestDiscoverDedupAndOrder(t *testing.T) {
	page := browser.NewStaticSite(map[string]string{storefrontURL: listingPage1})
	page.ScrollStates = []string{listingPage2}

	d := New(testConfig(), nil, testLogger)
	links, err := d.Discover(context.Background(), page, storefrontURL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []string{
		"https://shop.example.com/item?id=1",
		"https://shop.example.com/item?id=2",
		"https://shop.example.com/item?id=3",
	}
	if len(links) != len(want) {
		t.Fatalf("links = %v", links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestDiscoverZeroProducts(t *testing.T) {
	page := browser.NewStaticSite(map[string]string{
		storefrontURL: `<html><body><p>closed for renovation</p></body></html>`,
	})

	d := New(testConfig(), nil, testLogger)
	links, err := d.Discover(context.Background(), page, storefrontURL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if links == nil {
		t.Fatal("links must be empty, not nil")
	}
	if len(links) != 0 {
		t.Errorf("links = %v", links)
	}
}

func TestDiscoverNavigateFailure(t *testing.T) {
	page := browser.NewStaticSite(map[string]string{})

	d := New(testConfig(), nil, testLogger)
	_, err := d.Discover(context.Background(), page, storefrontURL)
	if err == nil {
		t.Fatal("expected discovery error")
	}
	var discErr *types.DiscoveryError
	if !errors.As(err, &discErr) {
		t.Fatalf("error type = %T", err)
	}
	if discErr.URL != storefrontURL {
		t.Errorf("error URL = %q", discErr.URL)
	}
}

func TestDiscoverScrollBound(t *testing.T) {
	// Every scroll grows the listing by one unique product, so only
	// MaxScrolls stops the loop.
	states := make([]string, 50)
	html := listingPage1
	for i := range states {
		html += fmt.Sprintf(`<div class="cardContainer--x%d"><a href="/item?id=s%d">P</a></div>`, i, i)
		states[i] = html
	}

	cfg := testConfig()
	cfg.MaxScrolls = 3
	page := browser.NewStaticSite(map[string]string{storefrontURL: listingPage1})
	page.ScrollStates = states

	d := New(cfg, nil, testLogger)
	links, err := d.Discover(context.Background(), page, storefrontURL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	// Initial collect finds 2, each of the 3 scrolls adds one more.
	if len(links) != 5 {
		t.Errorf("links = %d (%v), want 5", len(links), links)
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestResolveLinkFiltering(t *testing.T) {
	base := mustParse(t, storefrontURL)

	cases := []struct {
		href string
		want string
		ok   bool
	}{
		{"/item?id=9", "https://shop.example.com/item?id=9", true},
		{"https://other.example.com/p#frag", "https://other.example.com/p", true},
		{"//cdn.example.com/p", "https://cdn.example.com/p", true},
		{"javascript:void(0)", "", false},
		{"mailto:seller@example.com", "", false},
		{"#reviews", "", false},
		{"   ", "", false},
	}
	for _, tc := range cases {
		got, ok := resolveLink(base, tc.href)
		if ok != tc.ok || got != tc.want {
			t.Errorf("resolveLink(%q) = %q, %v; want %q, %v", tc.href, got, ok, tc.want, tc.ok)
		}
	}
}
