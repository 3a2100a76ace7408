package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/taoharvest/taoharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleRecord() *types.ProductRecord {
	rec := types.NewProductRecord("https://item.example.com/detail?id=42")
	rec.Title = "Sample Product"
	rec.Shop.Name = "Acme Store"
	rec.Price.Current = "59.90"
	rec.Styles = append(rec.Styles, types.StyleVariant{
		Name:      "Red",
		Available: true,
		Sizes:     []types.SizeOption{{Name: "S", Available: true}},
	})
	rec.Details.Parameters["品牌"] = "Acme"
	rec.Raw[types.RawSectionParameters] = `<div class="paramsInfoArea--x"></div>`
	rec.Raw[types.RawSectionGallery] = `<div><img src="a.jpg"></div>`
	return rec
}

func newTestWriter(t *testing.T, csvMirror bool) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir(), csvMirror, nil, testLogger)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWriteRecordLayout(t *testing.T) {
	w := newTestWriter(t, false)

	path, err := w.WriteRecord(context.Background(), sampleRecord(), "Acme Store")
	if err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	if filepath.Base(path) != "42" {
		t.Errorf("folder = %q, want product id", filepath.Base(path))
	}
	if !strings.Contains(path, "Acme_Store") {
		t.Errorf("path = %q, want slugified shop segment", path)
	}

	for _, name := range []string{
		"product.json",
		"product.txt",
		filepath.Join("raw", "parameters.html"),
		filepath.Join("raw", "gallery.html"),
	} {
		if _, err := os.Stat(filepath.Join(path, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(path, "product.json"))
	if err != nil {
		t.Fatal(err)
	}
	var round types.ProductRecord
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("product.json invalid: %v", err)
	}
	if round.Title != "Sample Product" {
		t.Errorf("round-trip title = %q", round.Title)
	}
	// Raw blobs live in files, never in the JSON.
	if strings.Contains(string(data), "paramsInfoArea") {
		t.Error("raw HTML leaked into product.json")
	}
}

func TestWriteRecordLeavesNoStaging(t *testing.T) {
	w := newTestWriter(t, false)

	if _, err := w.WriteRecord(context.Background(), sampleRecord(), "shop"); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	entries, err := os.ReadDir(w.Root())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".staging-") {
			t.Errorf("staging dir left behind: %s", e.Name())
		}
	}
}

func TestWriteRecordReplacesEarlierAttempt(t *testing.T) {
	w := newTestWriter(t, false)

	rec := sampleRecord()
	if _, err := w.WriteRecord(context.Background(), rec, "shop"); err != nil {
		t.Fatal(err)
	}

	rec2 := sampleRecord()
	rec2.Title = "Updated Title"
	path, err := w.WriteRecord(context.Background(), rec2, "shop")
	if err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(filepath.Join(path, "product.json"))
	if !strings.Contains(string(data), "Updated Title") {
		t.Error("second write did not replace the first")
	}
}

func TestIndexAppendAndResume(t *testing.T) {
	w := newTestWriter(t, false)

	rows := []types.BatchIndexRow{
		{ProductID: "1", Shop: "s", URL: "https://e.com/1", Status: types.StatusOK, Timestamp: time.Now()},
		{ProductID: "2", Shop: "s", URL: "https://e.com/2", Status: types.StatusFailed, Reason: "container timeout", Timestamp: time.Now()},
	}
	for _, row := range rows {
		if err := w.AppendIndex(row); err != nil {
			t.Fatalf("AppendIndex: %v", err)
		}
	}

	urls, err := w.ExistingURLs()
	if err != nil {
		t.Fatalf("ExistingURLs: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("urls = %v", urls)
	}
	for _, row := range rows {
		if _, ok := urls[row.URL]; !ok {
			t.Errorf("missing %s", row.URL)
		}
	}

	// Rows must be one JSON object per line, in append order.
	data, _ := os.ReadFile(filepath.Join(w.Root(), "index.jsonl"))
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("index lines = %d", len(lines))
	}
	var first types.BatchIndexRow
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 invalid: %v", err)
	}
	if first.ProductID != "1" {
		t.Errorf("first row = %+v", first)
	}
}

func TestIndexSkipsCorruptLines(t *testing.T) {
	w := newTestWriter(t, false)

	if err := w.AppendIndex(types.BatchIndexRow{URL: "https://e.com/1", Status: types.StatusOK, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	// Simulate a torn final write from a killed run.
	f, err := os.OpenFile(filepath.Join(w.Root(), "index.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"url":"https://e.com/2","sta`)
	f.Close()

	urls, err := w.ExistingURLs()
	if err != nil {
		t.Fatalf("ExistingURLs: %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("urls = %v, want only the intact row", urls)
	}
}

func TestCSVMirror(t *testing.T) {
	w := newTestWriter(t, true)

	row := types.BatchIndexRow{
		ProductID: "42",
		Shop:      "Acme",
		URL:       "https://e.com/42",
		Status:    types.StatusOK,
		Path:      "/out/Acme/42",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := w.AppendIndex(row); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(w.Root(), "index.csv"))
	if err != nil {
		t.Fatalf("csv mirror missing: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("csv parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("csv rows = %d, want header + 1", len(records))
	}
	if records[0][0] != "product_id" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "42" || records[1][3] != "ok" {
		t.Errorf("row = %v", records[1])
	}
}

func TestWriteSummary(t *testing.T) {
	w := newTestWriter(t, false)

	summary := &types.TaskSummary{
		RunID:     "run-1",
		Attempted: 3,
		Succeeded: 2,
		Failed:    1,
		Shops:     []types.ShopSummary{{Name: "Acme", Discovered: 3}},
	}
	if err := w.WriteSummary(summary); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(w.Root(), "summary.json"))
	if err != nil {
		t.Fatal(err)
	}
	var round types.TaskSummary
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("summary invalid: %v", err)
	}
	if round.RunID != "run-1" || round.Attempted != 3 {
		t.Errorf("summary = %+v", round)
	}
	if _, err := os.Stat(filepath.Join(w.Root(), ".summary.json.tmp")); !os.IsNotExist(err) {
		t.Error("summary temp file left behind")
	}
}

func TestFailureArtifact(t *testing.T) {
	w := newTestWriter(t, false)

	path, err := w.WriteFailureArtifact("42", "<html>snapshot</html>")
	if err != nil {
		t.Fatalf("WriteFailureArtifact: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<html>snapshot</html>" {
		t.Errorf("artifact = %q", data)
	}
}

func TestRenderReadableDeterministic(t *testing.T) {
	rec := sampleRecord()
	rec.Details.Parameters["材质"] = "纯棉"
	rec.Details.Parameters["产地"] = "中国"

	first := renderReadable(rec)
	for i := 0; i < 10; i++ {
		if renderReadable(rec) != first {
			t.Fatal("rendering is not deterministic across map iterations")
		}
	}
	if !strings.Contains(first, "Sample Product") || !strings.Contains(first, "Red") {
		t.Error("rendering missing expected content")
	}
}
