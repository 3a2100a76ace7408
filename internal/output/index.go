package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/taoharvest/taoharvest/internal/types"
)

// csvHeader mirrors the JSONL row fields, one column per field.
var csvHeader = []string{"product_id", "shop", "url", "status", "reason", "path", "timestamp"}

// indexFile is the append-only run index: one JSON line per attempted
// product, optionally mirrored to CSV. Every append is flushed before
// returning so a crash loses at most the row being written.
type indexFile struct {
	mu sync.Mutex

	jsonlPath string
	jsonl     *os.File

	csvFile   *os.File
	csvWriter *csv.Writer
}

func openIndexFile(root string, csvMirror bool) (*indexFile, error) {
	jsonlPath := filepath.Join(root, "index.jsonl")
	jsonl, err := os.OpenFile(jsonlPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &types.StorageError{Backend: "file", Err: err}
	}

	idx := &indexFile{jsonlPath: jsonlPath, jsonl: jsonl}

	if csvMirror {
		csvPath := filepath.Join(root, "index.csv")
		info, statErr := os.Stat(csvPath)
		fresh := statErr != nil || info.Size() == 0

		csvFile, err := os.OpenFile(csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			jsonl.Close()
			return nil, &types.StorageError{Backend: "file", Err: err}
		}
		idx.csvFile = csvFile
		idx.csvWriter = csv.NewWriter(csvFile)

		if fresh {
			if err := idx.csvWriter.Write(csvHeader); err != nil {
				idx.Close()
				return nil, &types.StorageError{Backend: "file", Err: err}
			}
			idx.csvWriter.Flush()
		}
	}

	return idx, nil
}

// Append writes one row to the JSONL index and the CSV mirror.
func (f *indexFile) Append(row types.BatchIndexRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(row)
	if err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}
	if _, err := f.jsonl.Write(append(data, '\n')); err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}
	if err := f.jsonl.Sync(); err != nil {
		return &types.StorageError{Backend: "file", Err: err}
	}

	if f.csvWriter != nil {
		record := []string{
			row.ProductID,
			row.Shop,
			row.URL,
			row.Status,
			row.Reason,
			row.Path,
			row.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := f.csvWriter.Write(record); err != nil {
			return &types.StorageError{Backend: "file", Err: err}
		}
		f.csvWriter.Flush()
		if err := f.csvWriter.Error(); err != nil {
			return &types.StorageError{Backend: "file", Err: err}
		}
	}
	return nil
}

// ExistingURLs scans the JSONL index and returns the set of URLs
// already attempted. Corrupt lines (a torn final write from a killed
// run) are skipped.
func (f *indexFile) ExistingURLs() (map[string]struct{}, error) {
	file, err := os.Open(f.jsonlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, &types.StorageError{Backend: "file", Err: err}
	}
	defer file.Close()

	urls := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var row types.BatchIndexRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			continue
		}
		if row.URL != "" {
			urls[row.URL] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &types.StorageError{Backend: "file", Err: err}
	}
	return urls, nil
}

// Close flushes the CSV mirror and closes both files.
func (f *indexFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	if f.csvWriter != nil {
		f.csvWriter.Flush()
		if err := f.csvWriter.Error(); err != nil {
			firstErr = err
		}
		if err := f.csvFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := f.jsonl.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return &types.StorageError{Backend: "file", Err: firstErr}
	}
	return nil
}
