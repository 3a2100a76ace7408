package resolver

import (
	"log/slog"
	"sort"
	"sync"
)

// DriftTracker records which strategy rank won each field across a
// run. A field whose primary (rank 0) strategy stops winning is a
// selector-drift signal worth fixing before the fallback breaks too.
type DriftTracker struct {
	mu     sync.Mutex
	fields map[string]*fieldStats
}

type fieldStats struct {
	wins     map[int]int // rank -> count
	winNames map[int]string
	misses   int
}

// FieldDrift summarizes one field's strategy usage.
type FieldDrift struct {
	Field        string `json:"field"`
	PrimaryWins  int    `json:"primary_wins"`
	FallbackWins int    `json:"fallback_wins"`
	Misses       int    `json:"misses"`
	// TopFallback is the most-used non-primary strategy, if any.
	TopFallback string `json:"top_fallback,omitempty"`
}

// NewDriftTracker creates an empty tracker.
func NewDriftTracker() *DriftTracker {
	return &DriftTracker{fields: make(map[string]*fieldStats)}
}

// RecordWin notes that a field was resolved by the strategy at rank.
func (t *DriftTracker) RecordWin(field string, rank int, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stats(field)
	st.wins[rank]++
	st.winNames[rank] = name
}

// RecordMiss notes that no strategy resolved the field.
func (t *DriftTracker) RecordMiss(field string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats(field).misses++
}

func (t *DriftTracker) stats(field string) *fieldStats {
	st, ok := t.fields[field]
	if !ok {
		st = &fieldStats{wins: make(map[int]int), winNames: make(map[int]string)}
		t.fields[field] = st
	}
	return st
}

// Report returns per-field drift summaries, fields with fallback wins
// or misses first.
func (t *DriftTracker) Report() []FieldDrift {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]FieldDrift, 0, len(t.fields))
	for field, st := range t.fields {
		d := FieldDrift{Field: field, PrimaryWins: st.wins[0], Misses: st.misses}
		topCount := 0
		for rank, count := range st.wins {
			if rank == 0 {
				continue
			}
			d.FallbackWins += count
			if count > topCount {
				topCount = count
				d.TopFallback = st.winNames[rank]
			}
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		di := out[i].FallbackWins + out[i].Misses
		dj := out[j].FallbackWins + out[j].Misses
		if di != dj {
			return di > dj
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// Log writes drifting fields to the logger at the end of a run.
func (t *DriftTracker) Log(logger *slog.Logger) {
	for _, d := range t.Report() {
		if d.FallbackWins == 0 && d.Misses == 0 {
			continue
		}
		logger.Warn("selector drift",
			"field", d.Field,
			"primary_wins", d.PrimaryWins,
			"fallback_wins", d.FallbackWins,
			"misses", d.Misses,
			"top_fallback", d.TopFallback,
		)
	}
}
