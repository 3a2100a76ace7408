// Package resolver implements multi-strategy field extraction. Each
// field carries an ordered strategy list; the first strategy yielding
// a non-empty, non-whitespace value wins. Exhausting all strategies is
// a normal outcome the caller records as an absent field.
package resolver

import (
	"log/slog"
	"strings"

	"github.com/taoharvest/taoharvest/internal/browser"
)

// FieldSpec names a field and its ordered extraction strategies.
type FieldSpec struct {
	Field      string
	Strategies []Strategy
}

// Spec builds a FieldSpec.
func Spec(field string, strategies ...Strategy) FieldSpec {
	return FieldSpec{Field: field, Strategies: strategies}
}

// Result reports a resolved value and the strategy that produced it.
type Result struct {
	Value    string
	Strategy string
	// Rank is the winning strategy's position in the spec, zero-based.
	// A rising rank across runs signals the primary selector broke.
	Rank int
}

// Resolver runs strategy cascades. It never retries and never waits;
// the caller owns re-resolution after forcing a wait or scroll.
type Resolver struct {
	logger  *slog.Logger
	tracker *DriftTracker
}

// New creates a Resolver. The tracker may be nil to disable drift
// accounting.
func New(logger *slog.Logger, tracker *DriftTracker) *Resolver {
	return &Resolver{
		logger:  logger.With("component", "resolver"),
		tracker: tracker,
	}
}

// Resolve tries the spec's strategies in order against the scope. The
// second return is false when no strategy produced a usable value.
func (r *Resolver) Resolve(scope browser.Scope, spec FieldSpec) (Result, bool) {
	for rank, strat := range spec.Strategies {
		val, err := strat.Try(scope)
		if err != nil {
			r.logger.Debug("strategy miss",
				"field", spec.Field, "strategy", strat.Name(), "error", err)
			continue
		}
		if strings.TrimSpace(val) == "" {
			continue
		}

		if r.tracker != nil {
			r.tracker.RecordWin(spec.Field, rank, strat.Name())
		}
		if rank > 0 {
			r.logger.Info("field resolved by fallback strategy",
				"field", spec.Field, "strategy", strat.Name(), "rank", rank)
		}
		return Result{Value: strings.TrimSpace(val), Strategy: strat.Name(), Rank: rank}, true
	}

	if r.tracker != nil {
		r.tracker.RecordMiss(spec.Field)
	}
	r.logger.Debug("field not found", "field", spec.Field, "strategies", len(spec.Strategies))
	return Result{}, false
}
