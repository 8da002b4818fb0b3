// Package signal defines the SignalSource capability (spec.md §4.1)
// and its four variants. ML, RL and Sentiment wrap opaque external
// collaborators (the price predictor, the RL action policy, and the
// sentiment analyzer) that are out of scope for this engine — this
// package only defines the adapter shape they must satisfy. Technical
// is computed in-process from candle history.
package signal

import (
	"context"
	"time"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// Window is the evaluation input shared by every SignalSource: recent
// candle history plus the current portfolio state, so a source can
// factor in existing exposure without importing the ledger package
// (leaves of the dependency graph per Design Notes, spec.md §9).
type Window struct {
	Symbol        string
	CurrentPrice  float64
	Candles       []domain.Candle
	OpenPositions int
}

// ErrUnavailable signals a source could not produce a verdict for this
// window (spec.md §4.1: "any source may return unavailable"). It is
// not a transient error — the aggregator tolerates it without bias.
var ErrUnavailable = &unavailableError{}

type unavailableError struct{}

func (*unavailableError) Error() string { return "signal source unavailable" }

// Source is the capability every SignalSource variant implements.
// Implementations MUST be idempotent for a given Window (spec.md §4.1).
type Source interface {
	Name() domain.SourceName
	Available() bool
	Evaluate(ctx context.Context, w Window) (domain.Verdict, error)
}

// CollectAll queries every available source concurrently, bounded by
// perSourceTimeout, and returns whatever verdicts came back before the
// deadline — missing or erroring sources are simply absent from the
// result, mirroring the teacher's CollectAllSignals fan-out
// (internal/autopilot/signal_aggregator.go) but replacing the
// goroutine+mutex-slice idiom with a buffered channel collected by the
// caller's goroutine, so no lock is needed.
func CollectAll(ctx context.Context, sources []Source, w Window, perSourceTimeout time.Duration) map[domain.SourceName]domain.Verdict {
	type result struct {
		name    domain.SourceName
		verdict domain.Verdict
		ok      bool
	}

	results := make(chan result, len(sources))
	for _, s := range sources {
		s := s
		if !s.Available() {
			results <- result{name: s.Name(), ok: false}
			continue
		}
		go func() {
			sctx, cancel := context.WithTimeout(ctx, perSourceTimeout)
			defer cancel()
			v, err := s.Evaluate(sctx, w)
			if err != nil {
				results <- result{name: s.Name(), ok: false}
				return
			}
			results <- result{name: s.Name(), verdict: v, ok: true}
		}()
	}

	out := make(map[domain.SourceName]domain.Verdict, len(sources))
	for i := 0; i < len(sources); i++ {
		r := <-results
		if r.ok {
			out[r.name] = r.verdict
		}
	}
	return out
}
