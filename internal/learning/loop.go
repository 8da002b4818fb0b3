// Package learning implements the adaptive weight-adjustment loop
// (spec.md §4.7), grounded on the teacher's
// internal/autopilot/strategy_stats.go per-strategy accuracy tracking,
// generalized from its single-strategy win-rate tally to per-source
// accuracy feeding a bounded weight nudge.
package learning

import (
	"time"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// minScore floors a source's accuracy-derived target weight so a
// temporarily unlucky source is never driven fully to zero (spec.md
// §4.7 step 3).
const minScore = 0.1

// clampFloor and clampCeiling bound every weight after adjustment
// (spec.md §4.7 step 5).
const (
	clampFloor   = 0.05
	clampCeiling = 0.5
)

// Outcome is one resolved Decision's correctness per source, used to
// build the rolling accuracy window (spec.md §4.7 step 1).
type Outcome struct {
	Source    domain.SourceName
	Correct   bool
	Timestamp time.Time
}

// Accuracy computes per-source hit rate over outcomes that fall
// within [now-window, now]. Sources with zero observations are
// omitted; Adjust then treats a missing source as the minimum score.
func Accuracy(outcomes []Outcome, window time.Duration, now time.Time) map[domain.SourceName]float64 {
	cutoff := now.Add(-window)
	hits := map[domain.SourceName]int{}
	total := map[domain.SourceName]int{}
	for _, o := range outcomes {
		if o.Timestamp.Before(cutoff) {
			continue
		}
		total[o.Source]++
		if o.Correct {
			hits[o.Source]++
		}
	}
	out := make(map[domain.SourceName]float64, len(total))
	for src, n := range total {
		out[src] = float64(hits[src]) / float64(n)
	}
	return out
}

// Adjustment is the result of one weight-update pass: either a new
// weight map plus the reason it changed, or Applied false with the
// Reason it was not applied.
type Adjustment struct {
	Applied    bool
	NewWeights map[domain.SourceName]float64
	Reason     string
}

// Adjust computes the next weight map from current weights and
// measured accuracy, nudging each weight toward its accuracy-derived
// target by at most maxWeightChange, then clamping and renormalizing
// (spec.md §4.7 steps 2-5).
func Adjust(current map[domain.SourceName]float64, accuracy map[domain.SourceName]float64, tradesObserved, minTrades int, maxWeightChange float64) Adjustment {
	if tradesObserved < minTrades {
		return Adjustment{Reason: "insufficient_data"}
	}
	if len(accuracy) == 0 {
		return Adjustment{Reason: "insufficient_data"}
	}

	scores := make(map[domain.SourceName]float64, len(current))
	totalScore := 0.0
	for src := range current {
		s, ok := accuracy[src]
		if !ok || s < minScore {
			s = minScore
		}
		scores[src] = s
		totalScore += s
	}

	next := make(map[domain.SourceName]float64, len(current))
	changed := false
	for src, w := range current {
		target := scores[src] / totalScore
		delta := target - w
		if delta > maxWeightChange {
			delta = maxWeightChange
		} else if delta < -maxWeightChange {
			delta = -maxWeightChange
		}
		newW := w + delta
		if newW < clampFloor {
			newW = clampFloor
		}
		if newW > clampCeiling {
			newW = clampCeiling
		}
		next[src] = newW
		if newW != w {
			changed = true
		}
	}

	if !changed {
		return Adjustment{Reason: "no_change"}
	}

	renormalize(next)
	return Adjustment{Applied: true, NewWeights: next, Reason: "accuracy_adjustment"}
}

func renormalize(weights map[domain.SourceName]float64) {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return
	}
	for src, w := range weights {
		weights[src] = w / sum
	}
}

// IsCorrect applies the outcome-correctness policy (spec.md §4.7,
// SPEC_FULL.md §13 Open Question decision): buy/short are correct if
// realized P&L is positive; sell/close are correct if they avoided a
// loss worse than smallLossThreshold; hold is correct unless a missed
// move exceeded the configured confidence — simplified here to "hold
// is always correct", flagged as a known bias rather than silently
// assumed (SPEC_FULL.md §13).
func IsCorrect(decisionType domain.DecisionType, pnl float64, smallLossThreshold float64) bool {
	switch decisionType {
	case domain.DecisionBuy, domain.DecisionShort:
		return pnl > 0
	case domain.DecisionSell, domain.DecisionClose:
		return pnl >= smallLossThreshold
	case domain.DecisionHold:
		return true
	default:
		return true
	}
}
