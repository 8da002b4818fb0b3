// Package aggregator fuses per-source Verdicts into one weighted
// decision proposal, grounded on the teacher's
// internal/autopilot/signal_aggregator.go AggregateDecision and
// internal/confluence/scorer.go, but replacing their package-level
// weight maps and ad hoc point systems with an explicit value type
// taking weights as input (Design Notes, spec.md §9: no ad-hoc global
// module state).
package aggregator

import (
	"github.com/paperdesk/trader-engine/internal/domain"
)

// MissingWeightMass above which fusion is abandoned entirely — mirrors
// the teacher's "not enough confluence" bail-out, spec.md §4.2 step 2.
const MissingWeightMass = 0.5

// Result is the output of one fusion pass over available Verdicts.
type Result struct {
	Verdicts           []domain.Verdict
	WeightedScore      float64 // [0,1]
	WeightedConfidence float64 // [0,1], same per-source weights as WeightedScore
	Agreement          domain.Agreement
	Direction          domain.Direction
	InsufficientData   bool // true when absent weight mass exceeded MissingWeightMass
}

// Aggregator fuses Verdicts using a fixed per-source weight map,
// renormalizing over whichever sources actually answered.
type Aggregator struct {
	weights map[domain.SourceName]float64
}

func New(weights map[domain.SourceName]float64) *Aggregator {
	cp := make(map[domain.SourceName]float64, len(weights))
	for k, v := range weights {
		cp[k] = v
	}
	return &Aggregator{weights: cp}
}

// Weights returns a copy of the Aggregator's current per-source weight
// map, read by the learning loop before computing an adjustment.
func (a *Aggregator) Weights() map[domain.SourceName]float64 {
	cp := make(map[domain.SourceName]float64, len(a.weights))
	for k, v := range a.weights {
		cp[k] = v
	}
	return cp
}

// SetWeights replaces the live weight map, applying an adaptive-learning
// adjustment (spec.md §4.7 step 5) without reconstructing the
// Aggregator — Fuse picks up the new weights on its next call.
func (a *Aggregator) SetWeights(weights map[domain.SourceName]float64) {
	cp := make(map[domain.SourceName]float64, len(weights))
	for k, v := range weights {
		cp[k] = v
	}
	a.weights = cp
}

// Fuse combines the verdicts present in `verdicts` (keyed by source),
// renormalizing weights over whichever sources answered (spec.md §4.2
// step 2). If the absent sources carry more than MissingWeightMass of
// the configured weight, fusion is abandoned and InsufficientData is
// true.
func (a *Aggregator) Fuse(verdicts map[domain.SourceName]domain.Verdict) Result {
	presentWeight := 0.0
	for src, w := range a.weights {
		if _, ok := verdicts[src]; ok {
			presentWeight += w
		}
	}
	absentWeight := 1.0 - presentWeight
	if absentWeight > MissingWeightMass || presentWeight == 0 {
		return Result{InsufficientData: true}
	}

	weightedScore := 0.0
	weightedConfidence := 0.0
	list := make([]domain.Verdict, 0, len(verdicts))
	for src, v := range verdicts {
		w := a.weights[src] / presentWeight
		weightedScore += v.Score * w
		weightedConfidence += v.Confidence * w
		list = append(list, v)
	}

	agreement := computeAgreement(list)
	direction := domain.DirNeutral
	switch {
	case weightedScore > 0.55:
		direction = domain.DirUp
	case weightedScore < 0.45:
		direction = domain.DirDown
	}

	return Result{
		Verdicts:           list,
		WeightedScore:      weightedScore,
		WeightedConfidence: weightedConfidence,
		Agreement:          agreement,
		Direction:          direction,
	}
}

// computeAgreement classifies how many of the present verdicts share
// the majority direction (GLOSSARY: full/majority/mixed/none).
func computeAgreement(verdicts []domain.Verdict) domain.Agreement {
	if len(verdicts) == 0 {
		return domain.AgreementNone
	}
	counts := map[domain.Direction]int{}
	for _, v := range verdicts {
		counts[v.Direction]++
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	ratio := float64(max) / float64(len(verdicts))
	switch {
	case ratio == 1:
		return domain.AgreementFull
	case ratio >= 0.66:
		return domain.AgreementMajority
	case ratio >= 0.33:
		return domain.AgreementMixed
	default:
		return domain.AgreementNone
	}
}

// ProposeDecision maps a fusion Result plus the caller's existing
// position state into a DecisionType, per spec.md §4.2 step 5: a
// symbol with an open position proposes close on an opposing signal,
// otherwise buy/short/hold on score thresholds. A bearish score with
// no open position proposes short when the product supports it and
// hold otherwise; sell is never proposed here. The buy/sell
// thresholds are 0.5 ± epsilon, where epsilon tracks the trader's
// configured minConfidence rather than a fixed split, and opening or
// closing a position additionally requires at least majority agreement
// among the sources that answered — a score alone, with sources
// talking past each other, proposes hold instead.
func ProposeDecision(r Result, personality domain.Personality, hasOpenPosition bool, positionSide domain.Side, supportsShort bool) domain.DecisionType {
	if r.InsufficientData {
		return domain.DecisionSkip
	}

	epsilon := personality.Trading.MinConfidence - 0.5
	buyThreshold := 0.5 + epsilon
	sellThreshold := 0.5 - epsilon

	if !r.Agreement.AtLeast(domain.AgreementMajority) {
		return domain.DecisionHold
	}

	if hasOpenPosition {
		switch {
		case positionSide == domain.SideLong && r.WeightedScore < sellThreshold:
			return domain.DecisionClose
		case positionSide == domain.SideShort && r.WeightedScore > buyThreshold:
			return domain.DecisionClose
		default:
			return domain.DecisionHold
		}
	}

	switch {
	case r.WeightedScore >= buyThreshold:
		return domain.DecisionBuy
	case r.WeightedScore <= sellThreshold:
		if supportsShort {
			return domain.DecisionShort
		}
		return domain.DecisionHold
	default:
		return domain.DecisionHold
	}
}
