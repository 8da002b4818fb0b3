package signal

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// PricePredictor is the opaque collaborator behind the ML SignalSource
// (spec.md §4.1: "the engine treats it as a black box"). Any model
// serving stack can satisfy this — the engine only needs a directional
// price forecast and its confidence.
type PricePredictor interface {
	// Predict returns the forecast price move as a fraction of current
	// price (positive = up) and the model's confidence in it.
	Predict(ctx context.Context, symbol string, candles []domain.Candle) (movePct float64, confidence float64, err error)
}

// ML adapts a PricePredictor into a Source, bounding call rate with a
// token bucket so a slow or bursty model backend cannot starve the
// tick loop — grounded on the teacher's use of per-collaborator rate
// limiting ahead of external calls in internal/autopilot.
type ML struct {
	predictor PricePredictor
	limiter   *rate.Limiter
}

func NewML(predictor PricePredictor, limiter *rate.Limiter) *ML {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(5), 5)
	}
	return &ML{predictor: predictor, limiter: limiter}
}

func (m *ML) Name() domain.SourceName { return domain.SourceML }

func (m *ML) Available() bool { return m.predictor != nil }

func (m *ML) Evaluate(ctx context.Context, w Window) (domain.Verdict, error) {
	if m.predictor == nil {
		return domain.Verdict{}, ErrUnavailable
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return domain.Verdict{}, ErrUnavailable
	}

	movePct, confidence, err := m.predictor.Predict(ctx, w.Symbol, w.Candles)
	if err != nil {
		return domain.Verdict{}, ErrUnavailable
	}

	score := clamp01(0.5 + movePct*5) // a 10% forecast move saturates the score
	direction := domain.DirNeutral
	switch {
	case movePct > 0.001:
		direction = domain.DirUp
	case movePct < -0.001:
		direction = domain.DirDown
	}

	return domain.Verdict{
		Source:     domain.SourceML,
		Score:      score,
		Confidence: clamp01(confidence),
		Direction:  direction,
		Rationale:  "ml: price predictor forecast",
	}, nil
}
