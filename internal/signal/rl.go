package signal

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// ActionPolicy is the opaque collaborator behind the RL SignalSource: a
// reinforcement-learned agent that maps a window to an action
// distribution (spec.md §4.1). Treated as a black box, same as
// PricePredictor.
type ActionPolicy interface {
	// Act returns the policy's preferred action ("buy", "sell", "hold")
	// and the probability mass on that action.
	Act(ctx context.Context, symbol string, candles []domain.Candle, openPositions int) (action string, probability float64, err error)
}

// RL adapts an ActionPolicy into a Source.
type RL struct {
	policy  ActionPolicy
	limiter *rate.Limiter
}

func NewRL(policy ActionPolicy, limiter *rate.Limiter) *RL {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(5), 5)
	}
	return &RL{policy: policy, limiter: limiter}
}

func (r *RL) Name() domain.SourceName { return domain.SourceRL }

func (r *RL) Available() bool { return r.policy != nil }

func (r *RL) Evaluate(ctx context.Context, w Window) (domain.Verdict, error) {
	if r.policy == nil {
		return domain.Verdict{}, ErrUnavailable
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.Verdict{}, ErrUnavailable
	}

	action, probability, err := r.policy.Act(ctx, w.Symbol, w.Candles, w.OpenPositions)
	if err != nil {
		return domain.Verdict{}, ErrUnavailable
	}

	direction := domain.DirNeutral
	score := 0.5
	switch action {
	case "buy":
		direction = domain.DirUp
		score = clamp01(0.5 + probability*0.5)
	case "sell":
		direction = domain.DirDown
		score = clamp01(0.5 - probability*0.5)
	}

	return domain.Verdict{
		Source:     domain.SourceRL,
		Score:      score,
		Confidence: clamp01(probability),
		Direction:  direction,
		Rationale:  "rl: action policy " + action,
	}, nil
}
