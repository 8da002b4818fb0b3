package scheduler

import (
	"context"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// PriceFeed is the opaque market-data collaborator the scheduler pulls
// candles and live quotes from (spec.md §6). Treated as a black box,
// same as the SignalSource collaborators in internal/signal.
type PriceFeed interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
	Candles(ctx context.Context, symbol string, lookback int) ([]domain.Candle, error)
}
