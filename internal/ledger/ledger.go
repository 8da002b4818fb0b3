// Package ledger implements the PortfolioLedger (spec.md §4.5): the
// sole mutator of Portfolio/Position/Order state, grounded on the
// teacher's internal/database/repository.go transaction patterns and
// internal/risk/manager.go's margin/stop checks, reworked around an
// explicit *domain.Portfolio value instead of the teacher's
// package-level DB handle (Design Notes, spec.md §9: explicit
// transaction context, not implicit global state).
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// Ledger mutates exactly one Portfolio. It holds no persistence
// concerns of its own — ledgerstore.Store is responsible for durable
// writes; Ledger only enforces the in-memory invariants (spec.md §8:
// cash never negative, margin never breached).
type Ledger struct {
	portfolio *domain.Portfolio
	fees      FeeModel
}

func New(p *domain.Portfolio, fees FeeModel) *Ledger {
	return &Ledger{portfolio: p, fees: fees}
}

func (l *Ledger) Portfolio() *domain.Portfolio { return l.portfolio }

// OpenPosition reserves cash/margin and creates a new Position. It
// returns ErrInsufficientCash if the required margin (notional divided
// by leverage) plus entry fee exceeds available cash, never opening a position that would push cash
// negative (spec.md §8 invariant).
func (l *Ledger) OpenPosition(symbol string, product domain.ProductType, side domain.Side, quantity, price, leverage decimal.Decimal, stopLoss, takeProfit decimal.Decimal, now time.Time) (*domain.Position, error) {
	notional := price.Mul(quantity)
	marginRequired := notional.Div(leverage)
	entryFee := l.fees.EntryFee(product, notional)
	total := marginRequired.Add(entryFee)

	if total.GreaterThan(l.portfolio.Cash) {
		return nil, ErrInsufficientCash
	}

	pos := &domain.Position{
		ID:             uuid.New(),
		PortfolioID:    l.portfolio.ID,
		Symbol:         symbol,
		Product:        product,
		Side:           side,
		Quantity:       quantity,
		EntryPrice:     price,
		CurrentPrice:   price,
		Leverage:       leverage,
		MarginUsed:     marginRequired,
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
		CumulativeFees: entryFee,
		OpenedAt:       now,
		HighWaterPrice: price,
	}

	l.portfolio.Cash = l.portfolio.Cash.Sub(total)
	l.portfolio.Positions[pos.ID] = pos
	return pos, nil
}

// ClosePosition realizes P&L, releases margin back to cash, and marks
// the position closed exactly once (spec.md §4.5 step "close").
func (l *Ledger) ClosePosition(positionID uuid.UUID, exitPrice decimal.Decimal, reason domain.CloseReason, now time.Time) (*domain.Position, error) {
	pos, ok := l.portfolio.Positions[positionID]
	if !ok {
		return nil, ErrUnknownPosition
	}
	if pos.ClosedAt != nil {
		return pos, nil
	}

	pos.CurrentPrice = exitPrice
	var pnl decimal.Decimal
	switch reason {
	case domain.CloseKnockout:
		// A knockout barrier wipes out the full margin regardless of the
		// exact crossing price (spec.md §4.5): the product pays out zero
		// once the barrier is breached, not whatever the last tick priced in.
		pnl = pos.MarginUsed.Neg()
	default:
		pnl = pos.UnrealizedPnL()
	}
	exitFee := l.fees.ExitFee(pos.Product, exitPrice.Mul(pos.Quantity))

	l.portfolio.Cash = l.portfolio.Cash.Add(pos.MarginUsed).Add(pnl).Sub(exitFee)
	pos.CumulativeFees = pos.CumulativeFees.Add(exitFee)
	pos.RealizedPnl = pnl.Sub(exitFee)
	pos.ClosedAt = &now
	pos.CloseReason = reason

	return pos, nil
}

// MarkToMarket updates CurrentPrice for an open position and detects
// whether it must auto-close this tick: stop-loss, take-profit,
// knockout-barrier breach, or margin call (spec.md §4.5 step
// "mark-to-market", step order per spec.md exactly: stop-loss before
// take-profit, knockout before margin-call).
func (l *Ledger) MarkToMarket(positionID uuid.UUID, price decimal.Decimal, now time.Time) (domain.CloseReason, bool, error) {
	pos, ok := l.portfolio.Positions[positionID]
	if !ok {
		return "", false, ErrUnknownPosition
	}
	if pos.ClosedAt != nil {
		return "", false, nil
	}

	pos.CurrentPrice = price
	if pos.TrailingStopEnabled {
		l.adjustTrailingStop(pos, price)
	}

	hitStop := pos.StopLoss.IsPositive() && ((pos.Side == domain.SideLong && price.LessThanOrEqual(pos.StopLoss)) ||
		(pos.Side == domain.SideShort && price.GreaterThanOrEqual(pos.StopLoss)))
	if hitStop {
		return domain.CloseStopLoss, true, nil
	}

	hitTake := pos.TakeProfit.IsPositive() && ((pos.Side == domain.SideLong && price.GreaterThanOrEqual(pos.TakeProfit)) ||
		(pos.Side == domain.SideShort && price.LessThanOrEqual(pos.TakeProfit)))
	if hitTake {
		return domain.CloseTakeProfit, true, nil
	}

	if pos.Product == domain.ProductKnockout && pos.KnockoutLevel.IsPositive() {
		breached := (pos.Side == domain.SideLong && price.LessThanOrEqual(pos.KnockoutLevel)) ||
			(pos.Side == domain.SideShort && price.GreaterThanOrEqual(pos.KnockoutLevel))
		if breached {
			return domain.CloseKnockout, true, nil
		}
	}

	equity := l.portfolio.Cash.Add(domain.UnrealizedPnL(positionsSlice(l.portfolio)))
	if pos.MarginUsed.IsPositive() && equity.LessThan(pos.MarginUsed.Mul(decimal.NewFromFloat(0.25))) {
		return domain.CloseMarginCall, true, nil
	}

	return "", false, nil
}

// adjustTrailingStop ratchets the stop-loss up (long) or down (short)
// to TrailingStopPct away from the best price seen, on every mark,
// supplemented from the teacher's internal/risk trailing logic
// (SPEC_FULL.md §12). There is no activation threshold: the ratchet
// applies from the first mark, and TrailingStopActivation is not read.
func (l *Ledger) adjustTrailingStop(pos *domain.Position, price decimal.Decimal) {
	if pos.Side == domain.SideLong {
		if price.GreaterThan(pos.HighWaterPrice) {
			pos.HighWaterPrice = price
		}
		newStop := pos.HighWaterPrice.Mul(decimal.NewFromInt(1).Sub(pos.TrailingStopPct))
		if newStop.GreaterThan(pos.StopLoss) {
			pos.StopLoss = newStop
		}
		return
	}
	if price.LessThan(pos.HighWaterPrice) || pos.HighWaterPrice.IsZero() {
		pos.HighWaterPrice = price
	}
	newStop := pos.HighWaterPrice.Mul(decimal.NewFromInt(1).Add(pos.TrailingStopPct))
	if pos.StopLoss.IsZero() || newStop.LessThan(pos.StopLoss) {
		pos.StopLoss = newStop
	}
}

// ApplyOvernightFees charges every open leveraged position one day's
// financing cost, and decays every open warrant's price by one day's
// theta, run once by the scheduler's overnight job
// (engine.overnight_fees_at, spec.md §6). Warrants carry no commission
// or financing — their cost of carry is entirely the time-value decay
// marked into CurrentPrice, so it is not added to the returned cash
// total.
func (l *Ledger) ApplyOvernightFees(now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, pos := range l.portfolio.Positions {
		if pos.ClosedAt != nil {
			continue
		}
		if pos.Product == domain.ProductWarrant {
			pos.CurrentPrice = l.fees.WarrantDecay(pos.CurrentPrice, 1)
			continue
		}
		fee := l.fees.OvernightFee(pos.Product, pos.Notional())
		if fee.IsZero() {
			continue
		}
		pos.CumulativeFees = pos.CumulativeFees.Add(fee)
		l.portfolio.Cash = l.portfolio.Cash.Sub(fee)
		total = total.Add(fee)
	}
	return total
}

// SettleExpired force-closes any position whose ExpiryDate has passed
// (knockout/warrant products), at the last marked CurrentPrice
// (spec.md §4.5 step "settlement").
func (l *Ledger) SettleExpired(now time.Time) []*domain.Position {
	var settled []*domain.Position
	for _, pos := range l.portfolio.Positions {
		if pos.ClosedAt != nil || pos.ExpiryDate == nil {
			continue
		}
		if now.Before(*pos.ExpiryDate) {
			continue
		}
		if _, err := l.ClosePosition(pos.ID, pos.CurrentPrice, domain.CloseExpiry, now); err == nil {
			settled = append(settled, pos)
		}
	}
	return settled
}

func positionsSlice(p *domain.Portfolio) []domain.Position {
	out := make([]domain.Position, 0, len(p.Positions))
	for _, pos := range p.Positions {
		out = append(out, *pos)
	}
	return out
}
