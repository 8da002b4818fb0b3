package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// FeeModel computes the per-trade and per-overnight fees a
// BrokerProfile charges for one product type, grounded on the
// teacher's fee handling spread across internal/settlement and the
// broker-profile lookup the vault package now serves (spec.md §5:
// "fee model is product-type aware").
type FeeModel struct {
	Commission        decimal.Decimal // flat per-trade, stock/cfd
	SpreadPct         decimal.Decimal // knockout: wide synthetic spread instead of commission
	OvernightRatePct  decimal.Decimal // daily rate applied to notional held overnight
	FactorDailyReset  bool            // factor certificates reset leverage daily
	WarrantThetaDaily decimal.Decimal // daily time-value decay fraction
}

// EntryFee is charged once when a position opens.
func (m FeeModel) EntryFee(product domain.ProductType, notional decimal.Decimal) decimal.Decimal {
	switch product {
	case domain.ProductKnockout:
		return notional.Mul(m.SpreadPct)
	default:
		return m.Commission
	}
}

// ExitFee is charged once when a position closes.
func (m FeeModel) ExitFee(product domain.ProductType, notional decimal.Decimal) decimal.Decimal {
	return m.EntryFee(product, notional)
}

// OvernightFee is charged once per calendar day a leveraged position
// remains open when the overnight-fees job runs (spec.md §5, engine
// config overnight_fees_at). Stock and warrant positions are not financed
// overnight in this model.
func (m FeeModel) OvernightFee(product domain.ProductType, notional decimal.Decimal) decimal.Decimal {
	switch product {
	case domain.ProductCFD, domain.ProductKnockout, domain.ProductFactor:
		return notional.Mul(m.OvernightRatePct)
	default:
		return decimal.Zero
	}
}

// WarrantDecay returns current reduced by WarrantThetaDaily per elapsed
// calendar day (floored at zero); no intrinsic value is computed. This
// replaces the
// teacher's absence of options pricing with a simplified linear decay
// model sufficient for paper trading (Open Question decision,
// SPEC_FULL.md §13: calendar-day theta decay).
func (m FeeModel) WarrantDecay(current decimal.Decimal, daysElapsed int) decimal.Decimal {
	decayFactor := decimal.NewFromInt(1).Sub(m.WarrantThetaDaily.Mul(decimal.NewFromInt(int64(daysElapsed))))
	if decayFactor.IsNegative() {
		decayFactor = decimal.Zero
	}
	return current.Mul(decayFactor)
}

// DefaultFeeModel returns a conservative default, used when no broker
// profile is configured.
func DefaultFeeModel() FeeModel {
	return FeeModel{
		Commission:        decimal.NewFromFloat(1.00),
		SpreadPct:         decimal.NewFromFloat(0.002),
		OvernightRatePct:  decimal.NewFromFloat(0.0002),
		FactorDailyReset:  true,
		WarrantThetaDaily: decimal.NewFromFloat(0.01),
	}
}

// elapsedCalendarDays returns the number of whole calendar days between
// from and to, used by overnight-fee and warrant-decay scheduling.
func elapsedCalendarDays(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
