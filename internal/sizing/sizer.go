// Package sizing implements the PositionSizer (spec.md §4.4): turning
// a passed-risk-gate decision into a concrete quantity, stop-loss and
// take-profit price. Grounded on the teacher's position-sizing helpers
// in internal/risk/manager.go (CalculatePositionSize) and
// internal/autopilot, generalized to the three configurable methods
// spec.md names instead of the teacher's single fixed-percent scheme.
package sizing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// Input carries everything a sizing method needs for one symbol.
type Input struct {
	Personality domain.Personality
	Product     domain.ProductType
	Price       decimal.Decimal

	// InitialBudget anchors every sizing method to the trader's
	// configured starting capital (spec.md §4.4: the Fixed formula and
	// the max-position clamp are both "... · initialBudget"), not the
	// fluctuating mark-to-market PortfolioValue.
	InitialBudget  decimal.Decimal
	PortfolioValue decimal.Decimal
	Cash           decimal.Decimal
	Confidence     float64 // used by Kelly as the edge proxy
	Volatility     float64 // trailing annualized volatility, used by the volatility method
}

// Result is the sized order: zero Quantity means "too small to trade"
// (spec.md §4.4: "skip with size_too_small when the computed quantity
// rounds to zero").
type Result struct {
	Quantity     decimal.Decimal
	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
	TooSmall     bool
}

// Size computes a Result using the method named in
// in.Personality.Trading.PositionSizing ("fixed", "kelly", "volatility").
func Size(in Input, side domain.Side) Result {
	var notional decimal.Decimal
	switch in.Personality.Trading.PositionSizing {
	case "kelly":
		notional = kellyNotional(in)
	case "volatility":
		notional = volatilityNotional(in)
	default:
		notional = fixedNotional(in)
	}

	maxBySymbol := in.InitialBudget.Mul(decimal.NewFromFloat(in.Personality.Capital.MaxPositionPercent))
	if notional.GreaterThan(maxBySymbol) {
		notional = maxBySymbol
	}
	if notional.GreaterThan(in.Cash) {
		notional = in.Cash
	}
	if notional.IsNegative() {
		notional = decimal.Zero
	}

	quantity := quantityFor(in.Product, notional, in.Price)
	if quantity.IsZero() || in.Price.IsZero() {
		return Result{TooSmall: true}
	}

	stopLoss, takeProfit := stopTakeLevels(in.Personality.Risk, in.Price, side)

	return Result{
		Quantity:   quantity,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
}

func fixedNotional(in Input) decimal.Decimal {
	return in.InitialBudget.Mul(decimal.NewFromFloat(in.Personality.Capital.MaxPositionPercent))
}

// kellyNotional applies a fractional Kelly criterion using confidence
// as the edge proxy: f* = confidence - (1-confidence), scaled by the
// configured KellyFraction, floored at zero.
func kellyNotional(in Input) decimal.Decimal {
	edge := 2*in.Confidence - 1
	if edge < 0 {
		edge = 0
	}
	fraction := edge * in.Personality.Trading.KellyFraction
	return in.InitialBudget.Mul(decimal.NewFromFloat(fraction))
}

// volatilityNotional scales notional inversely with trailing
// volatility so every position targets the same risk contribution,
// following the teacher's "risk parity" comment in manager.go.
func volatilityNotional(in Input) decimal.Decimal {
	target := in.Personality.Trading.TargetVolatility
	vol := in.Volatility
	if vol <= 0 {
		vol = target
	}
	scale := target / vol
	if math.IsInf(scale, 0) || math.IsNaN(scale) {
		scale = 1
	}
	base := in.InitialBudget.Mul(decimal.NewFromFloat(in.Personality.Capital.MaxPositionPercent))
	return base.Mul(decimal.NewFromFloat(scale))
}

// quantityFor floors to a whole share for stock (no fractional shares,
// spec.md §4.4), otherwise allows fractional size for leveraged
// products.
func quantityFor(product domain.ProductType, notional, price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	raw := notional.Div(price)
	if product == domain.ProductStock {
		return raw.Floor()
	}
	return raw.Round(4)
}

func stopTakeLevels(risk domain.RiskConfig, price decimal.Decimal, side domain.Side) (stopLoss, takeProfit decimal.Decimal) {
	slPct := decimal.NewFromFloat(risk.StopLossPct)
	tpPct := decimal.NewFromFloat(risk.TakeProfitPct)
	if side == domain.SideShort {
		return price.Mul(decimal.NewFromInt(1).Add(slPct)), price.Mul(decimal.NewFromInt(1).Sub(tpPct))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(slPct)), price.Mul(decimal.NewFromInt(1).Add(tpPct))
}
