// Package risk implements the ten-stage RiskGate cascade (spec.md §4.3),
// grounded on the teacher's internal/risk/manager.go CheckAllRiskLimits
// chain, but reworked from its 'stop at first failing bool field' idiom
// into an explicit ordered slice of named Stage functions so the
// rejection reason is always attributable to one stage.
package risk

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// Input is everything a Stage needs to evaluate one proposed decision.
// Carrying only value types keeps RiskGate a leaf that never imports
// ledger or scheduler (Design Notes, spec.md §9).
type Input struct {
	Proposed        domain.DecisionType
	Confidence      float64
	Agreement       domain.Agreement
	Now             time.Time
	Calendar        domain.TradingCalendar
	ScheduleEnabled bool

	Personality domain.Personality

	// InitialBudget anchors the reserve/exposure/daily-loss limits to
	// the trader's configured starting capital (spec.md §4.3 checks
	// 5/7/9/10: "... · initialBudget"), not the fluctuating mark-to-market
	// PortfolioValue, so limits don't drift wider after a winning streak
	// or narrower after a losing one.
	InitialBudget decimal.Decimal

	Cash             decimal.Decimal
	PortfolioValue   decimal.Decimal
	OpenPositions    int
	SymbolExposure   decimal.Decimal // current notional in this symbol
	TotalExposure    decimal.Decimal // current notional across all positions
	ProposedNotional decimal.Decimal

	DailyPnL      decimal.Decimal
	PeakEquity    decimal.Decimal
	CurrentEquity decimal.Decimal
}

// Verdict is the RiskGate's outcome: either passed, or rejected by a
// named stage (spec.md §4.3: "the first failing check's name is
// recorded as the rejection reason").
type Verdict struct {
	Passed     bool
	RejectedBy string
}

// Stage is one risk check. It returns ("", true) on pass, or
// (stageName, false) on rejection — the name doubles as the
// RejectedBy reason.
type Stage func(in Input) (name string, passed bool)

// Gate runs the fixed-order ten-stage cascade, short-circuiting at the
// first failing stage (spec.md §4.3).
type Gate struct {
	stages  []Stage
	breaker *gobreaker.CircuitBreaker
}

// New builds a Gate for one trader, with the loss-cooldown stage
// backed by a real circuit breaker (sony/gobreaker) configured from
// that trader's RiskConfig — replacing the teacher's bespoke
// internal/circuit/breaker.go state machine with the genuine library
// the rest of the pack favors for this concern. The breaker opens
// after lossCooldownTrades consecutive RecordLoss calls and stays open
// for cooldownMinutes.
func New(lossCooldownTrades int, cooldownMinutes int) *Gate {
	g := &Gate{}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "loss-cooldown",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     time.Duration(cooldownMinutes) * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= lossCooldownTrades
		},
	})
	g.stages = []Stage{
		stageConfidenceFloor,
		stageAgreementFloor,
		stageTradingHours,
		g.stageLossCooldown,
		stageDailyLossLimit,
		stageMaxDrawdown,
		stageCashReserve,
		stagePositionCount,
		stageSymbolExposure,
		stageTotalExposure,
	}
	return g
}

// Evaluate runs every stage in order against in, short-circuiting at
// the first rejection (spec.md §4.3).
func (g *Gate) Evaluate(in Input) Verdict {
	if in.Proposed == domain.DecisionHold || in.Proposed == domain.DecisionSkip {
		return Verdict{Passed: true}
	}
	for _, s := range g.stages {
		if name, ok := s(in); !ok {
			return Verdict{Passed: false, RejectedBy: name}
		}
	}
	return Verdict{Passed: true}
}

// RecordLoss trips the loss-cooldown breaker open for cooldownMinutes
// after lossCooldownTrades consecutive losses have occurred — called by
// the scheduler after each position close, not by Evaluate itself,
// since the breaker's state must outlive any single decision.
func (g *Gate) RecordLoss() {
	g.breaker.Execute(func() (interface{}, error) { return nil, assertFail })
}

// RecordWin records a success: while the breaker is closed it clears
// the consecutive-loss count, and a half-open breaker closes. While the
// breaker is open the call is rejected and has no effect.
func (g *Gate) RecordWin() {
	g.breaker.Execute(func() (interface{}, error) { return nil, nil })
}

var assertFail = failure{}

type failure struct{}

func (failure) Error() string { return "loss recorded" }

func stageConfidenceFloor(in Input) (string, bool) {
	return "confidence_floor", in.Confidence >= in.Personality.Trading.MinConfidence
}

func stageAgreementFloor(in Input) (string, bool) {
	return "agreement_floor", in.Agreement.Threshold() >= in.Personality.Signals.MinAgreement
}

func stageTradingHours(in Input) (string, bool) {
	if !in.ScheduleEnabled || !in.Personality.Schedule.TradingHoursOnly {
		return "trading_hours", true
	}
	return "trading_hours", in.Calendar.InWindow(in.Now)
}

func (g *Gate) stageLossCooldown(in Input) (string, bool) {
	return "loss_cooldown", g.breaker.State() != gobreaker.StateOpen
}

func stageDailyLossLimit(in Input) (string, bool) {
	if in.InitialBudget.IsZero() {
		return "daily_loss_limit", true
	}
	limit := in.InitialBudget.Mul(decimal.NewFromFloat(in.Personality.Risk.DailyLossPct)).Neg()
	return "daily_loss_limit", in.DailyPnL.GreaterThanOrEqual(limit)
}

func stageMaxDrawdown(in Input) (string, bool) {
	if in.PeakEquity.IsZero() {
		return "max_drawdown", true
	}
	drawdown := in.PeakEquity.Sub(in.CurrentEquity).Div(in.PeakEquity)
	maxDD := decimal.NewFromFloat(in.Personality.Risk.MaxDrawdownPct)
	return "max_drawdown", drawdown.LessThanOrEqual(maxDD)
}

func stageCashReserve(in Input) (string, bool) {
	reserve := in.InitialBudget.Mul(decimal.NewFromFloat(in.Personality.Capital.ReserveCashPercent))
	remaining := in.Cash.Sub(in.ProposedNotional)
	return "cash_reserve", remaining.GreaterThanOrEqual(reserve)
}

func stagePositionCount(in Input) (string, bool) {
	return "position_count", in.OpenPositions < in.Personality.Trading.MaxOpenPositions
}

func stageSymbolExposure(in Input) (string, bool) {
	if in.InitialBudget.IsZero() {
		return "symbol_exposure", true
	}
	maxSymbol := in.InitialBudget.Mul(decimal.NewFromFloat(in.Personality.Capital.MaxPositionPercent))
	return "symbol_exposure", in.SymbolExposure.Add(in.ProposedNotional).LessThanOrEqual(maxSymbol)
}

func stageTotalExposure(in Input) (string, bool) {
	if in.InitialBudget.IsZero() {
		return "total_exposure", true
	}
	maxTotal := in.InitialBudget.Mul(decimal.NewFromFloat(in.Personality.Risk.TotalExposurePct))
	return "total_exposure", in.TotalExposure.Add(in.ProposedNotional).LessThanOrEqual(maxTotal)
}
