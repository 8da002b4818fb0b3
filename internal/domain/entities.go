package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trader is the root aggregate: identity, Personality, lifecycle
// state, and cumulative counters derived from Decisions+Positions
// (spec.md §3). Counters are recomputed from the Decision/Position
// history, never incremented ad hoc, so they cannot drift.
type Trader struct {
	ID          uuid.UUID
	Name        string
	Personality Personality
	State       TraderState
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Counters TraderCounters
}

// TraderCounters are derived, not authoritative — RecomputeCounters rebuilds
// them from a trader's Decisions and the Portfolio's closed Positions
// (spec.md §4.6 step 5).
type TraderCounters struct {
	Decisions     int
	Trades        int
	Wins          int
	Losses        int
	TotalPnL      decimal.Decimal
	BestTrade     decimal.Decimal
	WorstTrade    decimal.Decimal
	CurrentStreak int // positive = winning streak, negative = losing streak
	MaxDrawdown   decimal.Decimal
}

// RecomputeCounters rebuilds TraderCounters from the full decision/position
// history, avoiding the incremental-counter drift the teacher's
// package-global mutable state was prone to.
func RecomputeCounters(decisions []Decision, positions []Position) TraderCounters {
	c := TraderCounters{}
	peak := decimal.Zero
	running := decimal.Zero
	streak := 0
	for range decisions {
		c.Decisions++
	}
	// Sort-independent: positions carry ClosedAt, we walk them in
	// closing order to compute streaks and drawdown deterministically.
	closed := make([]Position, 0, len(positions))
	for _, p := range positions {
		if p.ClosedAt != nil {
			closed = append(closed, p)
		}
	}
	for i := 0; i < len(closed); i++ {
		for j := i + 1; j < len(closed); j++ {
			if closed[j].ClosedAt.Before(*closed[i].ClosedAt) {
				closed[i], closed[j] = closed[j], closed[i]
			}
		}
	}
	for _, p := range closed {
		c.Trades++
		pnl := p.RealizedPnl
		c.TotalPnL = c.TotalPnL.Add(pnl)
		if pnl.GreaterThan(c.BestTrade) || c.Trades == 1 {
			c.BestTrade = pnl
		}
		if pnl.LessThan(c.WorstTrade) || c.Trades == 1 {
			c.WorstTrade = pnl
		}
		if pnl.IsPositive() {
			c.Wins++
			if streak >= 0 {
				streak++
			} else {
				streak = 1
			}
		} else if pnl.IsNegative() {
			c.Losses++
			if streak <= 0 {
				streak--
			} else {
				streak = -1
			}
		}
		running = running.Add(pnl)
		if running.GreaterThan(peak) {
			peak = running
		}
		drawdown := peak.Sub(running)
		if drawdown.GreaterThan(c.MaxDrawdown) {
			c.MaxDrawdown = drawdown
		}
	}
	c.CurrentStreak = streak
	return c
}

// Portfolio is owned exclusively by one Trader. cash >= 0 at rest;
// sum(position.marginUsed) <= initialCapital - cash + realizedPnl
// (spec.md §3 invariant).
type Portfolio struct {
	ID             uuid.UUID
	TraderID       uuid.UUID
	Cash           decimal.Decimal
	InitialCapital decimal.Decimal
	BrokerProfileID string
	Positions      map[uuid.UUID]*Position
	OpenOrders     map[uuid.UUID]*Order
}

func NewPortfolio(traderID uuid.UUID, initialCapital decimal.Decimal, brokerProfileID string) *Portfolio {
	return &Portfolio{
		ID:              uuid.New(),
		TraderID:        traderID,
		Cash:            initialCapital,
		InitialCapital:  initialCapital,
		BrokerProfileID: brokerProfileID,
		Positions:       make(map[uuid.UUID]*Position),
		OpenOrders:      make(map[uuid.UUID]*Order),
	}
}

// RealizedPnL sums realized P&L across all positions ever held in the
// portfolio snapshot passed in (closed positions only).
func RealizedPnL(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		if p.ClosedAt != nil {
			total = total.Add(p.RealizedPnl)
		}
	}
	return total
}

// TotalFeesPaid sums CumulativeFees across all positions (open+closed).
func TotalFeesPaid(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.CumulativeFees)
	}
	return total
}

// UnrealizedPnL computes mark-to-market P&L for all open positions.
func UnrealizedPnL(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		if p.ClosedAt == nil {
			total = total.Add(p.UnrealizedPnL())
		}
	}
	return total
}

// Position is exclusively owned by a Portfolio. Lifecycle: open ->
// (mark-to-market updates) -> closed exactly once (spec.md §3).
type Position struct {
	ID          uuid.UUID
	PortfolioID uuid.UUID
	Symbol      string
	Product     ProductType
	Side        Side
	Quantity    decimal.Decimal
	EntryPrice  decimal.Decimal
	CurrentPrice decimal.Decimal
	Leverage    decimal.Decimal
	MarginUsed  decimal.Decimal
	StopLoss    decimal.Decimal
	TakeProfit  decimal.Decimal

	// Leveraged-product fields
	KnockoutLevel decimal.Decimal
	ExpiryDate    *time.Time

	// Warrant fields
	Strike     decimal.Decimal
	OptionType string // "call" or "put"
	Ratio      decimal.Decimal
	IV         decimal.Decimal

	// Trailing stop (supplemented feature, §12)
	TrailingStopEnabled bool
	TrailingStopPct     decimal.Decimal
	HighWaterPrice      decimal.Decimal

	CumulativeFees decimal.Decimal
	OpenedAt       time.Time
	ClosedAt       *time.Time
	CloseReason    CloseReason
	RealizedPnl    decimal.Decimal
}

// UnrealizedPnL computes the mark-to-market P&L for an open position.
func (p Position) UnrealizedPnL() decimal.Decimal {
	diff := p.CurrentPrice.Sub(p.EntryPrice)
	if p.Side == SideShort {
		diff = diff.Neg()
	}
	return diff.Mul(p.Quantity).Mul(p.Leverage)
}

// Notional returns the position's current notional exposure.
func (p Position) Notional() decimal.Decimal {
	return p.CurrentPrice.Mul(p.Quantity)
}

// Order models a pending/filled/cancelled/rejected instruction
// (spec.md §3). Pending orders reserve cash; cancel/fill releases it.
type Order struct {
	ID          uuid.UUID
	PortfolioID uuid.UUID
	Symbol      string
	Type        OrderType
	Side        OrderSide
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Status      OrderStatus
	ReservedCash decimal.Decimal
	CreatedAt   time.Time
	FilledAt    *time.Time
}

// MarketContext is a typed snapshot of conditions at decision time,
// replacing the teacher's untyped "market context" blob (Design Notes,
// spec.md §9): a concrete struct, opaque bytes only at the store
// boundary.
type MarketContext struct {
	Price     decimal.Decimal
	Timestamp time.Time
	Candles   int // number of candles considered
}

// PortfolioSnapshot is a typed point-in-time view of portfolio state
// at decision time.
type PortfolioSnapshot struct {
	Cash          decimal.Decimal
	OpenPositions int
	TotalExposure decimal.Decimal
	DailyPnL      decimal.Decimal
}

// Reasoning is a tagged variant carrying the structured "why" behind a
// Decision (Design Notes, spec.md §9: tagged variant, not untyped blob).
type Reasoning struct {
	Verdicts      []Verdict
	WeightedScore float64
	Agreement     Agreement
	RejectedBy    string // empty unless decisionType is hold/skip
	Summary       string
}

// Decision is a per-symbol record of a single tick's evaluation
// (spec.md §3). Outcome fields are populated later, when the linked
// Position closes (outcome attribution, GLOSSARY).
type Decision struct {
	ID              uuid.UUID
	TraderID        uuid.UUID
	Timestamp       time.Time
	Symbol          string
	SymbolsAnalyzed []string
	Type            DecisionType
	Reasoning       Reasoning
	Executed        bool
	PositionID      *uuid.UUID
	OrderID         *uuid.UUID
	ExecutionError  string

	// Per-source scores, duplicated out of Reasoning.Verdicts for
	// convenient querying (mirrors the teacher's AIDecision columns).
	ScoreML         *float64
	ScoreRL         *float64
	ScoreSentiment  *float64
	ScoreTechnical  *float64
	WeightedScore   float64
	SignalAgreement Agreement

	Summary           string
	MarketContext     MarketContext
	PortfolioSnapshot PortfolioSnapshot

	// Outcome attribution, filled within one hour of the linked
	// Position closing (spec.md §8 invariant).
	PnL          *decimal.Decimal
	PnLPct       *float64
	HoldingDays  *float64
	WasCorrect   *bool
}

// WeightHistory records one adaptive-learning weight adjustment
// (spec.md §3, §4.7).
type WeightHistory struct {
	ID         uuid.UUID
	TraderID   uuid.UUID
	Timestamp  time.Time
	OldWeights map[SourceName]float64
	NewWeights map[SourceName]float64
	Reason     string
	Accuracy   map[SourceName]float64
}

// DailyReport is one per (trader, date) (spec.md §3).
type DailyReport struct {
	TraderID      uuid.UUID
	Date          time.Time
	StartValue    decimal.Decimal
	EndValue      decimal.Decimal
	PnL           decimal.Decimal
	FeesPaid      decimal.Decimal
	TradeCount    int
	WinCount      int
	LossCount     int
	WinRate       float64
	BestTrade     decimal.Decimal
	WorstTrade    decimal.Decimal
	SourceAccuracy map[SourceName]float64
	Insights      []string
}
