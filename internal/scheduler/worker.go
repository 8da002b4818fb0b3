package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paperdesk/trader-engine/internal/aggregator"
	"github.com/paperdesk/trader-engine/internal/domain"
	"github.com/paperdesk/trader-engine/internal/risk"
	"github.com/paperdesk/trader-engine/internal/signal"
	"github.com/paperdesk/trader-engine/internal/sizing"
)

// runWorker is the per-trader loop: tick on the configured interval,
// refresh state, and sequentially evaluate every watchlist symbol
// (spec.md §4.6). Stopping the worker context lets any in-flight
// symbol evaluation finish before returning.
func (e *Engine) runWorker(ctx context.Context, rt *traderRuntime) {
	interval := time.Duration(rt.trader.Personality.Schedule.CheckIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx, rt)
		}
	}
}

func (e *Engine) tick(ctx context.Context, rt *traderRuntime) {
	tickCtx, cancel := context.WithTimeout(ctx, e.cfg.TickTimeout)
	defer cancel()

	rt.mu.Lock()
	paused := rt.paused
	rt.mu.Unlock()

	e.markToMarketAll(tickCtx, rt)

	if paused {
		return
	}

	if rt.trader.Personality.Schedule.TradingHoursOnly && !rt.calendar.InWindow(time.Now()) {
		return
	}

	symbols := rt.trader.Personality.Watchlist.Symbols
	for _, symbol := range symbols {
		select {
		case <-tickCtx.Done():
			return
		default:
		}
		e.evaluateSymbol(tickCtx, rt, symbol)
	}
}

// markToMarketAll refreshes every open position's current price and
// closes any that breach a stop/take/knockout/margin threshold — run
// every tick regardless of pause state (spec.md §4.6: "paused traders
// still mark to market"). It also folds any realized P&L into the
// running daily total and ratchets the tracked peak equity, so the
// risk gate's daily-loss-limit and max-drawdown stages see real state
// instead of a value that resets to the current mark every tick.
func (e *Engine) markToMarketAll(ctx context.Context, rt *traderRuntime) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	port := rt.ledger.Portfolio()
	for id, pos := range port.Positions {
		if pos.ClosedAt != nil {
			continue
		}
		quoteCtx, cancel := context.WithTimeout(ctx, e.cfg.PriceTimeout)
		q, err := e.feed.Quote(quoteCtx, pos.Symbol)
		cancel()
		if err != nil {
			continue
		}
		price := decimal.NewFromFloat(q.Price)
		reason, shouldClose, err := rt.ledger.MarkToMarket(id, price, time.Now())
		if err != nil || !shouldClose {
			continue
		}
		closed, err := rt.ledger.ClosePosition(id, price, reason, time.Now())
		if err != nil {
			continue
		}
		rt.dailyPnL = rt.dailyPnL.Add(closed.RealizedPnl)
		if closed.RealizedPnl.IsNegative() {
			rt.gate.RecordLoss()
		} else {
			rt.gate.RecordWin()
		}
		if e.bus != nil {
			e.bus.Publish(ctx, rt.trader.ID, "position_closed", closed, time.Now())
		}
	}

	equity := portfolioValue(port)
	if equity.GreaterThan(rt.peakEquity) {
		rt.peakEquity = equity
	}

	e.store.SavePortfolio(ctx, port)
}

// evaluateSymbol runs one symbol through the full pipeline: PriceFeed
// -> SignalSource fan-out -> Aggregator -> RiskGate -> Sizer -> Ledger,
// persisting a Decision regardless of outcome (spec.md §4.2-§4.5: every
// symbol considered gets a Decision, even hold/skip).
func (e *Engine) evaluateSymbol(ctx context.Context, rt *traderRuntime, symbol string) {
	skipUnpriced := func() {
		e.store.SaveDecision(ctx, &domain.Decision{
			ID: uuid.New(), TraderID: rt.trader.ID, Timestamp: time.Now(), Symbol: symbol,
			Type: domain.DecisionSkip, Reasoning: domain.Reasoning{RejectedBy: "price_unavailable"},
		})
	}
	priceCtx, cancel := context.WithTimeout(ctx, e.cfg.PriceTimeout)
	defer cancel()
	quote, err := e.feed.Quote(priceCtx, symbol)
	if err != nil {
		skipUnpriced()
		return
	}
	candles, err := e.feed.Candles(priceCtx, symbol, e.cfg.CandleLookback)
	if err != nil {
		skipUnpriced()
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	port := rt.ledger.Portfolio()
	var existingPos *domain.Position
	for _, p := range port.Positions {
		if p.Symbol == symbol && p.ClosedAt == nil {
			existingPos = p
			break
		}
	}

	window := signal.Window{
		Symbol:        symbol,
		CurrentPrice:  quote.Price,
		Candles:       candles,
		OpenPositions: len(openPositions(port)),
	}
	verdicts := signal.CollectAll(ctx, e.sources, window, e.cfg.SourceTimeout)

	result := rt.agg.Fuse(verdicts)

	product := domain.ProductStock // watchlist-level product defaults to stock; CFD/leveraged symbols are configured per-symbol upstream of this engine

	hasPos := existingPos != nil
	var side domain.Side
	if hasPos {
		side = existingPos.Side
	}
	decisionType := aggregator.ProposeDecision(result, rt.trader.Personality, hasPos, side, product.SupportsShort())

	decision := buildDecision(rt.trader.ID, symbol, result, decisionType, quote, port)

	if decisionType == domain.DecisionHold || decisionType == domain.DecisionSkip {
		if decisionType == domain.DecisionSkip {
			decision.Reasoning.RejectedBy = "insufficient_signals"
		}
		e.store.SaveDecision(ctx, decision)
		return
	}

	if decisionType == domain.DecisionClose {
		e.closeBySignal(ctx, rt, existingPos, decision)
		return
	}

	initialBudget := decimal.NewFromFloat(rt.trader.Personality.Capital.InitialBudget)
	currentEquity := portfolioValue(port)
	dailyPnL := rt.dailyPnL.Add(domain.UnrealizedPnL(openPositionValues(port)))

	gateVerdict := rt.gate.Evaluate(risk.Input{
		Proposed:         decisionType,
		Confidence:       result.WeightedConfidence,
		Agreement:        result.Agreement,
		Now:              time.Now(),
		Calendar:         rt.calendar,
		ScheduleEnabled:  rt.trader.Personality.Schedule.Enabled,
		Personality:      rt.trader.Personality,
		InitialBudget:    initialBudget,
		Cash:             port.Cash,
		PortfolioValue:   currentEquity,
		OpenPositions:    len(openPositions(port)),
		SymbolExposure:   symbolExposure(port, symbol),
		TotalExposure:    totalExposure(port),
		ProposedNotional: initialBudget.Mul(decimal.NewFromFloat(rt.trader.Personality.Capital.MaxPositionPercent)),
		DailyPnL:         dailyPnL,
		PeakEquity:       rt.peakEquity,
		CurrentEquity:    currentEquity,
	})

	if !gateVerdict.Passed {
		decision.Type = domain.DecisionSkip
		decision.Reasoning.RejectedBy = gateVerdict.RejectedBy
		e.store.SaveDecision(ctx, decision)
		return
	}

	side = domain.SideLong
	if decisionType == domain.DecisionShort {
		side = domain.SideShort
	}

	sizeResult := sizing.Size(sizing.Input{
		Personality:    rt.trader.Personality,
		Product:        product,
		Price:          decimal.NewFromFloat(quote.Price),
		InitialBudget:  initialBudget,
		PortfolioValue: currentEquity,
		Cash:           port.Cash,
		Confidence:     result.WeightedConfidence,
	}, side)

	if sizeResult.TooSmall {
		decision.Type = domain.DecisionSkip
		decision.Reasoning.RejectedBy = "size_too_small"
		e.store.SaveDecision(ctx, decision)
		return
	}

	pos, err := rt.ledger.OpenPosition(symbol, product, side, sizeResult.Quantity,
		decimal.NewFromFloat(quote.Price), decimal.NewFromInt(1), sizeResult.StopLoss, sizeResult.TakeProfit, time.Now())
	if err != nil {
		decision.Type = domain.DecisionSkip
		decision.Reasoning.RejectedBy = "insufficient_cash"
		decision.ExecutionError = err.Error()
		e.store.SaveDecision(ctx, decision)
		return
	}

	decision.Executed = true
	decision.PositionID = &pos.ID
	e.store.SaveDecision(ctx, decision)
	e.store.SavePortfolio(ctx, port)
	if e.bus != nil {
		e.bus.Publish(ctx, rt.trader.ID, "position_opened", pos, time.Now())
	}
}

func (e *Engine) closeBySignal(ctx context.Context, rt *traderRuntime, pos *domain.Position, decision *domain.Decision) {
	closed, err := rt.ledger.ClosePosition(pos.ID, pos.CurrentPrice, domain.CloseUser, time.Now())
	if err != nil {
		decision.Type = domain.DecisionSkip
		decision.ExecutionError = err.Error()
		e.store.SaveDecision(ctx, decision)
		return
	}
	rt.dailyPnL = rt.dailyPnL.Add(closed.RealizedPnl)
	if closed.RealizedPnl.IsNegative() {
		rt.gate.RecordLoss()
	} else {
		rt.gate.RecordWin()
	}
	decision.Executed = true
	decision.PositionID = &closed.ID
	e.store.SaveDecision(ctx, decision)
	e.store.SavePortfolio(ctx, rt.ledger.Portfolio())
	if e.bus != nil {
		e.bus.Publish(ctx, rt.trader.ID, "position_closed", closed, time.Now())
	}
}

func buildDecision(traderID uuid.UUID, symbol string, result aggregator.Result, decisionType domain.DecisionType, quote domain.Quote, port *domain.Portfolio) *domain.Decision {
	d := &domain.Decision{
		ID:              uuid.New(),
		TraderID:        traderID,
		Timestamp:       time.Now(),
		Symbol:          symbol,
		Type:            decisionType,
		WeightedScore:   result.WeightedScore,
		SignalAgreement: result.Agreement,
		Reasoning: domain.Reasoning{
			Verdicts:      result.Verdicts,
			WeightedScore: result.WeightedScore,
			Agreement:     result.Agreement,
		},
		MarketContext: domain.MarketContext{
			Price:     decimal.NewFromFloat(quote.Price),
			Timestamp: quote.Timestamp,
		},
		PortfolioSnapshot: domain.PortfolioSnapshot{
			Cash:          port.Cash,
			OpenPositions: len(openPositions(port)),
			TotalExposure: totalExposure(port),
		},
	}

	for _, v := range result.Verdicts {
		score := v.Score
		switch v.Source {
		case domain.SourceML:
			d.ScoreML = &score
		case domain.SourceRL:
			d.ScoreRL = &score
		case domain.SourceSentiment:
			d.ScoreSentiment = &score
		case domain.SourceTechnical:
			d.ScoreTechnical = &score
		}
	}

	return d
}

// openPositionValues is a copying view over a Portfolio's open
// positions, the value-slice shape domain.UnrealizedPnL expects.
func openPositionValues(p *domain.Portfolio) []domain.Position {
	out := make([]domain.Position, 0, len(p.Positions))
	for _, pos := range p.Positions {
		if pos.ClosedAt == nil {
			out = append(out, *pos)
		}
	}
	return out
}

func openPositions(p *domain.Portfolio) []*domain.Position {
	out := make([]*domain.Position, 0, len(p.Positions))
	for _, pos := range p.Positions {
		if pos.ClosedAt == nil {
			out = append(out, pos)
		}
	}
	return out
}

func portfolioValue(p *domain.Portfolio) decimal.Decimal {
	total := p.Cash
	for _, pos := range openPositions(p) {
		total = total.Add(pos.Notional())
	}
	return total
}

func symbolExposure(p *domain.Portfolio, symbol string) decimal.Decimal {
	total := decimal.Zero
	for _, pos := range openPositions(p) {
		if pos.Symbol == symbol {
			total = total.Add(pos.Notional())
		}
	}
	return total
}

func totalExposure(p *domain.Portfolio) decimal.Decimal {
	total := decimal.Zero
	for _, pos := range openPositions(p) {
		total = total.Add(pos.Notional())
	}
	return total
}
