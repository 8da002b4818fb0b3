package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paperdesk/trader-engine/internal/domain"
	"github.com/paperdesk/trader-engine/internal/learning"
	"github.com/paperdesk/trader-engine/internal/reporting"
)

// parseClockString parses an engine config clock string ("17:40" or
// "17:45 Europe/Berlin", spec.md §6) into an hour/minute and the
// location it should be evaluated in. A bare "HH:MM" is evaluated
// against UTC.
func parseClockString(s string) (hour, minute int, loc *time.Location, err error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, 0, nil, fmt.Errorf("scheduler: empty clock string")
	}
	if len(fields[0]) != 5 || fields[0][2] != ':' {
		return 0, 0, nil, fmt.Errorf("scheduler: invalid clock string %q", s)
	}
	if _, err := fmt.Sscanf(fields[0], "%02d:%02d", &hour, &minute); err != nil {
		return 0, 0, nil, fmt.Errorf("scheduler: invalid clock string %q: %w", s, err)
	}
	zone := "UTC"
	if len(fields) > 1 {
		zone = fields[1]
	}
	loc, err = time.LoadLocation(zone)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("scheduler: invalid zone in %q: %w", s, err)
	}
	return hour, minute, loc, nil
}

// dueNow reports whether the current minute matches clock and it
// hasn't already fired today in clock's zone.
func dueNow(clock string, now, lastFired time.Time) bool {
	if clock == "" {
		return false
	}
	hour, minute, loc, err := parseClockString(clock)
	if err != nil {
		return false
	}
	local := now.In(loc)
	if local.Hour() != hour || local.Minute() != minute {
		return false
	}
	if !lastFired.IsZero() {
		ly, lm, ld := lastFired.In(loc).Date()
		ny, nm, nd := local.Date()
		if ly == ny && lm == nm && ld == nd {
			return false
		}
	}
	return true
}

// runDailyJobs polls once a minute for the configured overnight-fees
// and market-close clock times (spec.md §6: engine.overnight_fees_at,
// engine.market_close_job_at), firing each at most once per day.
func (e *Engine) runDailyJobs(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastOvernight, lastClose time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if dueNow(e.cfg.OvernightFeesAt, now, lastOvernight) {
				lastOvernight = now
				e.runOvernightFees(ctx)
			}
			if dueNow(e.cfg.MarketCloseJobAt, now, lastClose) {
				lastClose = now
				e.runMarketClose(ctx)
			}
		}
	}
}

func (e *Engine) snapshotRuntimes() map[uuid.UUID]*traderRuntime {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[uuid.UUID]*traderRuntime, len(e.runtimes))
	for id, rt := range e.runtimes {
		out[id] = rt
	}
	return out
}

// runOvernightFees charges every running trader's leveraged positions
// one day's financing cost and decays warrant prices by one day's
// theta (spec.md §5, §6).
func (e *Engine) runOvernightFees(ctx context.Context) {
	for traderID, rt := range e.snapshotRuntimes() {
		rt.mu.Lock()
		rt.ledger.ApplyOvernightFees(time.Now())
		port := rt.ledger.Portfolio()
		rt.mu.Unlock()

		if err := e.store.SavePortfolio(ctx, port); err != nil {
			e.log.WithError(err).Warn("saving portfolio after overnight fees", "trader_id", traderID)
		}
	}
}

// runMarketClose settles expired positions, runs adaptive learning,
// and builds the day's DailyReport for every running trader, then
// resets day-scoped risk-gate state (spec.md §4.6 step 6, §4.7).
func (e *Engine) runMarketClose(ctx context.Context) {
	for traderID, rt := range e.snapshotRuntimes() {
		e.closeTraderDay(ctx, traderID, rt)
	}
}

func (e *Engine) closeTraderDay(ctx context.Context, traderID uuid.UUID, rt *traderRuntime) {
	now := time.Now()

	rt.mu.Lock()
	rt.ledger.SettleExpired(now)
	port := rt.ledger.Portfolio()
	startValue := rt.dayStartValue
	anchor := rt.dailyAnchor
	personality := rt.trader.Personality
	endValue := portfolioValue(port)

	var closedToday []domain.Position
	for _, pos := range port.Positions {
		if pos.ClosedAt != nil && !pos.ClosedAt.Before(anchor) {
			closedToday = append(closedToday, *pos)
		}
	}
	rt.mu.Unlock()

	if err := e.store.SavePortfolio(ctx, port); err != nil {
		e.log.WithError(err).Warn("saving portfolio at market close", "trader_id", traderID)
	}

	accuracy, tradesObserved := e.computeSourceAccuracy(ctx, traderID, personality)
	if personality.Learning.Enabled && personality.Learning.UpdateWeights {
		e.applyLearning(ctx, traderID, rt, personality, accuracy, tradesObserved)
	}

	report := reporting.Build(traderID, now, startValue, endValue, closedToday, accuracy)
	if err := e.store.SaveDailyReport(ctx, report); err != nil {
		e.log.WithError(err).Warn("saving daily report", "trader_id", traderID)
	}

	rt.mu.Lock()
	rt.dailyPnL = decimal.Zero
	rt.peakEquity = endValue
	rt.dayStartValue = endValue
	rt.dailyAnchor = now
	rt.mu.Unlock()
}

// computeSourceAccuracy gathers resolved decisions over the trader's
// configured accuracy window and turns them into per-source outcomes
// (spec.md §4.7 step 1). Every verdict that contributed to a resolved
// decision shares that decision's correctness equally — a
// deliberate simplification, since outcome attribution happens at the
// decision level, not per source.
func (e *Engine) computeSourceAccuracy(ctx context.Context, traderID uuid.UUID, personality domain.Personality) (map[domain.SourceName]float64, int) {
	days := personality.Learning.AccuracyWindowDays
	if days <= 0 {
		days = 30
	}
	window := time.Duration(days) * 24 * time.Hour
	now := time.Now()

	decisions, err := e.store.ListDecisions(ctx, traderID, now.Add(-window), 100000)
	if err != nil {
		e.log.WithError(err).Warn("listing decisions for accuracy window", "trader_id", traderID)
		return nil, 0
	}

	var outcomes []learning.Outcome
	tradesObserved := 0
	for _, d := range decisions {
		if d.WasCorrect == nil {
			continue
		}
		tradesObserved++
		for _, v := range d.Reasoning.Verdicts {
			outcomes = append(outcomes, learning.Outcome{
				Source:    v.Source,
				Correct:   *d.WasCorrect,
				Timestamp: d.Timestamp,
			})
		}
	}
	return learning.Accuracy(outcomes, window, now), tradesObserved
}

// applyLearning nudges the trader's live signal weights toward their
// accuracy-derived targets and records the adjustment (spec.md §4.7
// steps 2-6).
func (e *Engine) applyLearning(ctx context.Context, traderID uuid.UUID, rt *traderRuntime, personality domain.Personality, accuracy map[domain.SourceName]float64, tradesObserved int) {
	rt.mu.Lock()
	current := rt.agg.Weights()
	rt.mu.Unlock()

	maxChange := personality.Learning.MaxWeightChange
	if maxChange <= 0 {
		maxChange = 0.05
	}

	adj := learning.Adjust(current, accuracy, tradesObserved, personality.Learning.MinTradesBeforeAdjust, maxChange)
	if !adj.Applied {
		return
	}

	rt.mu.Lock()
	rt.agg.SetWeights(adj.NewWeights)
	rt.mu.Unlock()

	wh := &domain.WeightHistory{
		ID:         uuid.New(),
		TraderID:   traderID,
		Timestamp:  time.Now(),
		OldWeights: current,
		NewWeights: adj.NewWeights,
		Reason:     adj.Reason,
		Accuracy:   accuracy,
	}
	if err := e.store.SaveWeightHistory(ctx, wh); err != nil {
		e.log.WithError(err).Warn("saving weight history", "trader_id", traderID)
	}
}

// TriggerLearning runs one adaptive-learning pass for a single running
// trader on demand, independent of the daily market-close schedule
// (spec.md §10.3: "trigger manual adaptive learning").
func (e *Engine) TriggerLearning(ctx context.Context, traderID uuid.UUID) error {
	e.mu.RLock()
	rt, ok := e.runtimes[traderID]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("scheduler: trader %s is not running", traderID)
	}

	rt.mu.Lock()
	personality := rt.trader.Personality
	rt.mu.Unlock()

	accuracy, tradesObserved := e.computeSourceAccuracy(ctx, traderID, personality)
	e.applyLearning(ctx, traderID, rt, personality, accuracy, tradesObserved)
	return nil
}

// runOutcomeBackfill polls cfg.OutcomeBackfillEvery for decisions whose
// linked position has since closed but whose outcome is still
// unattributed (spec.md §8 invariant: outcome attribution within one
// hour of close).
func (e *Engine) runOutcomeBackfill(ctx context.Context) {
	interval := e.cfg.OutcomeBackfillEvery
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.backfillOutcomes(ctx, interval)
		}
	}
}

func (e *Engine) backfillOutcomes(ctx context.Context, minAge time.Duration) {
	unresolved, err := e.store.ListUnresolvedDecisions(ctx, minAge)
	if err != nil {
		e.log.WithError(err).Warn("listing unresolved decisions")
		return
	}

	for _, d := range unresolved {
		if d.PositionID == nil {
			continue
		}

		rt, ok := e.snapshotRuntimes()[d.TraderID]
		if !ok {
			continue
		}

		rt.mu.Lock()
		pos, exists := rt.ledger.Portfolio().Positions[*d.PositionID]
		smallLossThreshold := rt.trader.Personality.Learning.SmallLossThreshold
		var closed bool
		var pnl decimal.Decimal
		var entryValue decimal.Decimal
		var holdingDays float64
		if exists && pos.ClosedAt != nil {
			closed = true
			pnl = pos.RealizedPnl
			entryValue = pos.EntryPrice.Mul(pos.Quantity)
			holdingDays = pos.ClosedAt.Sub(pos.OpenedAt).Hours() / 24
		}
		rt.mu.Unlock()

		if !exists || !closed {
			continue
		}

		pnlFloat, _ := pnl.Float64()
		correct := learning.IsCorrect(d.Type, pnlFloat, smallLossThreshold)

		var pnlPct float64
		if !entryValue.IsZero() {
			ratio := pnl.Div(entryValue)
			pnlPct, _ = ratio.Float64()
		}

		update := *d
		update.PnL = &pnl
		update.PnLPct = &pnlPct
		update.HoldingDays = &holdingDays
		update.WasCorrect = &correct

		if err := e.store.UpdateDecisionOutcome(ctx, &update); err != nil {
			e.log.WithError(err).Warn("backfilling decision outcome", "decision_id", d.ID)
		}
	}
}
