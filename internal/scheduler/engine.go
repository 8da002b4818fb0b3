// Package scheduler implements the TraderScheduler / Engine (spec.md
// §4.6): the per-trader cooperative worker loop that ties every other
// module together. Grounded on the teacher's internal/bot/bot.go
// run-loop shape, reworked from its single-bot-per-process model into
// an Engine value owning N concurrent trader workers via
// golang.org/x/sync/errgroup (Design Notes, spec.md §9: explicit
// Engine value, not ad-hoc global module state).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/paperdesk/trader-engine/internal/aggregator"
	"github.com/paperdesk/trader-engine/internal/domain"
	"github.com/paperdesk/trader-engine/internal/eventbus"
	"github.com/paperdesk/trader-engine/internal/ledger"
	"github.com/paperdesk/trader-engine/internal/ledgerstore"
	"github.com/paperdesk/trader-engine/internal/logging"
	"github.com/paperdesk/trader-engine/internal/risk"
	"github.com/paperdesk/trader-engine/internal/signal"
)

// Config carries the engine-wide tunables from spec.md §6.
type Config struct {
	TickTimeout          time.Duration
	SourceTimeout        time.Duration
	PriceTimeout         time.Duration
	OutcomeBackfillEvery time.Duration
	CandleLookback       int

	// MarketCloseJobAt and OvernightFeesAt are "HH:MM" or
	// "HH:MM Zone" clock strings (spec.md §6: engine.market_close_job_at,
	// engine.overnight_fees_at) naming the once-daily wall-clock time
	// the market-close job (settlement, learning, daily report) and the
	// overnight-financing job fire, evaluated in UTC when no zone
	// suffix is given.
	MarketCloseJobAt string
	OvernightFeesAt  string
}

// Engine owns every running Trader worker. It is constructed once per
// process and is safe for concurrent use.
type Engine struct {
	cfg       Config
	store     ledgerstore.Store
	bus       *eventbus.Bus
	sources   []signal.Source
	feed      PriceFeed
	log       *logging.Logger

	mu       sync.RWMutex
	runtimes map[uuid.UUID]*traderRuntime

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// traderRuntime is the live state one running Trader needs beyond its
// persisted domain.Trader: its own Ledger (holding the live Portfolio),
// RiskGate (carrying circuit-breaker state) and Aggregator (carrying
// its current weights). Constructed on start, torn down on stop.
type traderRuntime struct {
	mu       sync.Mutex
	trader   *domain.Trader
	ledger   *ledger.Ledger
	gate     *risk.Gate
	agg      *aggregator.Aggregator
	calendar domain.TradingCalendar
	paused   bool
	cancel   context.CancelFunc

	// Day-scoped risk-gate inputs, reset once per trading day by
	// runMarketClose rather than recomputed per tick (spec.md §4.3
	// checks 5/6: daily loss limit, max drawdown).
	dailyPnL      decimal.Decimal
	peakEquity    decimal.Decimal
	dayStartValue decimal.Decimal
	dailyAnchor   time.Time
}

func New(cfg Config, store ledgerstore.Store, bus *eventbus.Bus, sources []signal.Source, feed PriceFeed, log *logging.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		bus:      bus,
		sources:  sources,
		feed:     feed,
		log:      log,
		runtimes: make(map[uuid.UUID]*traderRuntime),
	}
}

// Start loads every persisted Trader and launches one worker goroutine
// per running trader (spec.md §4.6). Stop cancels every worker
// cooperatively — in-flight per-symbol evaluations are allowed to
// finish (Design Notes, spec.md §9: no implicit await chains, explicit
// cooperative cancellation).
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(e.ctx)
	e.group = g

	traders, err := e.store.ListTraders(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: list traders: %w", err)
	}

	for _, t := range traders {
		if t.State != domain.TraderRunning && t.State != domain.TraderPaused {
			continue
		}
		if err := e.startTrader(gctx, t); err != nil {
			e.log.WithError(err).Warn("skipping trader at startup", "trader_id", t.ID)
		}
	}

	e.group.Go(func() error {
		e.runDailyJobs(gctx)
		return nil
	})
	e.group.Go(func() error {
		e.runOutcomeBackfill(gctx)
		return nil
	})
	return nil
}

// Stop cancels every trader worker and waits for in-flight symbol
// evaluations to finish.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	if e.group != nil {
		return e.group.Wait()
	}
	return nil
}

// StartTrader adds a single trader to the running set, used by the API
// when a trader transitions to running (spec.md §4.6: start(trader)).
func (e *Engine) StartTrader(ctx context.Context, t *domain.Trader) error {
	if err := t.Personality.Validate(); err != nil {
		return fmt.Errorf("scheduler: invalid personality: %w", err)
	}
	return e.startTrader(e.ctx, t)
}

func (e *Engine) startTrader(ctx context.Context, t *domain.Trader) error {
	calendar, err := t.Personality.Schedule.BuildCalendar()
	if err != nil {
		return fmt.Errorf("scheduler: build calendar: %w", err)
	}

	port, err := e.store.GetPortfolio(ctx, t.ID)
	if err != nil {
		port = domain.NewPortfolio(t.ID, decimalFromFloat(t.Personality.Capital.InitialBudget), "default")
	}

	startValue := portfolioValue(port)
	rt := &traderRuntime{
		trader:        t,
		ledger:        ledger.New(port, ledger.DefaultFeeModel()),
		gate:          risk.New(t.Personality.Risk.LossCooldownTrades, t.Personality.Risk.CooldownMinutes),
		agg:           aggregator.New(t.Personality.Signals.Weights),
		calendar:      calendar,
		paused:        t.State == domain.TraderPaused,
		dailyPnL:      decimal.Zero,
		peakEquity:    startValue,
		dayStartValue: startValue,
		dailyAnchor:   time.Now(),
	}

	workerCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel

	e.mu.Lock()
	e.runtimes[t.ID] = rt
	e.mu.Unlock()

	e.group.Go(func() error {
		e.runWorker(workerCtx, rt)
		return nil
	})
	return nil
}

// StopTrader cancels one trader's worker without affecting the rest of
// the fleet.
func (e *Engine) StopTrader(traderID uuid.UUID) {
	e.mu.Lock()
	rt, ok := e.runtimes[traderID]
	if ok {
		delete(e.runtimes, traderID)
	}
	e.mu.Unlock()
	if ok {
		rt.cancel()
	}
}

// PauseTrader suppresses new position openings for one trader while
// leaving mark-to-market and outcome backfill running (spec.md §4.6
// paused state).
func (e *Engine) PauseTrader(traderID uuid.UUID) {
	e.withRuntime(traderID, func(rt *traderRuntime) { rt.paused = true })
}

// ResumeTrader clears a trader's paused flag.
func (e *Engine) ResumeTrader(traderID uuid.UUID) {
	e.withRuntime(traderID, func(rt *traderRuntime) { rt.paused = false })
}

// PauseAll and ResumeAll are the instance-level controls supplemented
// from the teacher's internal/autopilot/instance_control.go (SPEC_FULL.md §12).
func (e *Engine) PauseAll() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, rt := range e.runtimes {
		rt.mu.Lock()
		rt.paused = true
		rt.mu.Unlock()
	}
}

func (e *Engine) ResumeAll() {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, rt := range e.runtimes {
		rt.mu.Lock()
		rt.paused = false
		rt.mu.Unlock()
	}
}

func (e *Engine) withRuntime(traderID uuid.UUID, fn func(*traderRuntime)) {
	e.mu.RLock()
	rt, ok := e.runtimes[traderID]
	e.mu.RUnlock()
	if !ok {
		return
	}
	rt.mu.Lock()
	fn(rt)
	rt.mu.Unlock()
}
