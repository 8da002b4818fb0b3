package ledgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// Postgres is the production Store, grounded on the teacher's
// internal/database/db.go pgxpool setup, replacing its package-level
// *pgxpool.Pool singleton with an injected instance (Design Notes,
// spec.md §9).
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a pgxpool against dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledgerstore: ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) SaveTrader(ctx context.Context, t *domain.Trader) error {
	personality, err := json.Marshal(t.Personality)
	if err != nil {
		return fmt.Errorf("marshal personality: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO traders (id, name, personality, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, personality = EXCLUDED.personality,
			state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		t.ID, t.Name, personality, t.State, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ledgerstore: save trader: %w", err)
	}
	return nil
}

func (p *Postgres) GetTrader(ctx context.Context, id uuid.UUID) (*domain.Trader, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, name, personality, state, created_at, updated_at
		FROM traders WHERE id = $1`, id)

	var t domain.Trader
	var personality []byte
	if err := row.Scan(&t.ID, &t.Name, &personality, &t.State, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("ledgerstore: trader %s: %w", id, err)
		}
		return nil, fmt.Errorf("ledgerstore: get trader: %w", err)
	}
	if err := json.Unmarshal(personality, &t.Personality); err != nil {
		return nil, fmt.Errorf("unmarshal personality: %w", err)
	}
	return &t, nil
}

func (p *Postgres) ListTraders(ctx context.Context) ([]*domain.Trader, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, personality, state, created_at, updated_at FROM traders ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: list traders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Trader
	for rows.Next() {
		var t domain.Trader
		var personality []byte
		if err := rows.Scan(&t.ID, &t.Name, &personality, &t.State, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ledgerstore: scan trader: %w", err)
		}
		if err := json.Unmarshal(personality, &t.Personality); err != nil {
			return nil, fmt.Errorf("unmarshal personality: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteTrader(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM traders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ledgerstore: delete trader: %w", err)
	}
	return nil
}

// SavePortfolio persists the portfolio and its positions/orders inside
// one serializable transaction with a row lock, so concurrent
// mark-to-market and scheduler writes to the same portfolio never lose
// an update (spec.md §8).
func (p *Postgres) SavePortfolio(ctx context.Context, port *domain.Portfolio) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("ledgerstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT id FROM portfolios WHERE id = $1 FOR UPDATE`, port.ID); err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("ledgerstore: lock portfolio: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO portfolios (id, trader_id, cash, initial_capital, broker_profile_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET cash = EXCLUDED.cash`,
		port.ID, port.TraderID, port.Cash.String(), port.InitialCapital.String(), port.BrokerProfileID)
	if err != nil {
		return fmt.Errorf("ledgerstore: upsert portfolio: %w", err)
	}

	for _, pos := range port.Positions {
		if err := upsertPosition(ctx, tx, pos); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func upsertPosition(ctx context.Context, tx pgx.Tx, pos *domain.Position) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO positions (id, portfolio_id, symbol, product, side, quantity, entry_price,
			current_price, leverage, margin_used, stop_loss, take_profit, opened_at, closed_at,
			close_reason, realized_pnl, cumulative_fees)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			current_price = EXCLUDED.current_price, stop_loss = EXCLUDED.stop_loss,
			closed_at = EXCLUDED.closed_at, close_reason = EXCLUDED.close_reason,
			realized_pnl = EXCLUDED.realized_pnl, cumulative_fees = EXCLUDED.cumulative_fees`,
		pos.ID, pos.PortfolioID, pos.Symbol, pos.Product, pos.Side, pos.Quantity.String(),
		pos.EntryPrice.String(), pos.CurrentPrice.String(), pos.Leverage.String(), pos.MarginUsed.String(),
		pos.StopLoss.String(), pos.TakeProfit.String(), pos.OpenedAt, pos.ClosedAt, pos.CloseReason,
		pos.RealizedPnl.String(), pos.CumulativeFees.String())
	if err != nil {
		return fmt.Errorf("ledgerstore: upsert position: %w", err)
	}
	return nil
}

func (p *Postgres) GetPortfolio(ctx context.Context, traderID uuid.UUID) (*domain.Portfolio, error) {
	row := p.pool.QueryRow(ctx, `SELECT id, cash, initial_capital, broker_profile_id FROM portfolios WHERE trader_id = $1`, traderID)

	var port domain.Portfolio
	port.TraderID = traderID
	var cashStr, capStr string
	if err := row.Scan(&port.ID, &cashStr, &capStr, &port.BrokerProfileID); err != nil {
		return nil, fmt.Errorf("ledgerstore: get portfolio: %w", err)
	}
	cash, err := parseDecimal(cashStr)
	if err != nil {
		return nil, err
	}
	cap, err := parseDecimal(capStr)
	if err != nil {
		return nil, err
	}
	port.Cash = cash
	port.InitialCapital = cap
	port.Positions = make(map[uuid.UUID]*domain.Position)
	port.OpenOrders = make(map[uuid.UUID]*domain.Order)
	return &port, nil
}

func (p *Postgres) SaveDecision(ctx context.Context, d *domain.Decision) error {
	reasoning, err := json.Marshal(d.Reasoning)
	if err != nil {
		return fmt.Errorf("marshal reasoning: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO decisions (id, trader_id, timestamp, symbol, type, reasoning, executed, weighted_score, agreement, position_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.TraderID, d.Timestamp, d.Symbol, d.Type, reasoning, d.Executed, d.WeightedScore, d.SignalAgreement, d.PositionID)
	if err != nil {
		return fmt.Errorf("ledgerstore: save decision: %w", err)
	}
	return nil
}

func (p *Postgres) ListDecisions(ctx context.Context, traderID uuid.UUID, since time.Time, limit int) ([]*domain.Decision, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, trader_id, timestamp, symbol, type, weighted_score, agreement, reasoning, was_correct
		FROM decisions WHERE trader_id = $1 AND timestamp >= $2
		ORDER BY timestamp DESC LIMIT $3`, traderID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: list decisions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Decision
	for rows.Next() {
		var d domain.Decision
		var reasoning []byte
		if err := rows.Scan(&d.ID, &d.TraderID, &d.Timestamp, &d.Symbol, &d.Type, &d.WeightedScore, &d.SignalAgreement, &reasoning, &d.WasCorrect); err != nil {
			return nil, fmt.Errorf("ledgerstore: scan decision: %w", err)
		}
		if len(reasoning) > 0 {
			if err := json.Unmarshal(reasoning, &d.Reasoning); err != nil {
				return nil, fmt.Errorf("ledgerstore: unmarshal reasoning: %w", err)
			}
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateDecisionOutcome(ctx context.Context, d *domain.Decision) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE decisions SET pnl = $2, pnl_pct = $3, was_correct = $4, holding_days = $5 WHERE id = $1`,
		d.ID, d.PnL, d.PnLPct, d.WasCorrect, d.HoldingDays)
	if err != nil {
		return fmt.Errorf("ledgerstore: update decision outcome: %w", err)
	}
	return nil
}

func (p *Postgres) ListUnresolvedDecisions(ctx context.Context, olderThan time.Duration) ([]*domain.Decision, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, trader_id, symbol, type, position_id FROM decisions
		WHERE position_id IS NOT NULL AND was_correct IS NULL AND timestamp <= $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: list unresolved decisions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Decision
	for rows.Next() {
		var d domain.Decision
		if err := rows.Scan(&d.ID, &d.TraderID, &d.Symbol, &d.Type, &d.PositionID); err != nil {
			return nil, fmt.Errorf("ledgerstore: scan unresolved decision: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveWeightHistory(ctx context.Context, w *domain.WeightHistory) error {
	old, _ := json.Marshal(w.OldWeights)
	nw, _ := json.Marshal(w.NewWeights)
	acc, _ := json.Marshal(w.Accuracy)
	_, err := p.pool.Exec(ctx, `
		INSERT INTO weight_history (id, trader_id, timestamp, old_weights, new_weights, reason, accuracy)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		w.ID, w.TraderID, w.Timestamp, old, nw, w.Reason, acc)
	if err != nil {
		return fmt.Errorf("ledgerstore: save weight history: %w", err)
	}
	return nil
}

func (p *Postgres) ListWeightHistory(ctx context.Context, traderID uuid.UUID, limit int) ([]*domain.WeightHistory, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, trader_id, timestamp, reason FROM weight_history
		WHERE trader_id = $1 ORDER BY timestamp DESC LIMIT $2`, traderID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: list weight history: %w", err)
	}
	defer rows.Close()

	var out []*domain.WeightHistory
	for rows.Next() {
		var w domain.WeightHistory
		if err := rows.Scan(&w.ID, &w.TraderID, &w.Timestamp, &w.Reason); err != nil {
			return nil, fmt.Errorf("ledgerstore: scan weight history: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveDailyReport(ctx context.Context, r *domain.DailyReport) error {
	insights, _ := json.Marshal(r.Insights)
	_, err := p.pool.Exec(ctx, `
		INSERT INTO daily_reports (trader_id, date, start_value, end_value, pnl, fees_paid, trade_count, win_count, loss_count, insights)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (trader_id, date) DO UPDATE SET
			end_value = EXCLUDED.end_value, pnl = EXCLUDED.pnl, fees_paid = EXCLUDED.fees_paid,
			trade_count = EXCLUDED.trade_count, win_count = EXCLUDED.win_count,
			loss_count = EXCLUDED.loss_count, insights = EXCLUDED.insights`,
		r.TraderID, r.Date, r.StartValue.String(), r.EndValue.String(), r.PnL.String(),
		r.FeesPaid.String(), r.TradeCount, r.WinCount, r.LossCount, insights)
	if err != nil {
		return fmt.Errorf("ledgerstore: save daily report: %w", err)
	}
	return nil
}

func (p *Postgres) GetDailyReport(ctx context.Context, traderID uuid.UUID, date time.Time) (*domain.DailyReport, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT start_value, end_value, pnl, fees_paid, trade_count, win_count, loss_count
		FROM daily_reports WHERE trader_id = $1 AND date = $2`, traderID, date)

	var r domain.DailyReport
	r.TraderID = traderID
	r.Date = date
	var startStr, endStr, pnlStr, feesStr string
	if err := row.Scan(&startStr, &endStr, &pnlStr, &feesStr, &r.TradeCount, &r.WinCount, &r.LossCount); err != nil {
		return nil, fmt.Errorf("ledgerstore: get daily report: %w", err)
	}
	var err error
	if r.StartValue, err = parseDecimal(startStr); err != nil {
		return nil, err
	}
	if r.EndValue, err = parseDecimal(endStr); err != nil {
		return nil, err
	}
	if r.PnL, err = parseDecimal(pnlStr); err != nil {
		return nil, err
	}
	if r.FeesPaid, err = parseDecimal(feesStr); err != nil {
		return nil, err
	}
	return &r, nil
}
