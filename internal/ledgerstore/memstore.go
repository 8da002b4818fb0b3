package ledgerstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// Memstore is an in-process Store used by tests and by cmd/engine's
// local/dev mode, grounded on the teacher's in-memory test doubles
// pattern for internal/database.Repository.
type Memstore struct {
	mu        sync.Mutex
	traders   map[uuid.UUID]*domain.Trader
	portfolios map[uuid.UUID]*domain.Portfolio // keyed by traderID
	decisions []*domain.Decision
	weights   []*domain.WeightHistory
	reports   map[string]*domain.DailyReport // key: traderID+date
}

func NewMemstore() *Memstore {
	return &Memstore{
		traders:    make(map[uuid.UUID]*domain.Trader),
		portfolios: make(map[uuid.UUID]*domain.Portfolio),
		reports:    make(map[string]*domain.DailyReport),
	}
}

func (m *Memstore) SaveTrader(ctx context.Context, t *domain.Trader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.traders[t.ID] = &cp
	return nil
}

func (m *Memstore) GetTrader(ctx context.Context, id uuid.UUID) (*domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.traders[id]
	if !ok {
		return nil, fmt.Errorf("ledgerstore: trader %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (m *Memstore) ListTraders(ctx context.Context) ([]*domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Trader, 0, len(m.traders))
	for _, t := range m.traders {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memstore) DeleteTrader(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.traders, id)
	delete(m.portfolios, id)
	return nil
}

func (m *Memstore) SavePortfolio(ctx context.Context, p *domain.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolios[p.TraderID] = p
	return nil
}

func (m *Memstore) GetPortfolio(ctx context.Context, traderID uuid.UUID) (*domain.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.portfolios[traderID]
	if !ok {
		return nil, fmt.Errorf("ledgerstore: portfolio for trader %s not found", traderID)
	}
	return p, nil
}

func (m *Memstore) SaveDecision(ctx context.Context, d *domain.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.decisions = append(m.decisions, &cp)
	return nil
}

func (m *Memstore) ListDecisions(ctx context.Context, traderID uuid.UUID, since time.Time, limit int) ([]*domain.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Decision
	for i := len(m.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		d := m.decisions[i]
		if d.TraderID == traderID && !d.Timestamp.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memstore) UpdateDecisionOutcome(ctx context.Context, d *domain.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.decisions {
		if existing.ID == d.ID {
			existing.PnL = d.PnL
			existing.PnLPct = d.PnLPct
			existing.WasCorrect = d.WasCorrect
			existing.HoldingDays = d.HoldingDays
			return nil
		}
	}
	return fmt.Errorf("ledgerstore: decision %s not found", d.ID)
}

func (m *Memstore) ListUnresolvedDecisions(ctx context.Context, olderThan time.Duration) ([]*domain.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []*domain.Decision
	for _, d := range m.decisions {
		if d.PositionID != nil && d.WasCorrect == nil && !d.Timestamp.After(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memstore) SaveWeightHistory(ctx context.Context, w *domain.WeightHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.weights = append(m.weights, &cp)
	return nil
}

func (m *Memstore) ListWeightHistory(ctx context.Context, traderID uuid.UUID, limit int) ([]*domain.WeightHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.WeightHistory
	for i := len(m.weights) - 1; i >= 0 && len(out) < limit; i-- {
		if m.weights[i].TraderID == traderID {
			out = append(out, m.weights[i])
		}
	}
	return out, nil
}

func (m *Memstore) SaveDailyReport(ctx context.Context, r *domain.DailyReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.reports[reportKey(r.TraderID, r.Date)] = &cp
	return nil
}

func (m *Memstore) GetDailyReport(ctx context.Context, traderID uuid.UUID, date time.Time) (*domain.DailyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[reportKey(traderID, date)]
	if !ok {
		return nil, fmt.Errorf("ledgerstore: report for %s on %s not found", traderID, date.Format("2006-01-02"))
	}
	return r, nil
}

func reportKey(traderID uuid.UUID, date time.Time) string {
	return traderID.String() + "|" + date.Format("2006-01-02")
}
