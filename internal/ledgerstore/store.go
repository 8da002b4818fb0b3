// Package ledgerstore defines the persistence contract for Traders,
// Portfolios, Decisions and DailyReports (spec.md §6), grounded on the
// teacher's internal/database/repository.go interface shape but
// generalized from its Binance-specific methods to the domain types
// this engine owns.
package ledgerstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// Store is the durable-persistence contract the scheduler and API
// depend on. Implementations must serialize concurrent writes to the
// same portfolio (spec.md §8: "no lost updates").
type Store interface {
	SaveTrader(ctx context.Context, t *domain.Trader) error
	GetTrader(ctx context.Context, id uuid.UUID) (*domain.Trader, error)
	ListTraders(ctx context.Context) ([]*domain.Trader, error)
	DeleteTrader(ctx context.Context, id uuid.UUID) error

	SavePortfolio(ctx context.Context, p *domain.Portfolio) error
	GetPortfolio(ctx context.Context, traderID uuid.UUID) (*domain.Portfolio, error)

	SaveDecision(ctx context.Context, d *domain.Decision) error
	ListDecisions(ctx context.Context, traderID uuid.UUID, since time.Time, limit int) ([]*domain.Decision, error)
	UpdateDecisionOutcome(ctx context.Context, d *domain.Decision) error
	ListUnresolvedDecisions(ctx context.Context, olderThan time.Duration) ([]*domain.Decision, error)

	SaveWeightHistory(ctx context.Context, w *domain.WeightHistory) error
	ListWeightHistory(ctx context.Context, traderID uuid.UUID, limit int) ([]*domain.WeightHistory, error)

	SaveDailyReport(ctx context.Context, r *domain.DailyReport) error
	GetDailyReport(ctx context.Context, traderID uuid.UUID, date time.Time) (*domain.DailyReport, error)
}
