package ledgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/trader-engine/internal/domain"
)

func TestMemstoreTraderRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemstore()

	trader := &domain.Trader{
		ID:          uuid.New(),
		Name:        "test-trader",
		Personality: domain.DefaultPersonality(),
		State:       domain.TraderStopped,
		CreatedAt:   time.Now(),
	}

	require.NoError(t, store.SaveTrader(ctx, trader))

	got, err := store.GetTrader(ctx, trader.ID)
	require.NoError(t, err)
	assert.Equal(t, trader.Name, got.Name)

	list, err := store.ListTraders(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeleteTrader(ctx, trader.ID))
	_, err = store.GetTrader(ctx, trader.ID)
	assert.Error(t, err)
}

func TestMemstoreDecisionHistoryOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemstore()
	traderID := uuid.New()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		d := &domain.Decision{
			ID:        uuid.New(),
			TraderID:  traderID,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Symbol:    "AAPL",
			Type:      domain.DecisionHold,
		}
		require.NoError(t, store.SaveDecision(ctx, d))
	}

	list, err := store.ListDecisions(ctx, traderID, base.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].Timestamp.After(list[1].Timestamp))
}

func TestMemstoreDailyReportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemstore()
	traderID := uuid.New()
	date := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	report := &domain.DailyReport{
		TraderID:   traderID,
		Date:       date,
		StartValue: decimal.NewFromInt(10000),
		EndValue:   decimal.NewFromInt(10500),
		PnL:        decimal.NewFromInt(500),
	}
	require.NoError(t, store.SaveDailyReport(ctx, report))

	got, err := store.GetDailyReport(ctx, traderID, date)
	require.NoError(t, err)
	assert.True(t, got.PnL.Equal(decimal.NewFromInt(500)))
}
