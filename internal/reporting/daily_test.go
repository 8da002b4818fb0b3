package reporting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/paperdesk/trader-engine/internal/domain"
)

func TestBuildComputesWinRateAndInsights(t *testing.T) {
	now := time.Now()
	traderID := uuid.New()

	closeTime := now
	positions := []domain.Position{
		{RealizedPnl: decimal.NewFromInt(100), CumulativeFees: decimal.NewFromInt(1), ClosedAt: &closeTime},
		{RealizedPnl: decimal.NewFromInt(-40), CumulativeFees: decimal.NewFromInt(1), ClosedAt: &closeTime},
	}
	accuracy := map[domain.SourceName]float64{domain.SourceTechnical: 0.7, domain.SourceML: 0.4}

	report := Build(traderID, now, decimal.NewFromInt(10000), decimal.NewFromInt(10060), positions, accuracy)

	assert.Equal(t, 2, report.TradeCount)
	assert.Equal(t, 1, report.WinCount)
	assert.Equal(t, 1, report.LossCount)
	assert.InDelta(t, 0.5, report.WinRate, 0.0001)
	assert.NotEmpty(t, report.Insights)
}

func TestBuildNoTrades(t *testing.T) {
	report := Build(uuid.New(), time.Now(), decimal.NewFromInt(10000), decimal.NewFromInt(10000), nil, nil)
	assert.Equal(t, 0, report.TradeCount)
	assert.Equal(t, []string{"no trades closed today"}, report.Insights)
}
