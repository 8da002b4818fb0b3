package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/trader-engine/internal/domain"
)

func TestSizeFixedFloorsStockQuantity(t *testing.T) {
	p := domain.DefaultPersonality()
	p.Trading.PositionSizing = "fixed"
	p.Capital.MaxPositionPercent = 0.1

	in := Input{
		Personality:    p,
		Product:        domain.ProductStock,
		Price:          decimal.NewFromFloat(33.33),
		InitialBudget:  decimal.NewFromInt(10000),
		PortfolioValue: decimal.NewFromInt(10000),
		Cash:           decimal.NewFromInt(10000),
		Confidence:     0.8,
	}

	res := Size(in, domain.SideLong)
	require.False(t, res.TooSmall)
	assert.True(t, res.Quantity.Equal(decimal.NewFromInt(30))) // 1000/33.33 floored
}

func TestSizeTooSmallWhenCashExhausted(t *testing.T) {
	p := domain.DefaultPersonality()
	in := Input{
		Personality:    p,
		Product:        domain.ProductStock,
		Price:          decimal.NewFromFloat(100),
		InitialBudget:  decimal.NewFromInt(10000),
		PortfolioValue: decimal.NewFromInt(10000),
		Cash:           decimal.Zero,
		Confidence:     0.8,
	}
	res := Size(in, domain.SideLong)
	assert.True(t, res.TooSmall)
}

func TestStopTakeLevelsForShort(t *testing.T) {
	p := domain.DefaultPersonality()
	p.Risk.StopLossPct = 0.05
	p.Risk.TakeProfitPct = 0.1
	in := Input{
		Personality:    p,
		Product:        domain.ProductCFD,
		Price:          decimal.NewFromFloat(100),
		InitialBudget:  decimal.NewFromInt(10000),
		PortfolioValue: decimal.NewFromInt(10000),
		Cash:           decimal.NewFromInt(10000),
		Confidence:     0.8,
	}
	res := Size(in, domain.SideShort)
	require.False(t, res.TooSmall)
	assert.True(t, res.StopLoss.Equal(decimal.NewFromFloat(105)))
	assert.True(t, res.TakeProfit.Equal(decimal.NewFromFloat(90)))
}
