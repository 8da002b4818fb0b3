package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/trader-engine/internal/domain"
)

func candleSeries(n int, start, step float64) []domain.Candle {
	out := make([]domain.Candle, n)
	price := start
	t := time.Now().Add(-time.Duration(n) * time.Hour)
	for i := 0; i < n; i++ {
		out[i] = domain.Candle{OpenTime: t, Open: price, High: price, Low: price, Close: price}
		price += step
		t = t.Add(time.Hour)
	}
	return out
}

func TestTechnicalUnavailableWithTooFewCandles(t *testing.T) {
	tech := NewTechnical()
	_, err := tech.Evaluate(context.Background(), Window{Symbol: "AAPL", Candles: candleSeries(10, 100, 0.1)})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTechnicalBullishOnUptrend(t *testing.T) {
	tech := NewTechnical()
	candles := candleSeries(60, 100, 0.5)
	w := Window{Symbol: "AAPL", CurrentPrice: candles[len(candles)-1].Close + 1, Candles: candles}

	v, err := tech.Evaluate(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTechnical, v.Source)
	assert.GreaterOrEqual(t, v.Score, 0.5)
}

func TestCollectAllSkipsUnavailableSources(t *testing.T) {
	tech := NewTechnical()
	ml := NewML(nil, nil) // no predictor configured -> unavailable

	result := CollectAll(context.Background(), []Source{tech, ml}, Window{
		Symbol:  "AAPL",
		Candles: candleSeries(60, 100, 0.2),
	}, time.Second)

	_, hasTech := result[domain.SourceTechnical]
	_, hasML := result[domain.SourceML]
	assert.True(t, hasTech)
	assert.False(t, hasML)
}
