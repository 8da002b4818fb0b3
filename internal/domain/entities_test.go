package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func closedPosition(pnl float64, closedAt time.Time) Position {
	return Position{
		ID:          uuid.New(),
		ClosedAt:    &closedAt,
		RealizedPnl: decimal.NewFromFloat(pnl),
	}
}

func TestRecomputeCountersStreakAndDrawdown(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	positions := []Position{
		closedPosition(100, t0.Add(1*time.Hour)),
		closedPosition(50, t0.Add(2*time.Hour)),
		closedPosition(-200, t0.Add(3*time.Hour)),
		closedPosition(-10, t0.Add(4*time.Hour)),
	}

	counters := RecomputeCounters(nil, positions)

	assert.Equal(t, 4, counters.Trades)
	assert.Equal(t, 2, counters.Wins)
	assert.Equal(t, 2, counters.Losses)
	assert.Equal(t, -2, counters.CurrentStreak)
	assert.True(t, counters.TotalPnL.Equal(decimal.NewFromFloat(-60)))
	assert.True(t, counters.MaxDrawdown.Equal(decimal.NewFromFloat(210)))
}

func TestRecomputeCountersOrderIndependent(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inOrder := []Position{
		closedPosition(10, t0.Add(1*time.Hour)),
		closedPosition(-5, t0.Add(2*time.Hour)),
	}
	shuffled := []Position{inOrder[1], inOrder[0]}

	a := RecomputeCounters(nil, inOrder)
	b := RecomputeCounters(nil, shuffled)

	assert.Equal(t, a.CurrentStreak, b.CurrentStreak)
	assert.True(t, a.TotalPnL.Equal(b.TotalPnL))
}
