package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonalityValidate(t *testing.T) {
	p := DefaultPersonality()
	require.NoError(t, p.Validate())

	bad := p
	bad.Signals.Weights = map[SourceName]float64{SourceML: 0.9}
	assert.Error(t, bad.Validate())

	bad2 := p
	bad2.Capital.InitialBudget = 0
	assert.Error(t, bad2.Validate())

	bad3 := p
	bad3.Schedule.TradingStart = "9:30"
	assert.Error(t, bad3.Validate())
}

func TestTradingCalendarInWindow(t *testing.T) {
	p := DefaultPersonality()
	cal, err := p.Schedule.BuildCalendar()
	require.NoError(t, err)

	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)

	monNoon := time.Date(2026, 8, 3, 12, 0, 0, 0, loc) // a Monday
	assert.True(t, cal.InWindow(monNoon))

	sunNoon := time.Date(2026, 8, 2, 12, 0, 0, 0, loc) // a Sunday
	assert.False(t, cal.InWindow(sunNoon))

	beforeOpen := time.Date(2026, 8, 3, 9, 31, 0, 0, loc) // inside avoid_open_min
	assert.False(t, cal.InWindow(beforeOpen))
}
