package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/trader-engine/internal/domain"
)

func baseInput() Input {
	p := domain.DefaultPersonality()
	cal, _ := p.Schedule.BuildCalendar()
	return Input{
		Proposed:         domain.DecisionBuy,
		Confidence:       0.9,
		Agreement:        domain.AgreementFull,
		Now:              time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC), // a Monday, inside hours
		Calendar:         cal,
		ScheduleEnabled:  true,
		Personality:      p,
		InitialBudget:    decimal.NewFromInt(100000),
		Cash:             decimal.NewFromInt(100000),
		PortfolioValue:   decimal.NewFromInt(100000),
		ProposedNotional: decimal.NewFromInt(1000),
		PeakEquity:       decimal.NewFromInt(100000),
		CurrentEquity:    decimal.NewFromInt(100000),
	}
}

func TestGatePassesHealthyInput(t *testing.T) {
	g := New(3, 30)
	v := g.Evaluate(baseInput())
	require.True(t, v.Passed)
}

func TestGateRejectsLowConfidence(t *testing.T) {
	g := New(3, 30)
	in := baseInput()
	in.Confidence = 0.1
	v := g.Evaluate(in)
	require.False(t, v.Passed)
	assert.Equal(t, "confidence_floor", v.RejectedBy)
}

func TestGateRejectsOutsideTradingHours(t *testing.T) {
	g := New(3, 30)
	in := baseInput()
	in.Now = time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC) // a Sunday
	v := g.Evaluate(in)
	require.False(t, v.Passed)
	assert.Equal(t, "trading_hours", v.RejectedBy)
}

func TestGateRejectsPositionCount(t *testing.T) {
	g := New(3, 30)
	in := baseInput()
	in.OpenPositions = in.Personality.Trading.MaxOpenPositions
	v := g.Evaluate(in)
	require.False(t, v.Passed)
	assert.Equal(t, "position_count", v.RejectedBy)
}

func TestGateLossCooldownTrips(t *testing.T) {
	g := New(2, 30)
	in := baseInput()

	v := g.Evaluate(in)
	require.True(t, v.Passed)

	g.RecordLoss()
	g.RecordLoss()

	v = g.Evaluate(in)
	require.False(t, v.Passed)
	assert.Equal(t, "loss_cooldown", v.RejectedBy)
}

func TestGatePassesHoldWithoutEvaluatingStages(t *testing.T) {
	g := New(3, 30)
	in := baseInput()
	in.Confidence = 0 // would fail confidence_floor if evaluated
	in.Proposed = domain.DecisionHold
	v := g.Evaluate(in)
	assert.True(t, v.Passed)
}
