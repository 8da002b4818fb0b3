package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/trader-engine/internal/domain"
)

func TestAccuracyWindowsOutOldOutcomes(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	outcomes := []Outcome{
		{Source: domain.SourceML, Correct: true, Timestamp: now.Add(-24 * time.Hour)},
		{Source: domain.SourceML, Correct: false, Timestamp: now.Add(-24 * time.Hour)},
		{Source: domain.SourceML, Correct: true, Timestamp: now.Add(-40 * 24 * time.Hour)}, // outside window
	}

	acc := Accuracy(outcomes, 30*24*time.Hour, now)
	assert.InDelta(t, 0.5, acc[domain.SourceML], 0.0001)
}

func TestAdjustInsufficientData(t *testing.T) {
	current := map[domain.SourceName]float64{domain.SourceML: 0.25, domain.SourceRL: 0.25, domain.SourceSentiment: 0.25, domain.SourceTechnical: 0.25}
	adj := Adjust(current, map[domain.SourceName]float64{domain.SourceML: 0.8}, 5, 20, 0.05)
	assert.False(t, adj.Applied)
	assert.Equal(t, "insufficient_data", adj.Reason)
}

func TestAdjustNudgesBoundedAndRenormalizes(t *testing.T) {
	current := map[domain.SourceName]float64{domain.SourceML: 0.25, domain.SourceRL: 0.25, domain.SourceSentiment: 0.25, domain.SourceTechnical: 0.25}
	accuracy := map[domain.SourceName]float64{
		domain.SourceML:        0.9,
		domain.SourceRL:        0.1,
		domain.SourceSentiment: 0.5,
		domain.SourceTechnical: 0.5,
	}

	adj := Adjust(current, accuracy, 25, 20, 0.05)
	require.True(t, adj.Applied)

	sum := 0.0
	for src, w := range adj.NewWeights {
		assert.GreaterOrEqual(t, w, 0.05)
		assert.LessOrEqual(t, w, 0.5)
		assert.LessOrEqual(t, w, current[src]+0.05+1e-9)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 0.001)
}

func TestIsCorrectPolicy(t *testing.T) {
	assert.True(t, IsCorrect(domain.DecisionBuy, 10, -100))
	assert.False(t, IsCorrect(domain.DecisionBuy, -10, -100))
	assert.True(t, IsCorrect(domain.DecisionSell, -50, -100))
	assert.False(t, IsCorrect(domain.DecisionSell, -150, -100))
	assert.True(t, IsCorrect(domain.DecisionHold, -1000, -100))
}
