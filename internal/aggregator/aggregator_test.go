package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdesk/trader-engine/internal/domain"
)

func weights() map[domain.SourceName]float64 {
	return map[domain.SourceName]float64{
		domain.SourceML:        0.25,
		domain.SourceRL:        0.25,
		domain.SourceSentiment: 0.25,
		domain.SourceTechnical: 0.25,
	}
}

func TestFuseFullAgreement(t *testing.T) {
	agg := New(weights())
	verdicts := map[domain.SourceName]domain.Verdict{
		domain.SourceML:        {Source: domain.SourceML, Score: 0.8, Direction: domain.DirUp},
		domain.SourceRL:        {Source: domain.SourceRL, Score: 0.75, Direction: domain.DirUp},
		domain.SourceSentiment: {Source: domain.SourceSentiment, Score: 0.7, Direction: domain.DirUp},
		domain.SourceTechnical: {Source: domain.SourceTechnical, Score: 0.9, Direction: domain.DirUp},
	}

	result := agg.Fuse(verdicts)

	require.False(t, result.InsufficientData)
	assert.Equal(t, domain.AgreementFull, result.Agreement)
	assert.Equal(t, domain.DirUp, result.Direction)
	assert.InDelta(t, 0.7875, result.WeightedScore, 0.001)
}

func TestFuseInsufficientData(t *testing.T) {
	agg := New(weights())
	verdicts := map[domain.SourceName]domain.Verdict{
		domain.SourceML: {Source: domain.SourceML, Score: 0.8, Direction: domain.DirUp},
	}

	result := agg.Fuse(verdicts)

	assert.True(t, result.InsufficientData)
}

func TestFuseRenormalizesOverPresentSources(t *testing.T) {
	agg := New(weights())
	verdicts := map[domain.SourceName]domain.Verdict{
		domain.SourceML:        {Source: domain.SourceML, Score: 1.0, Direction: domain.DirUp},
		domain.SourceRL:        {Source: domain.SourceRL, Score: 1.0, Direction: domain.DirUp},
		domain.SourceSentiment: {Source: domain.SourceSentiment, Score: 1.0, Direction: domain.DirUp},
	}

	result := agg.Fuse(verdicts)

	require.False(t, result.InsufficientData)
	assert.InDelta(t, 1.0, result.WeightedScore, 0.0001)
}

func TestProposeDecisionThresholds(t *testing.T) {
	p := domain.Personality{Trading: domain.TradingConfig{MinConfidence: 0.6}}
	agreed := domain.AgreementFull

	buy := ProposeDecision(Result{WeightedScore: 0.8, Agreement: agreed}, p, false, "", false)
	assert.Equal(t, domain.DecisionBuy, buy)

	hold := ProposeDecision(Result{WeightedScore: 0.5, Agreement: agreed}, p, false, "", false)
	assert.Equal(t, domain.DecisionHold, hold)

	short := ProposeDecision(Result{WeightedScore: 0.2, Agreement: agreed}, p, false, "", true)
	assert.Equal(t, domain.DecisionShort, short)

	noShort := ProposeDecision(Result{WeightedScore: 0.2, Agreement: agreed}, p, false, "", false)
	assert.Equal(t, domain.DecisionHold, noShort)

	closeLong := ProposeDecision(Result{WeightedScore: 0.2, Agreement: agreed}, p, true, domain.SideLong, false)
	assert.Equal(t, domain.DecisionClose, closeLong)

	skip := ProposeDecision(Result{InsufficientData: true}, p, false, "", false)
	assert.Equal(t, domain.DecisionSkip, skip)

	holdOnWeakAgreement := ProposeDecision(Result{WeightedScore: 0.9, Agreement: domain.AgreementMixed}, p, false, "", false)
	assert.Equal(t, domain.DecisionHold, holdOnWeakAgreement)
}
