package signal

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// SentimentAnalyzer is the opaque collaborator behind the Sentiment
// SignalSource: some external news/social feed scorer (spec.md §4.1).
type SentimentAnalyzer interface {
	// Score returns a sentiment score in [-1,1] (negative = bearish) and
	// the number of mentions it was derived from, used as a volume-based
	// confidence proxy.
	Score(ctx context.Context, symbol string) (sentiment float64, mentions int, err error)
}

// Sentiment adapts a SentimentAnalyzer into a Source. Confidence scales
// with mention volume up to a saturation point, mirroring the teacher's
// treatment of low-volume sentiment as unreliable in
// internal/autopilot/signal_aggregator.go.
type Sentiment struct {
	analyzer        SentimentAnalyzer
	limiter          *rate.Limiter
	saturationVolume int
}

func NewSentiment(analyzer SentimentAnalyzer, limiter *rate.Limiter) *Sentiment {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(2), 2)
	}
	return &Sentiment{analyzer: analyzer, limiter: limiter, saturationVolume: 50}
}

func (s *Sentiment) Name() domain.SourceName { return domain.SourceSentiment }

func (s *Sentiment) Available() bool { return s.analyzer != nil }

func (s *Sentiment) Evaluate(ctx context.Context, w Window) (domain.Verdict, error) {
	if s.analyzer == nil {
		return domain.Verdict{}, ErrUnavailable
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.Verdict{}, ErrUnavailable
	}

	sentiment, mentions, err := s.analyzer.Score(ctx, w.Symbol)
	if err != nil {
		return domain.Verdict{}, ErrUnavailable
	}
	if mentions == 0 {
		return domain.Verdict{}, ErrUnavailable
	}

	score := clamp01(0.5 + sentiment*0.5)
	direction := domain.DirNeutral
	switch {
	case sentiment > 0.05:
		direction = domain.DirUp
	case sentiment < -0.05:
		direction = domain.DirDown
	}

	volumeConfidence := float64(mentions) / float64(s.saturationVolume)
	if volumeConfidence > 1 {
		volumeConfidence = 1
	}

	return domain.Verdict{
		Source:     domain.SourceSentiment,
		Score:      score,
		Confidence: clamp01(volumeConfidence),
		Direction:  direction,
		Rationale:  "sentiment: mention-volume weighted",
	}, nil
}
