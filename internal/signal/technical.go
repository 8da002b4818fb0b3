package signal

import (
	"context"
	"fmt"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// Technical computes a verdict directly from candle history using EMA
// crossover, RSI and MACD — grounded on the teacher's
// collectTechnicalSignal and internal/strategy/indicators.go, scaled
// down to the [0,1] score/confidence contract SignalSource requires
// instead of a bespoke bullish/bearish point tally.
type Technical struct {
	minCandles int
}

func NewTechnical() *Technical { return &Technical{minCandles: 50} }

func (t *Technical) Name() domain.SourceName { return domain.SourceTechnical }

func (t *Technical) Available() bool { return true }

func (t *Technical) Evaluate(ctx context.Context, w Window) (domain.Verdict, error) {
	if len(w.Candles) < t.minCandles {
		return domain.Verdict{}, ErrUnavailable
	}

	ema20 := ema(w.Candles, 20)
	ema50 := ema(w.Candles, 50)
	rsi := rsi(w.Candles, 14)
	macd, sig, hist := macd(w.Candles, 12, 26, 9)

	bullish, bearish := 0, 0
	var reasons []string

	switch {
	case w.CurrentPrice > ema20 && ema20 > ema50:
		bullish += 2
		reasons = append(reasons, "price>EMA20>EMA50")
	case w.CurrentPrice < ema20 && ema20 < ema50:
		bearish += 2
		reasons = append(reasons, "price<EMA20<EMA50")
	case w.CurrentPrice > ema20:
		bullish++
		reasons = append(reasons, "price>EMA20")
	case w.CurrentPrice < ema20:
		bearish++
		reasons = append(reasons, "price<EMA20")
	}

	switch {
	case rsi < 30:
		bullish += 2
		reasons = append(reasons, fmt.Sprintf("RSI oversold %.1f", rsi))
	case rsi > 70:
		bearish += 2
		reasons = append(reasons, fmt.Sprintf("RSI overbought %.1f", rsi))
	case rsi < 45:
		bullish++
	case rsi > 55:
		bearish++
	}

	if hist > 0 && macd > sig {
		bullish++
		reasons = append(reasons, "MACD bullish crossover")
	} else if hist < 0 && macd < sig {
		bearish++
		reasons = append(reasons, "MACD bearish crossover")
	}

	total := bullish + bearish
	score := 0.5
	direction := domain.DirNeutral
	if total > 0 {
		if bullish > bearish {
			score = 0.5 + float64(bullish-bearish)/float64(total+2)*0.5
			direction = domain.DirUp
		} else if bearish > bullish {
			score = 0.5 - float64(bearish-bullish)/float64(total+2)*0.5
			direction = domain.DirDown
		}
	}

	confidence := 0.5 + float64(abs(bullish-bearish))/float64(total+2)*0.5
	if total == 0 {
		confidence = 0.5
	}

	rationale := "technical: neutral"
	if len(reasons) > 0 {
		rationale = "technical: " + reasons[0]
	}

	return domain.Verdict{
		Source:     domain.SourceTechnical,
		Score:      clamp01(score),
		Confidence: clamp01(confidence),
		Direction:  direction,
		Rationale:  rationale,
	}, nil
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sma(candles []domain.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

func ema(candles []domain.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}
	value := sma(candles[:period], period)
	mult := 2.0 / float64(period+1)
	for i := period; i < len(candles); i++ {
		value = candles[i].Close*mult + value*(1-mult)
	}
	return value
}

func rsi(candles []domain.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50.0
	}
	gains, losses := 0.0, 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// macd returns the MACD line, a signal line built as the EMA of the
// MACD series over the trailing window, and their histogram —
// strengthening the teacher's "simplified approximation" comment in
// CalculateMACD into an actual trailing EMA of MACD values.
func macd(candles []domain.Candle, fast, slow, signalPeriod int) (macdLine, signalLine, histogram float64) {
	if len(candles) < slow+signalPeriod {
		return 0, 0, 0
	}
	series := make([]float64, 0, len(candles)-slow+1)
	for end := slow; end <= len(candles); end++ {
		window := candles[:end]
		series = append(series, ema(window, fast)-ema(window, slow))
	}
	macdLine = series[len(series)-1]
	signalLine = emaOfSeries(series, signalPeriod)
	histogram = macdLine - signalLine
	return macdLine, signalLine, histogram
}

func emaOfSeries(series []float64, period int) float64 {
	if len(series) < period {
		period = len(series)
	}
	if period == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += series[i]
	}
	value := sum / float64(period)
	mult := 2.0 / float64(period+1)
	for i := period; i < len(series); i++ {
		value = series[i]*mult + value*(1-mult)
	}
	return value
}
