// Package reporting builds the per-trader DailyReport (spec.md §4.6
// step 6), grounded on the teacher's database.TradingMetrics
// aggregation and internal/settlement/pnl_aggregator.go's profit
// factor / largest-win / largest-loss arithmetic, supplemented with
// textual insights the way the teacher's monitoring.go narrates daily
// performance (SPEC_FULL.md §12).
package reporting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paperdesk/trader-engine/internal/domain"
)

// Build aggregates one trading day's closed positions and source
// accuracy into a DailyReport.
func Build(traderID uuid.UUID, date time.Time, startValue, endValue decimal.Decimal, closedToday []domain.Position, accuracy map[domain.SourceName]float64) *domain.DailyReport {
	r := &domain.DailyReport{
		TraderID:       traderID,
		Date:           date,
		StartValue:     startValue,
		EndValue:       endValue,
		PnL:            endValue.Sub(startValue),
		SourceAccuracy: accuracy,
	}

	for _, pos := range closedToday {
		r.TradeCount++
		r.FeesPaid = r.FeesPaid.Add(pos.CumulativeFees)
		if pos.RealizedPnl.IsPositive() {
			r.WinCount++
			if pos.RealizedPnl.GreaterThan(r.BestTrade) {
				r.BestTrade = pos.RealizedPnl
			}
		} else if pos.RealizedPnl.IsNegative() {
			r.LossCount++
			if pos.RealizedPnl.LessThan(r.WorstTrade) {
				r.WorstTrade = pos.RealizedPnl
			}
		}
	}
	if r.TradeCount > 0 {
		r.WinRate = float64(r.WinCount) / float64(r.TradeCount)
	}

	r.Insights = insights(r, accuracy)
	return r
}

// insights renders a handful of human-readable observations about the
// day, in the teacher's terse "one line per notable fact" style.
func insights(r *domain.DailyReport, accuracy map[domain.SourceName]float64) []string {
	var out []string

	if r.TradeCount == 0 {
		out = append(out, "no trades closed today")
		return out
	}

	out = append(out, fmt.Sprintf("%d trades, %d wins / %d losses (%.0f%% win rate)", r.TradeCount, r.WinCount, r.LossCount, r.WinRate*100))

	if r.PnL.IsPositive() {
		out = append(out, fmt.Sprintf("net gain of %s after %s in fees", r.PnL.String(), r.FeesPaid.String()))
	} else if r.PnL.IsNegative() {
		out = append(out, fmt.Sprintf("net loss of %s after %s in fees", r.PnL.Abs().String(), r.FeesPaid.String()))
	}

	var best domain.SourceName
	bestAcc := -1.0
	for src, acc := range accuracy {
		if acc > bestAcc {
			bestAcc = acc
			best = src
		}
	}
	if bestAcc >= 0 {
		out = append(out, fmt.Sprintf("%s was the most accurate source today at %.0f%%", best, bestAcc*100))
	}

	return out
}
