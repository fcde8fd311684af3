// Package performance implements the Performance Analyzer: it turns a
// TradeLog + EquityCurve + initial capital into the full PerformanceReport
// metrics bundle, matching FIFO RoundTrips out of a raw buy/sell trade log
// rather than assuming each Trade already carries a realized NetProfit.
package performance

import (
	"math"
	"time"

	"github.com/strikefinance/backtest-engine/pkg/types"
)

const riskFreeRate = 0.02 / 252

// sentinel is returned for profit_factor/risk_reward_ratio when there are
// wins and no losses, to avoid a division by zero.
const sentinel = 999

// Analyze computes the full PerformanceReport from a trade log and equity
// curve. Empty input yields a fully zero-valued report, never an error.
func Analyze(trades []types.Trade, equityCurve []types.EquityPoint, initialCapital float64) types.PerformanceReport {
	roundTrips := matchRoundTrips(trades)

	report := types.PerformanceReport{
		RoundTrips:  roundTrips,
		EquityCurve: equityCurve,
	}
	if len(roundTrips) == 0 && len(equityCurve) == 0 {
		return report
	}

	report.TotalTrades = len(roundTrips)
	report.WinningTrades = countWinners(roundTrips)
	report.LosingTrades = report.TotalTrades - report.WinningTrades
	report.HitRate = hitRate(report.WinningTrades, report.TotalTrades)

	grossProfit, grossLoss := grossProfitLoss(roundTrips)
	report.TotalPL = grossProfit - grossLoss
	if initialCapital > 0 {
		report.TotalPLPercent = report.TotalPL / initialCapital * 100
	}
	report.AvgPLPerTrade = avgPLPerTrade(roundTrips)
	report.AvgWin = avgWin(roundTrips)
	report.AvgLoss = avgLoss(roundTrips)
	report.LargestWin = largestWin(roundTrips)
	report.LargestLoss = largestLoss(roundTrips)

	report.ProfitFactor = ratioWithSentinel(grossProfit, grossLoss)
	report.RiskRewardRatio = ratioWithSentinel(report.AvgWin, report.AvgLoss)

	report.MaxDrawdown, report.MaxDrawdownPct = maxDrawdown(equityCurve, initialCapital)
	totalReturnPct := report.TotalPLPercent
	if report.MaxDrawdown > 0 {
		report.RecoveryFactor = report.TotalPL / report.MaxDrawdown
	}

	returns := barReturns(equityCurve)
	report.SharpeRatio = sharpeRatio(returns)
	report.SortinoRatio = sortinoRatio(returns)
	if report.MaxDrawdownPct > 0 {
		report.CalmarRatio = totalReturnPct / report.MaxDrawdownPct
	}

	report.AvgHoldMinutes, report.MinHoldMinutes, report.MaxHoldMinutes = holdStats(roundTrips)
	report.MaxConsecutiveWins, report.MaxConsecutiveLosses = consecutiveStreaks(roundTrips)
	report.MonthlyReturns = monthlyReturns(equityCurve)
	report.DailyReturns = returns

	return report
}

func countWinners(rts []types.RoundTrip) int {
	count := 0
	for _, rt := range rts {
		if rt.Winning() {
			count++
		}
	}
	return count
}

func hitRate(winners, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(winners) / float64(total) * 100
}

func grossProfitLoss(rts []types.RoundTrip) (profit, loss float64) {
	for _, rt := range rts {
		pnl := rt.PnL()
		if pnl > 0 {
			profit += pnl
		} else {
			loss += math.Abs(pnl)
		}
	}
	return profit, loss
}

func avgPLPerTrade(rts []types.RoundTrip) float64 {
	if len(rts) == 0 {
		return 0
	}
	total := 0.0
	for _, rt := range rts {
		total += rt.PnL()
	}
	return total / float64(len(rts))
}

func avgWin(rts []types.RoundTrip) float64 {
	total, count := 0.0, 0
	for _, rt := range rts {
		if pnl := rt.PnL(); pnl > 0 {
			total += pnl
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func avgLoss(rts []types.RoundTrip) float64 {
	total, count := 0.0, 0
	for _, rt := range rts {
		if pnl := rt.PnL(); pnl < 0 {
			total += math.Abs(pnl)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func largestWin(rts []types.RoundTrip) float64 {
	best := 0.0
	for _, rt := range rts {
		if pnl := rt.PnL(); pnl > best {
			best = pnl
		}
	}
	return best
}

func largestLoss(rts []types.RoundTrip) float64 {
	worst := 0.0
	for _, rt := range rts {
		if pnl := rt.PnL(); pnl < worst {
			worst = pnl
		}
	}
	return math.Abs(worst)
}

// ratioWithSentinel implements profit_factor / risk_reward_ratio's shared
// division rule: wins with no losses reports the sentinel; both zero
// reports zero.
func ratioWithSentinel(numerator, denominator float64) float64 {
	if denominator == 0 {
		if numerator > 0 {
			return sentinel
		}
		return 0
	}
	return numerator / denominator
}

// maxDrawdown walks the equity curve against a running high-water mark,
// returning both the dollar and percent figures.
func maxDrawdown(curve []types.EquityPoint, initialCapital float64) (dollars, percent float64) {
	if len(curve) == 0 {
		return 0, 0
	}
	hwm := initialCapital
	if hwm == 0 {
		hwm = curve[0].PortfolioValue
	}
	maxDD, maxDDPct := 0.0, 0.0
	for _, point := range curve {
		if point.PortfolioValue > hwm {
			hwm = point.PortfolioValue
		}
		dd := hwm - point.PortfolioValue
		if dd > maxDD {
			maxDD = dd
		}
		if hwm > 0 {
			ddPct := dd / hwm * 100
			if ddPct > maxDDPct {
				maxDDPct = ddPct
			}
		}
	}
	return maxDD, maxDDPct
}

// barReturns computes the per-bar return series r_i = (v_i - v_{i-1}) / v_{i-1}.
func barReturns(curve []types.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].PortfolioValue
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (curve[i].PortfolioValue-prev)/prev)
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - m
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// sharpeRatio computes (mean(r) - rf) / stddev(r) over the per-bar return
// series, unannualized. It uses a daily risk-free rate regardless of the
// bar interval, a convention that biases intra-day results (flagged, not
// silently fixed).
func sharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	m := mean(returns)
	sd := stddev(returns, m)
	if sd == 0 {
		return 0
	}
	return (m - riskFreeRate) / sd
}

func sortinoRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	m := mean(returns)

	sumSq := 0.0
	count := 0
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
			count++
		}
	}
	if count == 0 {
		if m > 0 {
			return sentinel
		}
		return 0
	}
	downsideDev := math.Sqrt(sumSq / float64(count))
	if downsideDev == 0 {
		return 0
	}
	return (m - riskFreeRate) / downsideDev
}

func holdStats(rts []types.RoundTrip) (avgMin, minMin, maxMin float64) {
	if len(rts) == 0 {
		return 0, 0, 0
	}
	total := 0.0
	minMin = rts[0].HoldDuration().Minutes()
	maxMin = minMin
	for _, rt := range rts {
		d := rt.HoldDuration().Minutes()
		total += d
		if d < minMin {
			minMin = d
		}
		if d > maxMin {
			maxMin = d
		}
	}
	return total / float64(len(rts)), minMin, maxMin
}

func consecutiveStreaks(rts []types.RoundTrip) (maxWins, maxLosses int) {
	curWin, curLoss := 0, 0
	for _, rt := range rts {
		if rt.Winning() {
			curWin++
			curLoss = 0
		} else {
			curLoss++
			curWin = 0
		}
		if curWin > maxWins {
			maxWins = curWin
		}
		if curLoss > maxLosses {
			maxLosses = curLoss
		}
	}
	return maxWins, maxLosses
}

// monthlyReturns computes (end-start)/start*100 per calendar month spanned
// by the equity curve.
func monthlyReturns(curve []types.EquityPoint) []types.PeriodReturn {
	if len(curve) == 0 {
		return nil
	}

	type monthKey struct {
		year  int
		month time.Month
	}
	firstOf := make(map[monthKey]float64)
	lastOf := make(map[monthKey]float64)
	var order []monthKey

	for _, point := range curve {
		key := monthKey{point.Timestamp.Year(), point.Timestamp.Month()}
		if _, seen := firstOf[key]; !seen {
			firstOf[key] = point.PortfolioValue
			order = append(order, key)
		}
		lastOf[key] = point.PortfolioValue
	}

	returns := make([]types.PeriodReturn, 0, len(order))
	for _, key := range order {
		start := firstOf[key]
		end := lastOf[key]
		pct := 0.0
		if start != 0 {
			pct = (end - start) / start * 100
		}
		returns = append(returns, types.PeriodReturn{
			Year: key.year, Month: key.month, Start: start, End: end, Percent: pct,
		})
	}
	return returns
}
