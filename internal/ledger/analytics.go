package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// OverallStats is the rolling-window performance summary across every
// CLOSED row matched by a query, mirroring trade_analyzer.py's
// TradingStats.
type OverallStats struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     decimal.Decimal // percentage, e.g. 68.0
	TotalPnL    decimal.Decimal
}

// Empty reports whether there were no trades to aggregate, mirroring
// TradingStats.empty().
func (s OverallStats) Empty() bool { return s.TotalTrades == 0 }

// RSIZoneStats is win-rate broken down by side and RSI-at-entry zone.
type RSIZoneStats struct {
	Side        string
	Zone        string
	TotalTrades int
	Wins        int
	WinRate     decimal.Decimal
}

// HourlyStats is win-rate broken down by side and hour-of-day (UTC) of
// entry.
type HourlyStats struct {
	Side        string
	HourOfDay   int
	TotalTrades int
	Wins        int
	WinRate     decimal.Decimal
}

func decFromFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func winRatePct(wins, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(total))).Mul(hundred)
}

// ComputeOverallStats aggregates a set of CLOSED rows into an
// OverallStats. Rows with a nil PnL are ignored (they should not occur
// on a CLOSED row, but a defensive skip avoids a nil-pointer panic on a
// malformed row).
func ComputeOverallStats(rows []TradeLedgerRow) OverallStats {
	var stats OverallStats
	for _, r := range rows {
		if r.PnL == nil {
			continue
		}
		stats.TotalTrades++
		stats.TotalPnL = stats.TotalPnL.Add(*r.PnL)
		if r.IsWin() {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}
	stats.WinRate = winRatePct(stats.Wins, stats.TotalTrades)
	return stats
}

// ComputeRSIZoneStats groups rows by (side, rsi zone) and reports
// win-rate per group, sorted by win-rate descending.
func ComputeRSIZoneStats(rows []TradeLedgerRow) []RSIZoneStats {
	type key struct{ side, zone string }
	grouped := map[key]*RSIZoneStats{}
	for _, r := range rows {
		if r.PnL == nil {
			continue
		}
		k := key{side: r.Side, zone: rsiZone(r.RSIAtEntry)}
		g, ok := grouped[k]
		if !ok {
			g = &RSIZoneStats{Side: r.Side, Zone: k.zone}
			grouped[k] = g
		}
		g.TotalTrades++
		if r.IsWin() {
			g.Wins++
		}
	}

	out := make([]RSIZoneStats, 0, len(grouped))
	for _, g := range grouped {
		g.WinRate = winRatePct(g.Wins, g.TotalTrades)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WinRate.GreaterThan(out[j].WinRate) })
	return out
}

// ComputeHourlyStats groups rows by (side, hour-of-day-UTC-of-entry) and
// reports win-rate per group, sorted by win-rate descending.
func ComputeHourlyStats(rows []TradeLedgerRow) []HourlyStats {
	type key struct {
		side string
		hour int
	}
	grouped := map[key]*HourlyStats{}
	for _, r := range rows {
		if r.PnL == nil {
			continue
		}
		k := key{side: r.Side, hour: r.EntryTime.UTC().Hour()}
		g, ok := grouped[k]
		if !ok {
			g = &HourlyStats{Side: r.Side, HourOfDay: k.hour}
			grouped[k] = g
		}
		g.TotalTrades++
		if r.IsWin() {
			g.Wins++
		}
	}

	out := make([]HourlyStats, 0, len(grouped))
	for _, g := range grouped {
		g.WinRate = winRatePct(g.Wins, g.TotalTrades)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WinRate.GreaterThan(out[j].WinRate) })
	return out
}

// StreakKind is which direction a current streak runs.
type StreakKind string

const (
	StreakNone StreakKind = ""
	StreakWin  StreakKind = "WIN"
	StreakLoss StreakKind = "LOSS"
)

// CurrentStreak walks rows (assumed newest-first) and counts the
// consecutive win or loss run at the head of the list.
func CurrentStreak(rows []TradeLedgerRow) (StreakKind, int) {
	if len(rows) == 0 {
		return StreakNone, 0
	}
	kind := StreakWin
	if !rows[0].IsWin() {
		kind = StreakLoss
	}
	count := 0
	for _, r := range rows {
		if r.PnL == nil {
			break
		}
		won := r.IsWin()
		if (kind == StreakWin) != won {
			break
		}
		count++
	}
	return kind, count
}

// RecentSummary is the winners/losers breakdown of the last N trades.
type RecentSummary struct {
	Count   int
	Winners int
	Losers  int
}

// ComputeRecentSummary summarizes all the given rows, counting only rows
// with a recorded PnL.
func ComputeRecentSummary(rows []TradeLedgerRow) RecentSummary {
	var s RecentSummary
	for _, r := range rows {
		if r.PnL == nil {
			continue
		}
		s.Count++
		if r.IsWin() {
			s.Winners++
		} else {
			s.Losers++
		}
	}
	return s
}

// windowStart returns the window start for a days-wide look-back ending now.
func windowStart(days int) time.Time {
	return time.Now().AddDate(0, 0, -days)
}
