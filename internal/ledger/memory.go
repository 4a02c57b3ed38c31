package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fluxtrade/perpbot/internal/model"
)

// Thresholds controlling what counts as a "best" or "worst" condition,
// per §4.4: RSI-zone and overall conditions need n>=5, hourly conditions
// need only n>=3 (original_source's memory_context.py uses 5 for both;
// the narrower hourly sample size here is an intentional divergence).
const (
	conditionMinSample  = 5
	conditionBestRate   = 70.0
	conditionWorstRate  = 40.0
	hourlyMinSample     = 3
	hourlyBestRate      = 75.0
	hourlyWorstRate     = 35.0
	defaultLookbackDays = 7
	recentTradeLimit    = 10
	topConditions       = 3
)

// MemoryContextBuilder turns ledger analytics into the narrative
// MemoryContext spliced into the AI voter's prompt, grounded on
// original_source/src/analytics/memory_context.py's
// AIMemoryContextBuilder.
type MemoryContextBuilder struct {
	store *Store
}

func NewMemoryContextBuilder(store *Store) *MemoryContextBuilder {
	return &MemoryContextBuilder{store: store}
}

// Build produces a MemoryContext for botID over the trailing days
// window (default 7 when days<=0). Any analytics error yields an empty
// context rather than propagating, per §4.4.
func (b *MemoryContextBuilder) Build(botID string, days int) model.MemoryContext {
	if days <= 0 {
		days = defaultLookbackDays
	}

	closed, err := b.store.ClosedTradesSince(botID, windowStart(days))
	if err != nil {
		log.Warn().Err(err).Str("bot_id", botID).Msg("memory context: ledger query failed, returning empty context")
		return model.MemoryContext{}
	}

	overall := ComputeOverallStats(closed)
	if overall.Empty() {
		return model.MemoryContext{}
	}

	rsiStats := ComputeRSIZoneStats(closed)
	hourlyStats := ComputeHourlyStats(closed)

	recent, err := b.store.RecentClosedTrades(botID, recentTradeLimit)
	if err != nil {
		log.Warn().Err(err).Str("bot_id", botID).Msg("memory context: recent-trades query failed")
		recent = nil
	}
	summary := ComputeRecentSummary(recent)
	streakKind, streakCount := CurrentStreak(recent)

	return model.MemoryContext{
		OverallSummary:    buildOverallSummary(overall, days),
		RecentPerformance: buildRecentPerformance(summary, streakKind, streakCount),
		BestConditions:    buildBestConditions(rsiStats, hourlyStats),
		WorstConditions:   buildWorstConditions(rsiStats, hourlyStats),
		TimingInsights:    buildTimingInsights(hourlyStats),
		Recommendations:   buildRecommendations(rsiStats, hourlyStats),
	}
}

func buildOverallSummary(stats OverallStats, days int) string {
	sign := ""
	if stats.TotalPnL.IsPositive() || stats.TotalPnL.IsZero() {
		sign = "+"
	}
	wr, _ := stats.WinRate.Float64()
	pnl, _ := stats.TotalPnL.Float64()
	return fmt.Sprintf("%dd: %d trades, %.1f%% win rate, %s$%.2f", days, stats.TotalTrades, wr, sign, pnl)
}

func buildRecentPerformance(summary RecentSummary, streakKind StreakKind, streakCount int) string {
	parts := []string{fmt.Sprintf("last %d: %dW %dL", summary.Count, summary.Winners, summary.Losers)}
	if streakKind != StreakNone && streakCount > 0 {
		word := ""
		if streakCount > 1 {
			word = "streak of "
		}
		if streakKind == StreakWin {
			parts = append(parts, fmt.Sprintf("%s%d win%s", word, streakCount, plural(streakCount)))
		} else {
			parts = append(parts, fmt.Sprintf("%s%d loss%s", word, streakCount, lossPlural(streakCount)))
		}
	}
	return strings.Join(parts, ", ")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func lossPlural(n int) string {
	if n == 1 {
		return ""
	}
	return "es"
}

func buildBestConditions(rsiStats []RSIZoneStats, hourlyStats []HourlyStats) string {
	var items []string
	for _, s := range rsiStats {
		if s.TotalTrades >= conditionMinSample && s.WinRate.GreaterThanOrEqual(decFromFloat(conditionBestRate)) {
			wr, _ := s.WinRate.Float64()
			items = append(items, fmt.Sprintf("%s %s (%.1f%% win rate)", s.Side, rsiZoneShortDesc(s.Zone), wr))
		}
	}
	for _, h := range hourlyStats {
		if h.TotalTrades >= hourlyMinSample && h.WinRate.GreaterThanOrEqual(decFromFloat(hourlyBestRate)) {
			wr, _ := h.WinRate.Float64()
			items = append(items, fmt.Sprintf("%s %02d:00 UTC (%.1f%% win rate)", h.Side, h.HourOfDay, wr))
		}
	}
	if len(items) == 0 {
		return "not enough data yet"
	}
	return strings.Join(cap3(items), " | ")
}

func buildWorstConditions(rsiStats []RSIZoneStats, hourlyStats []HourlyStats) string {
	var items []string
	for _, s := range rsiStats {
		if s.TotalTrades >= conditionMinSample && s.WinRate.LessThanOrEqual(decFromFloat(conditionWorstRate)) {
			wr, _ := s.WinRate.Float64()
			items = append(items, fmt.Sprintf("%s %s (%.1f%% win rate)", s.Side, rsiZoneShortDesc(s.Zone), wr))
		}
	}
	for _, h := range hourlyStats {
		if h.TotalTrades >= hourlyMinSample && h.WinRate.LessThanOrEqual(decFromFloat(hourlyWorstRate)) {
			wr, _ := h.WinRate.Float64()
			items = append(items, fmt.Sprintf("%s %02d:00 UTC (%.1f%% win rate)", h.Side, h.HourOfDay, wr))
		}
	}
	if len(items) == 0 {
		return "nothing notable to avoid"
	}
	return strings.Join(cap3(items), " | ")
}

func buildTimingInsights(hourlyStats []HourlyStats) string {
	if len(hourlyStats) == 0 {
		return "no hourly data yet"
	}

	sorted := append([]HourlyStats(nil), hourlyStats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].WinRate.GreaterThan(sorted[j].WinRate) })

	var best, worst []string
	for _, h := range sorted {
		if h.TotalTrades >= hourlyMinSample && h.WinRate.GreaterThanOrEqual(decFromFloat(hourlyBestRate)) {
			best = append(best, fmt.Sprintf("%02d:00", h.HourOfDay))
		}
	}
	for _, h := range sorted {
		if h.TotalTrades >= hourlyMinSample && h.WinRate.LessThanOrEqual(decFromFloat(hourlyWorstRate)) {
			worst = append(worst, fmt.Sprintf("%02d:00", h.HourOfDay))
		}
	}

	var parts []string
	if len(best) > 0 {
		parts = append(parts, "best: "+strings.Join(cap3(best), ", "))
	}
	if len(worst) > 0 {
		parts = append(parts, "avoid: "+strings.Join(cap3(worst), ", "))
	}
	if len(parts) == 0 {
		return "no strong hourly pattern"
	}
	return strings.Join(parts, " | ")
}

func buildRecommendations(rsiStats []RSIZoneStats, hourlyStats []HourlyStats) string {
	var parts []string

	if best := bestBySide(rsiStats, "LONG"); best != nil {
		parts = append(parts, fmt.Sprintf("LONG: %s", rsiZoneShortDesc(best.Zone)))
	}
	if best := bestBySide(rsiStats, "SHORT"); best != nil {
		parts = append(parts, fmt.Sprintf("SHORT: %s", rsiZoneShortDesc(best.Zone)))
	}

	var bestHour *HourlyStats
	for i := range hourlyStats {
		h := hourlyStats[i]
		if h.TotalTrades >= hourlyMinSample && h.WinRate.GreaterThanOrEqual(decFromFloat(hourlyBestRate)) {
			if bestHour == nil || h.WinRate.GreaterThan(bestHour.WinRate) {
				bestHour = &h
			}
		}
	}
	if bestHour != nil {
		parts = append(parts, fmt.Sprintf("best hour: %02d:00 UTC", bestHour.HourOfDay))
	}

	if len(parts) == 0 {
		return "not enough pattern data yet"
	}
	return strings.Join(parts, " | ")
}

func bestBySide(stats []RSIZoneStats, side string) *RSIZoneStats {
	var best *RSIZoneStats
	for i := range stats {
		s := stats[i]
		if s.Side != side || s.TotalTrades < conditionMinSample || s.WinRate.LessThan(decFromFloat(conditionBestRate)) {
			continue
		}
		if best == nil || s.WinRate.GreaterThan(best.WinRate) {
			best = &s
		}
	}
	return best
}

func cap3(items []string) []string {
	if len(items) > topConditions {
		return items[:topConditions]
	}
	return items
}
