// Package obsmetrics exposes Prometheus-style counters and gauges for the
// bot keeper: tick counts, signals by kind, ledger/state-store failures,
// circuit-breaker trips, and open positions. It implements the Metrics
// interfaces accepted by internal/botengine and internal/botmanager.
package obsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxtrade/perpbot/internal/model"
)

// Metrics is the concrete Prometheus registry-backed instrumentation
// surface. It implements botengine.Metrics.
type Metrics struct {
	tickCompleted        *prometheus.CounterVec
	signalGenerated       *prometheus.CounterVec
	ledgerWriteFailed     *prometheus.CounterVec
	stateStoreSyncFailed  *prometheus.CounterVec
	circuitBreakerTripped *prometheus.CounterVec
	positionOpen          *prometheus.GaugeVec
}

// New registers the bot keeper's metric families against reg and returns
// a Metrics ready to pass to botengine/botmanager. Pass
// prometheus.DefaultRegisterer for process-wide metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		tickCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perpbot",
			Name:      "tick_completed_total",
			Help:      "Number of ticks completed successfully, per bot.",
		}, []string{"bot_id"}),
		signalGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perpbot",
			Name:      "signal_generated_total",
			Help:      "Number of signals generated, per bot and kind.",
		}, []string{"bot_id", "kind"}),
		ledgerWriteFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perpbot",
			Name:      "ledger_write_failed_total",
			Help:      "Number of ledger write failures, per bot.",
		}, []string{"bot_id"}),
		stateStoreSyncFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perpbot",
			Name:      "statestore_sync_failed_total",
			Help:      "Number of StateStore sync failures, per bot.",
		}, []string{"bot_id"}),
		circuitBreakerTripped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perpbot",
			Name:      "circuit_breaker_tripped_total",
			Help:      "Number of times the circuit breaker gated an entry, per bot.",
		}, []string{"bot_id"}),
		positionOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "perpbot",
			Name:      "position_open",
			Help:      "1 if the bot currently holds an open position, else 0.",
		}, []string{"bot_id"}),
	}
}

func (m *Metrics) TickCompleted(botID string) {
	m.tickCompleted.WithLabelValues(botID).Inc()
}

func (m *Metrics) SignalGenerated(botID string, kind model.SignalKind) {
	m.signalGenerated.WithLabelValues(botID, string(kind)).Inc()
}

func (m *Metrics) LedgerWriteFailed(botID string) {
	m.ledgerWriteFailed.WithLabelValues(botID).Inc()
}

func (m *Metrics) StateStoreSyncFailed(botID string) {
	m.stateStoreSyncFailed.WithLabelValues(botID).Inc()
}

func (m *Metrics) CircuitBreakerTripped(botID string) {
	m.circuitBreakerTripped.WithLabelValues(botID).Inc()
}

func (m *Metrics) PositionOpen(botID string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.positionOpen.WithLabelValues(botID).Set(v)
}

// Handler returns the /metrics HTTP handler scraping reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
