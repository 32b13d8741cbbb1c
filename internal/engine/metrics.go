package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vadiminshakov/rsibot/internal/domain"
)

// Metrics holds the Prometheus collectors for strategy loops. A nil *Metrics is a no-op.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec   // labels: strategy
	FetchFailuresTotal *prometheus.CounterVec   // labels: strategy
	SignalsTotal       *prometheus.CounterVec   // labels: strategy, signal
	TransactionsTotal  *prometheus.CounterVec   // labels: strategy, outcome
	CycleDuration      *prometheus.HistogramVec // labels: strategy
	Running            *prometheus.GaugeVec     // labels: strategy
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsibot_cycles_total",
			Help: "Polling cycles started per strategy",
		}, []string{"strategy"}),
		FetchFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsibot_fetch_failures_total",
			Help: "Cycles skipped because market data could not be fetched",
		}, []string{"strategy"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsibot_signals_total",
			Help: "Signals produced per strategy",
		}, []string{"strategy", "signal"}),
		TransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsibot_transactions_total",
			Help: "Ledger records by outcome",
		}, []string{"strategy", "outcome"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rsibot_cycle_duration_seconds",
			Help:    "Time spent in one fetch-decide-apply cycle",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		Running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rsibot_strategy_running",
			Help: "1 while the strategy loop is running",
		}, []string{"strategy"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CyclesTotal,
			m.FetchFailuresTotal,
			m.SignalsTotal,
			m.TransactionsTotal,
			m.CycleDuration,
			m.Running,
		)
	}

	return m
}

func (m *Metrics) cycle(strategy string, started time.Time) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(strategy).Inc()
	m.CycleDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
}

func (m *Metrics) fetchFailure(strategy string) {
	if m == nil {
		return
	}
	m.FetchFailuresTotal.WithLabelValues(strategy).Inc()
}

func (m *Metrics) signal(strategy string, s domain.Signal) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(strategy, s.String()).Inc()
}

func (m *Metrics) transaction(strategy string, o domain.Outcome) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(strategy, string(o)).Inc()
}

func (m *Metrics) running(strategy string, on bool) {
	if m == nil {
		return
	}
	v := 0.0
	if on {
		v = 1
	}
	m.Running.WithLabelValues(strategy).Set(v)
}
