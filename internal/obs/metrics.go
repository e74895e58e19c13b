package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the control-plane counters through Prometheus. All
// methods are safe on a nil receiver so instrumentation can be optional.
type Metrics struct {
	quoteFetches    *prometheus.CounterVec
	quoteLatency    *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	staleFallbacks  prometheus.Counter
	workerRestarts  *prometheus.CounterVec
	fillsRecorded   prometheus.Counter
	journalDrops    prometheus.Counter
	busDrops        prometheus.Counter
	drawdownPct     prometheus.Gauge
	tradingPaused   prometheus.Gauge
}

// NewMetrics allocates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		quoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botctl",
			Subsystem: "quotes",
			Name:      "fetch_total",
			Help:      "Quote fetch attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		quoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "botctl",
			Subsystem: "quotes",
			Name:      "fetch_seconds",
			Help:      "Quote fetch latency by provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "botctl",
			Subsystem: "quotes",
			Name:      "cache_hits_total",
			Help:      "Quote requests served from the fresh cache.",
		}),
		staleFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "botctl",
			Subsystem: "quotes",
			Name:      "stale_fallbacks_total",
			Help:      "Quote requests served from a stale cache entry.",
		}),
		workerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botctl",
			Subsystem: "supervisor",
			Name:      "worker_restarts_total",
			Help:      "Worker restarts by worker name.",
		}, []string{"worker"}),
		fillsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "botctl",
			Subsystem: "ledger",
			Name:      "fills_recorded_total",
			Help:      "Fills accepted by the ledger.",
		}),
		journalDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "botctl",
			Subsystem: "ledger",
			Name:      "journal_drops_total",
			Help:      "Fills the journal queue could not accept.",
		}),
		busDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "botctl",
			Subsystem: "bus",
			Name:      "drops_total",
			Help:      "Signals dropped by the full bus.",
		}),
		drawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "risk",
			Name:      "drawdown_pct",
			Help:      "Current drawdown from the equity peak, percent.",
		}),
		tradingPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "risk",
			Name:      "trading_paused",
			Help:      "1 while the guardrail pause is in effect.",
		}),
	}
	reg.MustRegister(
		m.quoteFetches, m.quoteLatency, m.cacheHits, m.staleFallbacks,
		m.workerRestarts, m.fillsRecorded, m.journalDrops, m.busDrops,
		m.drawdownPct, m.tradingPaused,
	)
	return m
}

// ObserveQuoteFetch records one provider attempt.
func (m *Metrics) ObserveQuoteFetch(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.quoteFetches.WithLabelValues(provider, outcome).Inc()
	m.quoteLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// IncCacheHit records a fresh-cache hit.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// IncStaleFallback records a stale-cache fallback.
func (m *Metrics) IncStaleFallback() {
	if m == nil {
		return
	}
	m.staleFallbacks.Inc()
}

// IncWorkerRestart records a worker restart.
func (m *Metrics) IncWorkerRestart(worker string) {
	if m == nil {
		return
	}
	m.workerRestarts.WithLabelValues(worker).Inc()
}

// IncFillRecorded records one accepted fill.
func (m *Metrics) IncFillRecorded() {
	if m == nil {
		return
	}
	m.fillsRecorded.Inc()
}

// IncJournalDrop records a fill the journal queue rejected.
func (m *Metrics) IncJournalDrop() {
	if m == nil {
		return
	}
	m.journalDrops.Inc()
}

// IncBusDrop records a dropped bus signal.
func (m *Metrics) IncBusDrop() {
	if m == nil {
		return
	}
	m.busDrops.Inc()
}

// SetDrawdown publishes the current drawdown percentage.
func (m *Metrics) SetDrawdown(pct float64) {
	if m == nil {
		return
	}
	m.drawdownPct.Set(pct)
}

// SetPaused publishes the guardrail pause state.
func (m *Metrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.tradingPaused.Set(1)
	} else {
		m.tradingPaused.Set(0)
	}
}
