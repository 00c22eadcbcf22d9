package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type trackerMetrics struct {
	registry *prometheus.Registry

	storeRecoveries  *prometheus.CounterVec
	storeWriteErrors prometheus.Counter
	sessionOps       *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *trackerMetrics
)

func get() *trackerMetrics {
	metricsOnce.Do(func() {
		m := &trackerMetrics{
			registry: prometheus.NewRegistry(),
			storeRecoveries: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "devtrack_store_recoveries_total",
					Help: "Store documents reset or repaired, by reason.",
				},
				[]string{"reason"},
			),
			storeWriteErrors: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "devtrack_store_write_errors_total",
					Help: "Failed whole-file writes of the store.",
				},
			),
			sessionOps: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "devtrack_session_operations_total",
					Help: "Session mutations by operation and result.",
				},
				[]string{"op", "result"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "devtrack_active_sessions",
					Help: "Sessions with a null end time at the last query.",
				},
			),
		}
		m.registry.MustRegister(
			m.storeRecoveries,
			m.storeWriteErrors,
			m.sessionOps,
			m.activeSessions,
			prometheus.NewGoCollector(),
		)
		metricsInst = m
	})
	return metricsInst
}

func StoreRecovered(reason string) {
	get().storeRecoveries.WithLabelValues(reason).Inc()
}

func StoreWriteFailed() {
	get().storeWriteErrors.Inc()
}

// SessionOp records a mutation outcome; result is "ok", "miss" or "error".
func SessionOp(op, result string) {
	get().sessionOps.WithLabelValues(op, result).Inc()
}

func SetActiveSessions(n int) {
	get().activeSessions.Set(float64(n))
}

// Registry exposes the private registry for tests.
func Registry() *prometheus.Registry {
	return get().registry
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(get().registry, promhttp.HandlerOpts{})
}
