package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the login gate and the
// settings sync queue.
type Metrics struct {
	LoginAttempts  *prometheus.CounterVec
	GateRejections *prometheus.CounterVec
	Lockouts       prometheus.Counter
	SyncEvents     *prometheus.CounterVec
	SyncQueueDepth prometheus.Gauge
	ConflictScans  prometheus.Counter
	ConflictsFound *prometheus.CounterVec
}

// New registers the collectors with the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh
// prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_login_attempts_total",
			Help: "Login attempts by final outcome.",
		}, []string{"outcome"}),
		GateRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_gate_rejections_total",
			Help: "Attempts rejected before credential verification, by validator.",
		}, []string{"reason"}),
		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_lockouts_total",
			Help: "Lockout thresholds crossed.",
		}),
		SyncEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_sync_events_total",
			Help: "Settings sync events processed, by result.",
		}, []string{"status"}),
		SyncQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gatehouse_sync_queue_depth",
			Help: "Sync events currently stored, all statuses.",
		}),
		ConflictScans: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_conflict_scans_total",
			Help: "Conflict scans executed (cache misses only).",
		}),
		ConflictsFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_conflicts_found_total",
			Help: "Conflicts detected during scans, by severity.",
		}, []string{"severity"}),
	}
}
