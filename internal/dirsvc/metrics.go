package dirsvc

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsOnce ensures metrics are only registered once.
var metricsOnce sync.Once

// metricsInstance is the singleton instance of directory metrics.
var metricsInstance *Metrics

// Metrics holds all Prometheus metrics for the directory service.
type Metrics struct {
	ReplicaSelections      *prometheus.CounterVec // filemesh_directory_replica_selections_total{node}
	CoordinatorAssignments *prometheus.CounterVec // filemesh_directory_coordinator_assignments_total{coordinator}
	Notifications          *prometheus.CounterVec // filemesh_directory_notifications_total{kind}
	AuthFailures           *prometheus.CounterVec // filemesh_directory_auth_failures_total{reason}
}

// InitMetrics initializes all directory metrics. Metrics are only registered
// once; subsequent calls return the same instance. Pass nil to use the
// default Prometheus registry.
func InitMetrics(registry prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		metricsInstance = &Metrics{
			ReplicaSelections: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "filemesh_directory_replica_selections_total",
				Help: "Read-replica selections per storage node",
			}, []string{"node"}),

			CoordinatorAssignments: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "filemesh_directory_coordinator_assignments_total",
				Help: "Write-coordinator assignments per coordinator",
			}, []string{"coordinator"}),

			Notifications: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "filemesh_directory_notifications_total",
				Help: "Storage-node notifications by kind",
			}, []string{"kind"}),

			AuthFailures: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "filemesh_directory_auth_failures_total",
				Help: "Rejected requests by failure reason",
			}, []string{"reason"}),
		}
	})

	return metricsInstance
}
