package updater

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/betepahos/incubator-aurora/internal/constants"
)

var (
	// instanceFailuresCounter tracks every recorded instance health-check failure.
	instanceFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: constants.MetricsSubsystem,
			Name:      "instance_failures_total",
			Help:      "Total number of instance health-check failures recorded during updates",
		},
		[]string{"job"},
	)

	// batchesRecordedCounter tracks how many batch outcomes were recorded.
	batchesRecordedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: constants.MetricsSubsystem,
			Name:      "batches_recorded_total",
			Help:      "Total number of batch outcomes recorded during updates",
		},
		[]string{"job"},
	)

	// instancesOverLimitGauge tracks instances over the per-instance failure limit.
	instancesOverLimitGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: constants.MetricsSubsystem,
			Name:      "instances_over_limit",
			Help:      "Number of instances currently over the per-instance failure limit",
		},
		[]string{"job"},
	)

	// updateFailedGauge indicates whether the update exceeded the total failure limit.
	updateFailedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: constants.MetricsSubsystem,
			Name:      "failed",
			Help:      "Whether the update exceeded its total failure limit (1) or not (0)",
		},
		[]string{"job"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		instanceFailuresCounter,
		batchesRecordedCounter,
		instancesOverLimitGauge,
		updateFailedGauge,
	)
}

// Metrics records update failure metrics for a single job.
type Metrics struct {
	job string
}

// NewMetrics creates a new Metrics instance for the given job key.
func NewMetrics(job string) *Metrics {
	return &Metrics{job: job}
}

// AddInstanceFailures adds n recorded instance failures.
func (m *Metrics) AddInstanceFailures(n int) {
	instanceFailuresCounter.WithLabelValues(m.job).Add(float64(n))
}

// IncrementBatches increments the recorded batch counter.
func (m *Metrics) IncrementBatches() {
	batchesRecordedCounter.WithLabelValues(m.job).Inc()
}

// SetInstancesOverLimit sets the number of over-limit instances.
func (m *Metrics) SetInstancesOverLimit(count int) {
	instancesOverLimitGauge.WithLabelValues(m.job).Set(float64(count))
}

// SetFailed sets whether the update has failed.
func (m *Metrics) SetFailed(failed bool) {
	value := 0.0
	if failed {
		value = 1.0
	}
	updateFailedGauge.WithLabelValues(m.job).Set(value)
}

// Clear resets all metrics for this job.
func (m *Metrics) Clear() {
	instanceFailuresCounter.DeleteLabelValues(m.job)
	batchesRecordedCounter.DeleteLabelValues(m.job)
	instancesOverLimitGauge.DeleteLabelValues(m.job)
	updateFailedGauge.DeleteLabelValues(m.job)
}
