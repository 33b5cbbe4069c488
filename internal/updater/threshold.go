package updater

import (
	"sort"
	"strconv"
	"sync"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/betepahos/incubator-aurora/internal/constants"
	"github.com/betepahos/incubator-aurora/internal/logging"
)

// InstanceID identifies one instance of a job.
type InstanceID int32

// FailureThreshold accounts for instance health-check failures over the
// lifetime of a single update and decides when the update has failed.
//
// A FailureThreshold must not be reused across updates. It is safe for
// concurrent use.
type FailureThreshold struct {
	maxPerInstanceFailures int
	maxTotalFailures       int

	mu                 sync.Mutex
	failuresByInstance map[InstanceID]int
	metrics            *Metrics
}

// NewFailureThreshold returns an accountant using the given limits verbatim.
// The limits are not validated; callers are expected to obtain them from
// UpdateParameters.
func NewFailureThreshold(maxPerInstanceFailures, maxTotalFailures int) *FailureThreshold {
	return &FailureThreshold{
		maxPerInstanceFailures: maxPerInstanceFailures,
		maxTotalFailures:       maxTotalFailures,
		failuresByInstance:     make(map[InstanceID]int),
	}
}

// NewFailureThresholdFromParameters returns an accountant using the failure
// limits of params.
func NewFailureThresholdFromParameters(params UpdateParameters) *FailureThreshold {
	return NewFailureThreshold(params.MaxPerInstanceFailures(), params.MaxTotalFailures())
}

// NewFailureThresholdWithMetrics returns an accountant that also records
// Prometheus metrics. A nil metrics disables recording.
func NewFailureThresholdWithMetrics(params UpdateParameters, metrics *Metrics) *FailureThreshold {
	ft := NewFailureThresholdFromParameters(params)
	ft.metrics = metrics
	return ft
}

// RecordBatchFailures adds one failure for every occurrence of an instance in
// failed, so duplicates count individually.
//
// It returns every instance whose cumulative failure count is now over the
// per-instance limit, including instances that crossed it in an earlier batch.
func (f *FailureThreshold) RecordBatchFailures(failed []InstanceID) sets.Set[InstanceID] {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, instance := range failed {
		f.failuresByInstance[instance]++
	}

	exceeded := sets.New[InstanceID]()
	for instance, count := range f.failuresByInstance {
		if count > f.maxPerInstanceFailures {
			exceeded.Insert(instance)
		}
	}

	if f.metrics != nil {
		f.metrics.IncrementBatches()
		f.metrics.AddInstanceFailures(len(failed))
		f.metrics.SetInstancesOverLimit(exceeded.Len())
	}

	return exceeded
}

// Evaluate reports whether the update has failed along with every instance
// that is over the per-instance limit. It does not modify any state.
func (f *FailureThreshold) Evaluate() FailureReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	report := FailureReport{Limit: f.maxTotalFailures}
	for instance, count := range f.failuresByInstance {
		if count > f.maxPerInstanceFailures {
			report.Instances = append(report.Instances, InstanceFailure{
				Instance: instance,
				Failures: count,
				Limit:    f.maxPerInstanceFailures,
			})
		}
	}
	sort.Slice(report.Instances, func(i, j int) bool {
		return report.Instances[i].Instance < report.Instances[j].Instance
	})

	report.Exceeded = len(report.Instances)
	report.Failed = report.Exceeded > f.maxTotalFailures
	return report
}

// IsUpdateFailed reports whether more instances are over the per-instance
// limit than the total limit allows. When it returns true the failure report
// is written to logger.
func (f *FailureThreshold) IsUpdateFailed(logger logr.Logger) bool {
	report := f.Evaluate()

	if f.metrics != nil {
		f.metrics.SetFailed(report.Failed)
	}

	if report.Failed {
		report.Log(logger)
		logging.LogAuditEvent(logger, constants.AuditEventUpdateFailed, map[string]string{
			"exceeded": strconv.Itoa(report.Exceeded),
			"limit":    strconv.Itoa(report.Limit),
		})
	}
	return report.Failed
}

// FailureCount returns the number of failures recorded for instance.
func (f *FailureThreshold) FailureCount(instance InstanceID) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.failuresByInstance[instance]
}

// Instances returns every instance with at least one recorded failure, sorted.
func (f *FailureThreshold) Instances() []InstanceID {
	f.mu.Lock()
	defer f.mu.Unlock()

	return sets.List(sets.KeySet(f.failuresByInstance))
}
