// Package replay feeds a recorded sequence of batch outcomes through a
// FailureThreshold to reproduce the abort decision of an update.
package replay

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/yaml"

	operrors "github.com/betepahos/incubator-aurora/internal/errors"
	"github.com/betepahos/incubator-aurora/internal/updater"
)

// Observation is a recorded health timeline for one instance.
type Observation struct {
	Instance    updater.InstanceID `json:"instance"`
	RestartedAt time.Time          `json:"restartedAt"`
	HealthyAt   *time.Time         `json:"healthyAt,omitempty"`
	UnhealthyAt *time.Time         `json:"unhealthyAt,omitempty"`
}

// Batch is the recorded outcome of one batch. Failed lists instances already
// known to have failed; Observations are classified at EvaluatedAt and any
// failures of instances not already in Failed are added.
type Batch struct {
	Failed       []updater.InstanceID `json:"failed,omitempty"`
	Observations []Observation        `json:"observations,omitempty"`
	EvaluatedAt  *time.Time           `json:"evaluatedAt,omitempty"`
}

// Input is the replay document.
type Input struct {
	Batches []Batch `json:"batches"`
}

// BatchResult is what the accountant answered for one batch.
type BatchResult struct {
	Index     int
	Failed    []updater.InstanceID
	OverLimit []updater.InstanceID
}

// Result is the outcome of a replay.
type Result struct {
	Batches []BatchResult
	// FailedAtBatch is the index of the batch after which the update was
	// declared failed, or -1.
	FailedAtBatch int
	Report        updater.FailureReport
}

// Failed reports whether the replayed update would have been aborted.
func (r *Result) Failed() bool {
	return r.FailedAtBatch >= 0
}

// ParseInput decodes a YAML or JSON replay document. Unknown fields are rejected.
func ParseInput(data []byte) (*Input, error) {
	in := &Input{}
	if err := yaml.UnmarshalStrict(data, in); err != nil {
		return nil, operrors.WrapPermanentConfig(fmt.Errorf("failed to decode batches: %w", err))
	}
	return in, nil
}

// LoadInput reads and decodes the replay document at path.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- Path supplied by the operator on the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read batches from %q: %w", path, err)
	}
	return ParseInput(data)
}

// failedInstances returns the instances of b that failed, validating it
// against the batch size. Every observation must be terminal at EvaluatedAt.
// An observed failure adds nothing for an instance already listed in Failed,
// since an instance fails at most once per batch.
func failedInstances(params updater.UpdateParameters, b Batch) ([]updater.InstanceID, error) {
	failed := append([]updater.InstanceID{}, b.Failed...)

	if len(b.Observations) > 0 {
		if b.EvaluatedAt == nil {
			return nil, operrors.WrapPermanentConfig(fmt.Errorf("observations require evaluatedAt"))
		}
		counted := sets.New(b.Failed...)
		for _, obs := range b.Observations {
			state := updater.ClassifyInstance(params, updater.InstanceObservation{
				Instance:    obs.Instance,
				RestartedAt: obs.RestartedAt,
				HealthyAt:   obs.HealthyAt,
				UnhealthyAt: obs.UnhealthyAt,
			}, *b.EvaluatedAt)
			if !state.Terminal() {
				return nil, operrors.WrapPermanentConfig(fmt.Errorf("instance %d is still %s at evaluatedAt", obs.Instance, state))
			}
			if state == updater.InstanceFailedThisBatch && !counted.Has(obs.Instance) {
				counted.Insert(obs.Instance)
				failed = append(failed, obs.Instance)
			}
		}
	}

	if distinct := sets.New(failed...).Len(); distinct > params.BatchSize() {
		return nil, operrors.WrapPermanentConfig(fmt.Errorf("%d distinct failed instances exceed batch size %d", distinct, params.BatchSize()))
	}
	return failed, nil
}

// Run replays batches in order through a fresh FailureThreshold and stops at
// the first batch after which the update is considered failed. A nil metrics
// disables metric recording.
func Run(ctx context.Context, logger logr.Logger, params updater.UpdateParameters, batches []Batch, metrics *updater.Metrics) (*Result, error) {
	threshold := updater.NewFailureThresholdWithMetrics(params, metrics)
	result := &Result{FailedAtBatch: -1}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		failed, err := failedInstances(params, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}

		overLimit := threshold.RecordBatchFailures(failed)
		result.Batches = append(result.Batches, BatchResult{
			Index:     i,
			Failed:    failed,
			OverLimit: sets.List(overLimit),
		})

		logger.V(1).Info("Recorded batch",
			"batch", i,
			"failed", failed,
			"overLimit", sets.List(overLimit))

		if threshold.IsUpdateFailed(logger) {
			result.FailedAtBatch = i
			break
		}
	}

	result.Report = threshold.Evaluate()
	return result, nil
}
