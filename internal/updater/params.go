package updater

import (
	"time"

	"github.com/betepahos/incubator-aurora/internal/constants"
	operrors "github.com/betepahos/incubator-aurora/internal/errors"
)

// UpdateParameters holds the tunables of a rolling update.
//
// For updates involving a health check, an instance must report healthy within
// RestartThreshold seconds of being restarted and then remain healthy for at
// least WatchSecs seconds. If either condition is not met the instance has
// failed for the current batch.
//
//	restart ---------------- healthy ---------------- done
//	\___ restart_threshold __/\_______ watch_secs _____/
//
// The zero value is not valid; use NewUpdateParameters or DefaultUpdateParameters.
type UpdateParameters struct {
	batchSize              int
	restartThreshold       int
	watchSecs              int
	maxPerInstanceFailures int
	maxTotalFailures       int
}

// NewUpdateParameters validates and returns update parameters.
// batchSize, restartThreshold and watchSecs must be greater than zero. The two
// failure limits are not bounds-checked; zero means no tolerance.
func NewUpdateParameters(batchSize, restartThreshold, watchSecs, maxPerInstanceFailures, maxTotalFailures int) (UpdateParameters, error) {
	if batchSize <= 0 {
		return UpdateParameters{}, operrors.NewParameterError(constants.FieldBatchSize, batchSize)
	}
	if restartThreshold <= 0 {
		return UpdateParameters{}, operrors.NewParameterError(constants.FieldRestartThreshold, restartThreshold)
	}
	if watchSecs <= 0 {
		return UpdateParameters{}, operrors.NewParameterError(constants.FieldWatchSecs, watchSecs)
	}

	return UpdateParameters{
		batchSize:              batchSize,
		restartThreshold:       restartThreshold,
		watchSecs:              watchSecs,
		maxPerInstanceFailures: maxPerInstanceFailures,
		maxTotalFailures:       maxTotalFailures,
	}, nil
}

// DefaultUpdateParameters returns the parameters used when a job does not
// configure its update.
func DefaultUpdateParameters() UpdateParameters {
	return UpdateParameters{
		batchSize:              constants.DefaultBatchSize,
		restartThreshold:       constants.DefaultRestartThresholdSecs,
		watchSecs:              constants.DefaultWatchSecs,
		maxPerInstanceFailures: constants.DefaultMaxPerInstanceFailures,
		maxTotalFailures:       constants.DefaultMaxTotalFailures,
	}
}

// BatchSize is the number of instances updated together.
func (p UpdateParameters) BatchSize() int { return p.batchSize }

// RestartThreshold is the number of seconds a restarted instance has to become healthy.
func (p UpdateParameters) RestartThreshold() int { return p.restartThreshold }

// WatchSecs is the number of seconds an instance must stay healthy.
func (p UpdateParameters) WatchSecs() int { return p.watchSecs }

// MaxPerInstanceFailures is the number of failures tolerated for a single instance.
func (p UpdateParameters) MaxPerInstanceFailures() int { return p.maxPerInstanceFailures }

// MaxTotalFailures is the number of over-limit instances tolerated before the update fails.
func (p UpdateParameters) MaxTotalFailures() int { return p.maxTotalFailures }

// RestartThresholdDuration is RestartThreshold as a time.Duration.
func (p UpdateParameters) RestartThresholdDuration() time.Duration {
	return time.Duration(p.restartThreshold) * time.Second
}

// WatchDuration is WatchSecs as a time.Duration.
func (p UpdateParameters) WatchDuration() time.Duration {
	return time.Duration(p.watchSecs) * time.Second
}
