package updater

import "time"

// InstanceState is the progress of one instance through a batch.
type InstanceState int

const (
	// InstanceUpdating means the instance has just been restarted.
	InstanceUpdating InstanceState = iota
	// InstanceAwaitingHealthy means the instance has not reported healthy yet
	// and is still within the restart threshold.
	InstanceAwaitingHealthy
	// InstanceHealthyPendingWatch means the instance is healthy but has not
	// yet been healthy for the watch period.
	InstanceHealthyPendingWatch
	// InstanceSuccessful means the instance stayed healthy for the watch period.
	InstanceSuccessful
	// InstanceFailedThisBatch means the instance missed the restart threshold
	// or regressed during the watch period.
	InstanceFailedThisBatch
)

func (s InstanceState) String() string {
	switch s {
	case InstanceUpdating:
		return "Updating"
	case InstanceAwaitingHealthy:
		return "AwaitingHealthy"
	case InstanceHealthyPendingWatch:
		return "HealthyPendingWatch"
	case InstanceSuccessful:
		return "Successful"
	case InstanceFailedThisBatch:
		return "FailedThisBatch"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the instance is done for the current batch.
func (s InstanceState) Terminal() bool {
	return s == InstanceSuccessful || s == InstanceFailedThisBatch
}

// InstanceObservation is what the update driver saw of one instance in a batch.
type InstanceObservation struct {
	Instance    InstanceID
	RestartedAt time.Time
	// HealthyAt is when the instance first reported healthy after the restart.
	HealthyAt *time.Time
	// UnhealthyAt is when the instance first stopped being healthy after HealthyAt.
	UnhealthyAt *time.Time
}

// ClassifyInstance returns the state of obs at now using the restart threshold
// and watch period of params. It does not wait or poll; the caller supplies
// every timestamp.
func ClassifyInstance(params UpdateParameters, obs InstanceObservation, now time.Time) InstanceState {
	restartDeadline := obs.RestartedAt.Add(params.RestartThresholdDuration())

	if obs.HealthyAt == nil {
		switch {
		case now.After(restartDeadline):
			return InstanceFailedThisBatch
		case !now.After(obs.RestartedAt):
			return InstanceUpdating
		default:
			return InstanceAwaitingHealthy
		}
	}

	healthyAt := *obs.HealthyAt
	if healthyAt.After(restartDeadline) {
		return InstanceFailedThisBatch
	}

	watchEnd := healthyAt.Add(params.WatchDuration())
	if obs.UnhealthyAt != nil && obs.UnhealthyAt.Before(watchEnd) && !obs.UnhealthyAt.After(now) {
		return InstanceFailedThisBatch
	}
	if !now.Before(watchEnd) {
		return InstanceSuccessful
	}
	return InstanceHealthyPendingWatch
}

// FailedInstances returns the instances of a batch that failed at now, in the
// order they were observed. The result is suitable for RecordBatchFailures.
func FailedInstances(params UpdateParameters, batch []InstanceObservation, now time.Time) []InstanceID {
	var failed []InstanceID
	for _, obs := range batch {
		if ClassifyInstance(params, obs, now) == InstanceFailedThisBatch {
			failed = append(failed, obs.Instance)
		}
	}
	return failed
}
