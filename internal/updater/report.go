package updater

import "github.com/go-logr/logr"

// InstanceFailure describes an instance over the per-instance failure limit.
type InstanceFailure struct {
	Instance InstanceID
	Failures int
	Limit    int
}

// FailureReport is the outcome of evaluating a FailureThreshold.
type FailureReport struct {
	// Failed is true when Exceeded is greater than Limit.
	Failed bool
	// Exceeded is the number of instances over the per-instance limit.
	Exceeded int
	// Limit is the total failure limit.
	Limit int
	// Instances lists the over-limit instances ordered by instance ID.
	Instances []InstanceFailure
}

// Log writes the report as one summary line followed by one line per
// over-limit instance.
func (r FailureReport) Log(logger logr.Logger) {
	logger.Error(nil, "Failed instances observed exceed the maximum allowed",
		"exceeded", r.Exceeded,
		"limit", r.Limit)
	for _, instance := range r.Instances {
		logger.Error(nil, "Instance failures exceed the maximum allowed",
			"instance", instance.Instance,
			"failures", instance.Failures,
			"limit", instance.Limit)
	}
}
