package constants

// Defaults applied to a job's update_config when an attribute is omitted.
const (
	DefaultBatchSize              = 3
	DefaultRestartThresholdSecs   = 10
	DefaultWatchSecs              = 30
	DefaultMaxPerInstanceFailures = 0
	DefaultMaxTotalFailures       = 0
)

// Names of the validated update parameters as they appear in job configuration and errors.
const (
	FieldBatchSize        = "batch_size"
	FieldRestartThreshold = "restart_threshold"
	FieldWatchSecs        = "watch_secs"
)

// HCL block and attribute names for job files.
const (
	BlockJob          = "job"
	BlockUpdateConfig = "update_config"
	VariablesRoot     = "var"
)
