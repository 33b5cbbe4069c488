package constants

// Prometheus naming for update metrics.
const (
	MetricsNamespace = "aurora"
	MetricsSubsystem = "update"
)

// Audit event types emitted by the updater.
const (
	AuditEventUpdateFailed = "update_failed"
)
