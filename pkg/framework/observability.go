package framework

import "maybenot-go/maybenot/pkg/action"

// MetricsSink receives counters about engine activity. A Framework with no
// sink configured (the default) uses a no-op sink that records nothing.
// pkg/telemetry/metrics provides a Prometheus-backed
// implementation; hosts may also supply their own.
type MetricsSink interface {
	ActionScheduled(machineID int, kind action.Kind)
	ActionSuppressed(machineID int, kind action.Kind)
	MachineEnded(machineID int)
	SampleMode(fast bool)
}

// AuditSink receives a record of every action the framework actually
// scheduled or suppressed, tagged with the correlation ID of the
// TriggerEvents batch that produced it. pkg/audit provides a
// SQLite-backed implementation; nil (the default) disables auditing
// entirely and changes no engine behavior.
type AuditSink interface {
	RecordScheduled(batchID string, act action.Action)
	RecordSuppressed(batchID string, machineID int, kind action.Kind)
}

type noopMetrics struct{}

func (noopMetrics) ActionScheduled(int, action.Kind)  {}
func (noopMetrics) ActionSuppressed(int, action.Kind) {}
func (noopMetrics) MachineEnded(int)                  {}
func (noopMetrics) SampleMode(bool)                   {}
