// Package metrics provides a Prometheus-backed implementation of
// framework.MetricsSink.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"maybenot-go/maybenot/pkg/action"
)

// Collector implements framework.MetricsSink by recording action
// scheduling/suppression and machine-lifecycle counters against a
// Prometheus registry.
//
// Metrics:
//   - maybenot_actions_scheduled_total: actions scheduled, by machine and kind
//   - maybenot_actions_suppressed_total: actions suppressed by budget, by machine and kind
//   - maybenot_machines_ended_total: machines that reached STATE_END
//   - maybenot_sample_mode_fast_total: TriggerEvents dispatches using the alias-table fast path
type Collector struct {
	actionsScheduled  *prometheus.CounterVec
	actionsSuppressed *prometheus.CounterVec
	machinesEnded     prometheus.Counter
	sampleModeFast    prometheus.Counter
	sampleModeLinear  prometheus.Counter
}

// NewCollector creates and registers maybenot metrics with the provided
// registry. If registry is nil, a new private registry is created.
func NewCollector(namespace, subsystem string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		actionsScheduled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "actions_scheduled_total",
				Help:      "Total number of actions scheduled by the framework",
			},
			[]string{"machine_id", "kind"},
		),
		actionsSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "actions_suppressed_total",
				Help:      "Total number of actions suppressed by a padding/blocking budget",
			},
			[]string{"machine_id", "kind"},
		),
		machinesEnded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "machines_ended_total",
				Help:      "Total number of machines that reached STATE_END",
			},
		),
		sampleModeFast: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sample_mode_fast_total",
				Help:      "Total number of state transition samples taken via the alias-table fast path",
			},
		),
		sampleModeLinear: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sample_mode_linear_total",
				Help:      "Total number of state transition samples taken via linear cumulative search",
			},
		),
	}

	registry.MustRegister(
		c.actionsScheduled,
		c.actionsSuppressed,
		c.machinesEnded,
		c.sampleModeFast,
		c.sampleModeLinear,
	)

	return c
}

// ActionScheduled implements framework.MetricsSink.
func (c *Collector) ActionScheduled(machineID int, kind action.Kind) {
	c.actionsScheduled.WithLabelValues(strconv.Itoa(machineID), kindLabel(kind)).Inc()
}

// ActionSuppressed implements framework.MetricsSink.
func (c *Collector) ActionSuppressed(machineID int, kind action.Kind) {
	c.actionsSuppressed.WithLabelValues(strconv.Itoa(machineID), kindLabel(kind)).Inc()
}

func kindLabel(kind action.Kind) string {
	switch kind {
	case action.KindCancel:
		return "cancel"
	case action.KindSendPadding:
		return "send_padding"
	case action.KindBlockOutgoing:
		return "block_outgoing"
	case action.KindUpdateTimer:
		return "update_timer"
	default:
		return "unknown"
	}
}

// MachineEnded implements framework.MetricsSink.
func (c *Collector) MachineEnded(machineID int) {
	c.machinesEnded.Inc()
}

// SampleMode implements framework.MetricsSink.
func (c *Collector) SampleMode(fast bool) {
	if fast {
		c.sampleModeFast.Inc()
		return
	}
	c.sampleModeLinear.Inc()
}
