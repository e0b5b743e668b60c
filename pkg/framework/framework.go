// Package framework runs one or more machines against a stream of
// host-reported events, turning (event, machine-state) pairs into
// scheduled actions while enforcing per-machine and framework-wide
// padding/blocking budgets.
//
// A Framework owns no clock and no random source of its own: both are
// injected at construction, so identical inputs (machines, seeded rng,
// event stream, clock stream) always produce identical outputs.
package framework

import (
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"maybenot-go/maybenot/pkg/machine"
)

// Framework runs N machines. It is not safe for concurrent TriggerEvents
// calls; the host is responsible for synchronizing access, matching the
// single-threaded cooperative model the engine is built for.
type Framework struct {
	machines []*machine.Machine
	runtime  []*runtimeMachine

	maxPaddingFrac  float64
	maxBlockingFrac float64

	globalPadding                 uint64
	globalNonpadding              uint64
	totalBlockingDurationMicrosec uint64

	rng   *rand.Rand
	start Instant

	logger  *slog.Logger
	metrics MetricsSink
	audit   AuditSink
}

// Option configures optional, purely-ambient Framework behavior: none of
// these change the sequence of Actions a Framework emits for a given
// (machines, rng, events, clock) input.
type Option func(*Framework)

// WithLogger attaches a structured logger used for Debug-level per-batch
// tracing. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Framework) { f.logger = l }
}

// WithMetrics attaches a MetricsSink. The default records nothing.
func WithMetrics(m MetricsSink) Option {
	return func(f *Framework) { f.metrics = m }
}

// WithAudit attaches an AuditSink. The default records nothing.
func WithAudit(a AuditSink) Option {
	return func(f *Framework) { f.audit = a }
}

// New constructs a Framework over machines. It validates the aggregate
// padding/blocking fractions and every machine, then initializes each
// machine's runtime at state 0: its initial state limit is sampled from
// state 0's action and its counters are seeded to zero. No action is
// scheduled at construction; the first actions flow from the first
// TriggerEvents call.
func New(machines []*machine.Machine, maxPaddingFrac, maxBlockingFrac float64, now Instant, rng *rand.Rand, opts ...Option) (*Framework, error) {
	if maxPaddingFrac < 0 || maxPaddingFrac > 1 {
		return nil, initErr(BadFraction, nil)
	}
	if maxBlockingFrac < 0 || maxBlockingFrac > 1 {
		return nil, initErr(BadFraction, nil)
	}
	for _, m := range machines {
		if err := m.Validate(); err != nil {
			return nil, initErr(BadMachine, err)
		}
	}

	f := &Framework{
		machines:        machines,
		runtime:         make([]*runtimeMachine, len(machines)),
		maxPaddingFrac:  maxPaddingFrac,
		maxBlockingFrac: maxBlockingFrac,
		rng:             rng,
		start:           now,
		logger:          slog.Default(),
		metrics:         noopMetrics{},
	}
	for _, opt := range opts {
		opt(f)
	}

	for mi, m := range machines {
		rm := newRuntimeMachine(now)
		f.runtime[mi] = rm
		if m.NumStates() == 0 {
			continue
		}
		rm.stateLimitRemaining = sampleStateLimit(m.State(0).Action, f.rng)
	}

	f.logger.Debug("framework initialized", "num_machines", len(machines), "max_padding_frac", maxPaddingFrac, "max_blocking_frac", maxBlockingFrac)
	return f, nil
}

// ActionsInUse reports how many machines currently have a pending
// scheduled action (a padding or blocking timer outstanding).
func (f *Framework) ActionsInUse() uint64 {
	var n uint64
	for _, rm := range f.runtime {
		if rm.pendingActionExpiry != nil {
			n++
		}
	}
	return n
}

// AllMachinesEnded reports whether every machine has reached STATE_END.
func (f *Framework) AllMachinesEnded() bool {
	for _, rm := range f.runtime {
		if !rm.ended() {
			return false
		}
	}
	return true
}

// NumMachines returns the number of machines the framework was constructed
// with.
func (f *Framework) NumMachines() int {
	return len(f.machines)
}

func newBatchID() string {
	return uuid.NewString()
}
