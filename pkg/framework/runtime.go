package framework

import (
	"math"
	"math/rand"

	"maybenot-go/maybenot/pkg/action"
	"maybenot-go/maybenot/pkg/counter"
	"maybenot-go/maybenot/pkg/state"
)

// runtimeMachine is the per-machine mutable state the Framework threads
// through TriggerEvents. One exists per loaded machine, for the lifetime
// of the Framework.
type runtimeMachine struct {
	current state.Index

	counterA uint64
	counterB uint64

	// stateLimitRemaining caps how many more state entries may happen
	// before the machine is forced to END; each entry consumes one. It is
	// sampled at construction from state 0's action and resampled each time
	// a SendPadding or BlockOutgoing action with a limit_dist is scheduled.
	// Entering a state whose action has no limit_dist leaves the count
	// unchanged. math.MaxUint64 means "no cap".
	stateLimitRemaining uint64

	paddingSent uint64
	normalSent  uint64

	blockingDurationMicrosec uint64

	pendingActionExpiry *Instant
	internalTimerExpiry *Instant

	machineStart  Instant
	lastActionSeq uint64
}

func newRuntimeMachine(start Instant) *runtimeMachine {
	return &runtimeMachine{
		current:      0,
		machineStart: start,
	}
}

func (rm *runtimeMachine) ended() bool {
	return rm.current == state.End
}

func (rm *runtimeMachine) counterValue(which counter.Which) uint64 {
	if which == counter.A {
		return rm.counterA
	}
	return rm.counterB
}

func (rm *runtimeMachine) setCounterValue(which counter.Which, v uint64) {
	if which == counter.A {
		rm.counterA = v
	} else {
		rm.counterB = v
	}
}

// sampleStateLimit returns the fresh remaining-visits budget for entering
// st: the rounded sample of its action's limit_dist if present, otherwise
// an effectively unbounded count.
func sampleStateLimit(desc action.Descriptor, rng *rand.Rand) uint64 {
	if !desc.HasLimitDist {
		return math.MaxUint64
	}
	v := desc.LimitDist.Sample(rng)
	if v < 0 {
		return 0
	}
	return uint64(math.Round(v))
}
