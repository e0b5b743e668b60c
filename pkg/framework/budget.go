package framework

import (
	"math/rand"
	"time"

	"maybenot-go/maybenot/pkg/action"
	"maybenot-go/maybenot/pkg/dist"
	"maybenot-go/maybenot/pkg/event"
)

// fireAction evaluates a state's action descriptor: it applies timer
// replacement discipline, checks padding/blocking budgets, samples timing,
// and appends a concrete action.Action to out when the action is actually
// scheduled. It returns a LimitReached event scoped to mi when a budget
// suppressed an otherwise-eligible SendPadding/BlockOutgoing.
func (f *Framework) fireAction(mi int, desc action.Descriptor, now Instant, batchID string, out *[]action.Action) *event.Event {
	rm := f.runtime[mi]

	switch desc.Kind {
	case action.KindCancel:
		act := action.Action{Kind: action.KindCancel, MachineID: mi, Timer: desc.Timer}
		switch desc.Timer {
		case action.TimerAction:
			rm.pendingActionExpiry = nil
		case action.TimerInternal:
			rm.internalTimerExpiry = nil
		case action.TimerAll:
			rm.pendingActionExpiry = nil
			rm.internalTimerExpiry = nil
		}
		f.schedule(mi, act, batchID, out)
		return nil

	case action.KindSendPadding:
		if rm.pendingActionExpiry != nil && !desc.Replace {
			return nil
		}
		if !f.paddingAllowed(mi) {
			f.suppress(mi, desc.Kind, batchID)
			lr := event.NewFor(event.LimitReached, mi)
			return &lr
		}
		timeout := sampleDuration(desc.TimeoutDist, f.rng)
		expiry := now.Add(timeout)
		rm.pendingActionExpiry = &expiry
		if desc.HasLimitDist {
			rm.stateLimitRemaining = sampleStateLimit(desc, f.rng)
		}
		rm.paddingSent++
		f.globalPadding++
		act := action.Action{Kind: action.KindSendPadding, MachineID: mi, Timeout: timeout, Bypass: desc.Bypass, Replace: desc.Replace}
		f.schedule(mi, act, batchID, out)
		return nil

	case action.KindBlockOutgoing:
		if rm.pendingActionExpiry != nil && !desc.Replace {
			return nil
		}
		if !f.blockingAllowed(mi, now) {
			f.suppress(mi, desc.Kind, batchID)
			lr := event.NewFor(event.LimitReached, mi)
			return &lr
		}
		timeout := sampleDuration(desc.TimeoutDist, f.rng)
		duration := sampleDuration(desc.DurationDist, f.rng)
		expiry := now.Add(timeout)
		rm.pendingActionExpiry = &expiry
		if desc.HasLimitDist {
			rm.stateLimitRemaining = sampleStateLimit(desc, f.rng)
		}
		rm.blockingDurationMicrosec += uint64(duration.Microseconds())
		f.totalBlockingDurationMicrosec += uint64(duration.Microseconds())
		act := action.Action{Kind: action.KindBlockOutgoing, MachineID: mi, Timeout: timeout, Duration: duration, Bypass: desc.Bypass, Replace: desc.Replace}
		f.schedule(mi, act, batchID, out)
		return nil

	case action.KindUpdateTimer:
		if rm.internalTimerExpiry != nil && !desc.Replace {
			return nil
		}
		duration := sampleDuration(desc.DurationDistForTimer, f.rng)
		expiry := now.Add(duration)
		rm.internalTimerExpiry = &expiry
		act := action.Action{Kind: action.KindUpdateTimer, MachineID: mi, Duration: duration, Replace: desc.Replace}
		f.schedule(mi, act, batchID, out)
		return nil
	}
	return nil
}

func (f *Framework) schedule(mi int, act action.Action, batchID string, out *[]action.Action) {
	*out = append(*out, act)
	f.runtime[mi].lastActionSeq++
	f.metrics.ActionScheduled(mi, act.Kind)
	if f.audit != nil {
		f.audit.RecordScheduled(batchID, act)
	}
}

func (f *Framework) suppress(mi int, kind action.Kind, batchID string) {
	f.metrics.ActionSuppressed(mi, kind)
	if f.audit != nil {
		f.audit.RecordSuppressed(batchID, mi, kind)
	}
}

// sampleDuration samples d (interpreted as a microsecond count, per the
// data model) and converts it to a time.Duration.
func sampleDuration(d dist.Dist, rng *rand.Rand) time.Duration {
	return time.Duration(d.Sample(rng) * float64(time.Microsecond))
}

// paddingAllowed reports whether mi may schedule another padding action:
// both its own per-machine budget and the framework-wide fraction must
// have headroom.
func (f *Framework) paddingAllowed(mi int) bool {
	rm := f.runtime[mi]
	m := f.machines[mi]
	if rm.paddingSent >= m.AllowedPaddingPackets && fracAtLeast(rm.paddingSent, rm.normalSent, m.MaxPaddingFrac) {
		return false
	}
	// A framework-wide fraction of zero means no global fractional limit.
	if f.maxPaddingFrac > 0 && fracAtLeast(f.globalPadding, f.globalNonpadding, f.maxPaddingFrac) {
		return false
	}
	return true
}

// blockingAllowed reports whether mi may schedule another blocking action.
// The per-machine and framework-wide fractions are measured against
// elapsed wall-clock time since the machine/framework started, since
// blocking has no natural "normal traffic" denominator of its own.
func (f *Framework) blockingAllowed(mi int, now Instant) bool {
	rm := f.runtime[mi]
	m := f.machines[mi]
	elapsedMachine := uint64(clampDelta(rm.machineStart, now).Microseconds())
	if rm.blockingDurationMicrosec >= m.AllowedBlockedMicrosec && fracAtLeast(rm.blockingDurationMicrosec, elapsedMachine, m.MaxBlockedFrac) {
		return false
	}
	// As with padding, a framework-wide fraction of zero disables the
	// global blocking ratio.
	elapsedGlobal := uint64(clampDelta(f.start, now).Microseconds())
	if f.maxBlockingFrac > 0 && fracAtLeast(f.totalBlockingDurationMicrosec, elapsedGlobal, f.maxBlockingFrac) {
		return false
	}
	return true
}

func fracAtLeast(num, den uint64, frac float64) bool {
	if den == 0 {
		den = 1
	}
	return float64(num)/float64(den) >= frac
}
