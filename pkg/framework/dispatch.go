package framework

import (
	"math"

	"maybenot-go/maybenot/pkg/action"
	"maybenot-go/maybenot/pkg/counter"
	"maybenot-go/maybenot/pkg/event"
	"maybenot-go/maybenot/pkg/state"
)

// TriggerEvents delivers events, in order, to every non-ended machine in
// construction order, and returns every action scheduled as a result.
//
// Synthetic CounterZero, Signal, and LimitReached events produced while
// processing a host event are fully drained — including any further
// synthetic events they in turn produce — before the next host event is
// considered, per the engine's ordering guarantee.
func (f *Framework) TriggerEvents(events []event.Event, now Instant) []action.Action {
	batchID := newBatchID()
	var out []action.Action

	for _, hostEvt := range events {
		pending := []event.Event{hostEvt}
		for len(pending) > 0 {
			evt := pending[0]
			pending = pending[1:]
			synth := f.deliver(evt, now, batchID, &out)
			pending = append(pending, synth...)
		}
	}

	f.logger.Debug("trigger_events batch complete", "batch_id", batchID, "events_in", len(events), "actions_out", len(out))
	return out
}

// deliver fans evt out to every eligible machine and returns the synthetic
// events it produced. Signal is delivered to every machine including its
// originator; CounterZero and LimitReached are delivered only to the
// machine that produced them.
func (f *Framework) deliver(evt event.Event, now Instant, batchID string, out *[]action.Action) []event.Event {
	scoped := evt.Kind == event.CounterZero || evt.Kind == event.LimitReached

	// The framework-wide ratio denominator counts each host event once,
	// independent of how many machines it fans out to.
	if evt.Kind == event.NormalSent {
		f.globalNonpadding++
	}

	var synth []event.Event
	for mi := range f.machines {
		if scoped && mi != evt.MachineID {
			continue
		}
		rm := f.runtime[mi]
		if rm.ended() {
			continue
		}
		synth = append(synth, f.processMachineEvent(mi, evt.Kind, now, batchID, out)...)
	}
	return synth
}

func (f *Framework) processMachineEvent(mi int, evtKind event.Kind, now Instant, batchID string, out *[]action.Action) []event.Event {
	rm := f.runtime[mi]
	f.trackPacketCounters(mi, evtKind)

	m := f.machines[mi]
	st := m.State(int(rm.current))

	var idx state.Index
	var ok bool
	if st.HasFastSample() {
		f.metrics.SampleMode(true)
		idx, ok = st.SampleFast(evtKind, f.rng)
	} else {
		f.metrics.SampleMode(false)
		idx, ok = st.Sample(evtKind, f.rng)
	}
	if !ok {
		return nil
	}

	switch idx {
	case state.Signal:
		return []event.Event{event.New(event.Signal)}
	case state.End:
		f.endMachine(mi)
		return nil
	default:
		return f.enterState(mi, idx, now, batchID, out)
	}
}

// trackPacketCounters updates the per-machine packet tallies used as the
// denominator of budget fraction checks. This happens for every relevant
// event delivered to a non-ended machine, independent of whether the event
// causes a transition.
func (f *Framework) trackPacketCounters(mi int, evtKind event.Kind) {
	rm := f.runtime[mi]
	switch evtKind {
	case event.NormalSent:
		rm.normalSent++
	case event.PaddingSent:
		// padding_sent/global_padding are advanced by fireAction when an
		// action is actually scheduled, not here: a PaddingSent event
		// reports padding the host already sent (possibly from a prior
		// action), and is not itself a new scheduling decision.
	}
}

// enterState transitions mi into idx: sampled state-limit budget is
// checked and consumed, counter updates are applied, and the entered
// state's action (if any) is fired.
func (f *Framework) enterState(mi int, idx state.Index, now Instant, batchID string, out *[]action.Action) []event.Event {
	rm := f.runtime[mi]
	if rm.stateLimitRemaining == 0 {
		f.endMachine(mi)
		return nil
	}
	rm.stateLimitRemaining--
	rm.current = idx

	m := f.machines[mi]
	st := m.State(int(idx))

	synth := f.applyCounterUpdates(mi, st)
	if st.Action.Kind != 0 {
		if lr := f.fireAction(mi, st.Action, now, batchID, out); lr != nil {
			synth = append(synth, *lr)
		}
	}
	return synth
}

func (f *Framework) endMachine(mi int) {
	rm := f.runtime[mi]
	rm.current = state.End
	rm.pendingActionExpiry = nil
	rm.internalTimerExpiry = nil
	f.metrics.MachineEnded(mi)
}

// applyCounterUpdates samples and applies a state's counter updates. If any
// counter transitioned from nonzero to zero as a result, a single
// CounterZero event is returned — even when both counters (or a counter
// plus its copy target) hit zero in the same state entry.
func (f *Framework) applyCounterUpdates(mi int, st *state.State) []event.Event {
	var zeroed bool
	if st.CounterA != nil {
		zeroed = f.applyOneCounter(mi, counter.A, st.CounterA) || zeroed
	}
	if st.CounterB != nil {
		zeroed = f.applyOneCounter(mi, counter.B, st.CounterB) || zeroed
	}
	if zeroed {
		return []event.Event{event.NewFor(event.CounterZero, mi)}
	}
	return nil
}

// applyOneCounter applies upd to one counter (and, with CopyToOther, its
// sibling), reporting whether any touched counter went from nonzero to
// zero.
func (f *Framework) applyOneCounter(mi int, which counter.Which, upd *counter.Update) bool {
	rm := f.runtime[mi]
	sampled := upd.ValueDist.Sample(f.rng)
	if sampled < 0 {
		sampled = 0
	}
	sampledInt := uint64(math.Round(sampled))

	before := rm.counterValue(which)
	after := upd.Apply(before, sampledInt)
	rm.setCounterValue(which, after)
	zeroed := before != 0 && after == 0

	if upd.CopyToOther {
		other := which.Other()
		beforeOther := rm.counterValue(other)
		rm.setCounterValue(other, after)
		if beforeOther != 0 && after == 0 {
			zeroed = true
		}
	}
	return zeroed
}
