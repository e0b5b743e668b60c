package framework

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"maybenot-go/maybenot/pkg/action"
	"maybenot-go/maybenot/pkg/counter"
	"maybenot-go/maybenot/pkg/dist"
	"maybenot-go/maybenot/pkg/event"
	"maybenot-go/maybenot/pkg/machine"
	"maybenot-go/maybenot/pkg/state"
)

func mustMachine(t *testing.T, states []*state.State, allowedPadding uint64, maxPaddingFrac float64, allowedBlocked uint64, maxBlockedFrac float64) *machine.Machine {
	t.Helper()
	m, err := machine.New(states, allowedPadding, maxPaddingFrac, allowedBlocked, maxBlockedFrac)
	if err != nil {
		t.Fatalf("machine.New: %v", err)
	}
	return m
}

func constDist(microsec float64) dist.Dist {
	return dist.Dist{Kind: dist.Uniform, Param1: microsec, Param2: microsec, Start: 0, Max: microsec}
}

// S1: a machine with one state and no transitions never schedules anything.
func TestS1_NoOpMachine(t *testing.T) {
	s0 := state.New(nil, action.Descriptor{}, nil, nil)
	m := mustMachine(t, []*state.State{s0}, 0, 0, 0, 0)

	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 0, 0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := fw.TriggerEvents([]event.Event{event.New(event.NormalSent)}, now)
	if len(got) != 0 {
		t.Fatalf("expected no actions, got %v", got)
	}
}

// S2: S0 --NormalSent@1.0--> S1, S1 schedules SendPadding{timeout=20ms}.
func TestS2_PaddingAfterFirstNormalSent(t *testing.T) {
	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalSent: {{State: state.Index(1), Probability: 1.0}},
	}, action.Descriptor{}, nil, nil)
	s1 := state.New(nil, action.Descriptor{
		Kind:        action.KindSendPadding,
		TimeoutDist: constDist(20_000), // 20ms in microseconds
	}, nil, nil)
	m := mustMachine(t, []*state.State{s0, s1}, 1000, 1.0, 0, 0)

	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 1.0, 1.0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := fw.TriggerEvents([]event.Event{event.New(event.NormalSent)}, now)
	if len(got) != 1 {
		t.Fatalf("expected exactly one action, got %v", got)
	}
	want := action.Action{Kind: action.KindSendPadding, MachineID: 0, Timeout: 20 * time.Millisecond}
	if got[0] != want {
		t.Fatalf("got %+v, want %+v", got[0], want)
	}
}

// S3: counter A is charged to 2 on entry to state 1, then decremented by 1
// on every subsequent PaddingQueued self-loop in state 2; once it reaches
// zero, a CounterZero event is internally delivered and state 2's
// CounterZero -> END transition ends the machine before the next host
// event is considered.
func TestS3_CounterZeroEndsTheMachine(t *testing.T) {
	unitDist := dist.Dist{Kind: dist.Uniform, Param1: 1, Param2: 1, Max: 1}
	twoDist := dist.Dist{Kind: dist.Uniform, Param1: 2, Param2: 2, Max: 2}

	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalQueued: {{State: state.Index(1), Probability: 1.0}},
	}, action.Descriptor{}, nil, nil)
	s1 := state.New(map[event.Kind][]state.Transition{
		event.PaddingQueued: {{State: state.Index(2), Probability: 1.0}},
	}, action.Descriptor{}, &counter.Update{Operator: counter.Set, ValueDist: twoDist}, nil)
	s2 := state.New(map[event.Kind][]state.Transition{
		event.PaddingQueued: {{State: state.Index(2), Probability: 1.0}},
		event.CounterZero:   {{State: state.End, Probability: 1.0}},
	}, action.Descriptor{}, &counter.Update{Operator: counter.Decrement, ValueDist: unitDist}, nil)
	m := mustMachine(t, []*state.State{s0, s1, s2}, 0, 0, 0, 0)

	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 0, 0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fw.TriggerEvents([]event.Event{event.New(event.NormalQueued)}, now)  // -> state 1, counter A = 2
	fw.TriggerEvents([]event.Event{event.New(event.PaddingQueued)}, now) // -> state 2, counter A = 1
	if fw.AllMachinesEnded() {
		t.Fatal("machine ended too early")
	}
	got := fw.TriggerEvents([]event.Event{event.New(event.PaddingQueued)}, now) // counter A: 1 -> 0, CounterZero -> END
	if len(got) != 0 {
		t.Fatalf("expected no actions, got %v", got)
	}
	if !fw.AllMachinesEnded() {
		t.Fatal("expected machine to have reached END after CounterZero")
	}
}

// A state entry that zeroes both counters at once queues exactly one
// CounterZero event. State 3 transitions away on the first CounterZero and
// would be ended by a second one; the machine surviving proves the
// simultaneous zeroing collapsed to a single event.
func TestCounterZero_BothCountersOneEvent(t *testing.T) {
	unitDist := dist.Dist{Kind: dist.Uniform, Param1: 1, Param2: 1, Max: 1}

	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalQueued: {{State: state.Index(1), Probability: 1.0}},
	}, action.Descriptor{}, nil, nil)
	s1 := state.New(map[event.Kind][]state.Transition{
		event.PaddingQueued: {{State: state.Index(2), Probability: 1.0}},
	}, action.Descriptor{},
		&counter.Update{Operator: counter.Set, ValueDist: unitDist},
		&counter.Update{Operator: counter.Set, ValueDist: unitDist})
	s2 := state.New(map[event.Kind][]state.Transition{
		event.CounterZero: {{State: state.Index(3), Probability: 1.0}},
	}, action.Descriptor{},
		&counter.Update{Operator: counter.Decrement, ValueDist: unitDist},
		&counter.Update{Operator: counter.Decrement, ValueDist: unitDist})
	s3 := state.New(map[event.Kind][]state.Transition{
		event.CounterZero: {{State: state.End, Probability: 1.0}},
	}, action.Descriptor{}, nil, nil)
	m := mustMachine(t, []*state.State{s0, s1, s2, s3}, 0, 0, 0, 0)

	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 0, 0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fw.TriggerEvents([]event.Event{event.New(event.NormalQueued)}, now)  // -> state 1, A=B=1
	fw.TriggerEvents([]event.Event{event.New(event.PaddingQueued)}, now) // -> state 2, both counters 1 -> 0
	if fw.AllMachinesEnded() {
		t.Fatal("two CounterZero events were delivered for one simultaneous zeroing")
	}
	if fw.runtime[0].current != state.Index(3) {
		t.Fatalf("expected exactly one CounterZero to move the machine to state 3, got state %v", fw.runtime[0].current)
	}
}

// S4: budget saturation. allowed_padding_packets=3, max_padding_frac=0.0, so
// once 3 padding actions have been scheduled, the 4th attempt is suppressed
// and a LimitReached event is synthesized and observably delivered.
func TestS4_BudgetSaturation(t *testing.T) {
	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalSent:   {{State: state.Index(0), Probability: 1.0}},
		event.LimitReached: {{State: state.Index(1), Probability: 1.0}},
	}, action.Descriptor{
		Kind:        action.KindSendPadding,
		TimeoutDist: constDist(1_000),
		Replace:     true,
	}, nil, nil)
	s1 := state.New(nil, action.Descriptor{}, nil, nil)
	m := mustMachine(t, []*state.State{s0, s1}, 3, 0.0, 0, 0)

	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 1.0, 1.0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var total []action.Action
	for i := 0; i < 4; i++ {
		total = append(total, fw.TriggerEvents([]event.Event{event.New(event.NormalSent)}, now)...)
	}
	padCount := 0
	for _, a := range total {
		if a.Kind == action.KindSendPadding {
			padCount++
		}
	}
	if padCount != 3 {
		t.Fatalf("expected exactly 3 padding actions to have been scheduled, got %d (%v)", padCount, total)
	}
	if fw.runtime[0].current != state.Index(1) {
		t.Fatalf("expected machine to have transitioned to state 1 via LimitReached, got state %v", fw.runtime[0].current)
	}
}

// S5: two consecutive NormalSent events each trigger SendPadding{replace:
// true, timeout=10ms}; only the second action's timer should be the one the
// machine remembers (pendingActionExpiry reflects the later call).
func TestS5_ReplaceTimer(t *testing.T) {
	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalSent: {{State: state.Index(0), Probability: 1.0}},
	}, action.Descriptor{
		Kind:        action.KindSendPadding,
		TimeoutDist: constDist(10_000),
		Replace:     true,
	}, nil, nil)
	m := mustMachine(t, []*state.State{s0}, 1000, 1.0, 0, 0)

	t0 := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 1.0, 1.0, t0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t1 := t0.Add(5 * time.Millisecond)
	got1 := fw.TriggerEvents([]event.Event{event.New(event.NormalSent)}, t0)
	got2 := fw.TriggerEvents([]event.Event{event.New(event.NormalSent)}, t1)
	if len(got1) != 1 || len(got2) != 1 {
		t.Fatalf("expected one action per call, got %v and %v", got1, got2)
	}

	wantExpiry := t1.Add(10 * time.Millisecond)
	if fw.runtime[0].pendingActionExpiry == nil || !fw.runtime[0].pendingActionExpiry.Equal(wantExpiry) {
		t.Fatalf("expected pending expiry %v, got %v", wantExpiry, fw.runtime[0].pendingActionExpiry)
	}
}

func TestTriggerEvents_EmptyIsIdempotent(t *testing.T) {
	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalSent: {{State: state.Index(0), Probability: 1.0}},
	}, action.Descriptor{Kind: action.KindSendPadding, TimeoutDist: constDist(1000)}, nil, nil)
	m := mustMachine(t, []*state.State{s0}, 1000, 1.0, 0, 0)
	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 1.0, 1.0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := *fw.runtime[0]
	got := fw.TriggerEvents(nil, now)
	if len(got) != 0 {
		t.Fatalf("expected no actions for an empty batch, got %v", got)
	}
	after := *fw.runtime[0]
	if before != after {
		t.Fatalf("empty batch mutated runtime state: before=%+v after=%+v", before, after)
	}
}

func TestTriggerEvents_AtMostOneActionPerMachinePerEvent(t *testing.T) {
	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalSent: {{State: state.Index(0), Probability: 1.0}},
	}, action.Descriptor{Kind: action.KindSendPadding, TimeoutDist: constDist(1000), Replace: true}, nil, nil)
	m := mustMachine(t, []*state.State{s0}, 1_000_000, 1.0, 0, 0)
	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 1.0, 1.0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := fw.TriggerEvents([]event.Event{event.New(event.NormalSent), event.New(event.NormalSent), event.New(event.NormalSent)}, now)
	if len(got) != 3 {
		t.Fatalf("expected one action per event (3 total), got %d: %v", len(got), got)
	}
}

func TestDeterminism_SameSeedSameStream(t *testing.T) {
	build := func() *Framework {
		s0 := state.New(map[event.Kind][]state.Transition{
			event.NormalSent: {{State: state.Index(1), Probability: 0.5}},
		}, action.Descriptor{}, nil, nil)
		s1 := state.New(map[event.Kind][]state.Transition{
			event.PaddingSent: {{State: state.Index(0), Probability: 1.0}},
		}, action.Descriptor{Kind: action.KindSendPadding, TimeoutDist: dist.Dist{Kind: dist.Uniform, Param1: 0, Param2: 50_000, Max: 50_000}}, nil, nil)
		m := mustMachine(t, []*state.State{s0, s1}, 1000, 1.0, 0, 0)
		fw, err := New([]*machine.Machine{m}, 1.0, 1.0, time.Unix(0, 0), rand.New(rand.NewSource(42)))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return fw
	}

	events := make([]event.Event, 0, 40)
	for i := 0; i < 20; i++ {
		events = append(events, event.New(event.NormalSent), event.New(event.PaddingSent))
	}

	fw1 := build()
	fw2 := build()
	now := time.Unix(0, 0)
	out1 := fw1.TriggerEvents(events, now)
	out2 := fw2.TriggerEvents(events, now)
	if !reflect.DeepEqual(out1, out2) {
		t.Fatalf("identical seed/stream produced different outputs:\n%+v\n%+v", out1, out2)
	}
}

func TestActionsInUse_ReflectsPendingTimers(t *testing.T) {
	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalSent: {{State: state.Index(0), Probability: 1.0}},
	}, action.Descriptor{Kind: action.KindSendPadding, TimeoutDist: constDist(1000)}, nil, nil)
	m := mustMachine(t, []*state.State{s0}, 1000, 1.0, 0, 0)
	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 1.0, 1.0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if fw.ActionsInUse() != 0 {
		t.Fatalf("expected zero actions in use before any event")
	}
	fw.TriggerEvents([]event.Event{event.New(event.NormalSent)}, now)
	if fw.ActionsInUse() != 1 {
		t.Fatalf("expected one action in use after scheduling padding, got %d", fw.ActionsInUse())
	}
}

// A machine transitioning to the SIGNAL pseudo-state causes a Signal event
// to be delivered to every machine, including machines later in
// construction order, within the same TriggerEvents call.
func TestSignal_FansOutToAllMachines(t *testing.T) {
	signaler := state.New(map[event.Kind][]state.Transition{
		event.NormalSent: {{State: state.Signal, Probability: 1.0}},
	}, action.Descriptor{}, nil, nil)
	m0 := mustMachine(t, []*state.State{signaler}, 0, 0, 0, 0)

	listener0 := state.New(map[event.Kind][]state.Transition{
		event.Signal: {{State: state.Index(1), Probability: 1.0}},
	}, action.Descriptor{}, nil, nil)
	listener1 := state.New(nil, action.Descriptor{
		Kind:        action.KindSendPadding,
		TimeoutDist: constDist(1_000),
	}, nil, nil)
	m1 := mustMachine(t, []*state.State{listener0, listener1}, 1000, 1.0, 0, 0)

	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m0, m1}, 1.0, 1.0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := fw.TriggerEvents([]event.Event{event.New(event.NormalSent)}, now)
	if len(got) != 1 || got[0].Kind != action.KindSendPadding || got[0].MachineID != 1 {
		t.Fatalf("expected machine 1 to schedule padding off the Signal, got %v", got)
	}
}

func TestUpdateTimer_ThenCancelClearsIt(t *testing.T) {
	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalSent: {{State: state.Index(1), Probability: 1.0}},
	}, action.Descriptor{}, nil, nil)
	s1 := state.New(map[event.Kind][]state.Transition{
		event.TimerEnd: {{State: state.Index(2), Probability: 1.0}},
	}, action.Descriptor{
		Kind:                 action.KindUpdateTimer,
		DurationDistForTimer: constDist(5_000),
		Replace:              true,
	}, nil, nil)
	s2 := state.New(nil, action.Descriptor{Kind: action.KindCancel, Timer: action.TimerAll}, nil, nil)
	m := mustMachine(t, []*state.State{s0, s1, s2}, 0, 0, 0, 0)

	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 1.0, 1.0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := fw.TriggerEvents([]event.Event{event.New(event.NormalSent)}, now)
	if len(got) != 1 || got[0].Kind != action.KindUpdateTimer || got[0].Duration != 5*time.Millisecond {
		t.Fatalf("expected an UpdateTimer action with a 5ms duration, got %v", got)
	}
	if fw.runtime[0].internalTimerExpiry == nil {
		t.Fatal("expected the internal timer expiry to be tracked")
	}

	got = fw.TriggerEvents([]event.Event{event.New(event.TimerEnd)}, now.Add(5*time.Millisecond))
	if len(got) != 1 || got[0].Kind != action.KindCancel || got[0].Timer != action.TimerAll {
		t.Fatalf("expected a Cancel{All} action, got %v", got)
	}
	if fw.runtime[0].internalTimerExpiry != nil {
		t.Fatal("expected Cancel{All} to forget the internal timer expiry")
	}
}

// A framework-wide padding fraction of zero disables the global ratio
// check entirely; it does not suppress every padding action.
func TestGlobalZeroFraction_DisablesGlobalCap(t *testing.T) {
	s0 := state.New(map[event.Kind][]state.Transition{
		event.NormalSent: {{State: state.Index(0), Probability: 1.0}},
	}, action.Descriptor{Kind: action.KindSendPadding, TimeoutDist: constDist(1000), Replace: true}, nil, nil)
	m := mustMachine(t, []*state.State{s0}, 1000, 1.0, 0, 0)

	now := time.Unix(0, 0)
	fw, err := New([]*machine.Machine{m}, 0, 0, now, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := fw.TriggerEvents([]event.Event{event.New(event.NormalSent)}, now)
	if len(got) != 1 || got[0].Kind != action.KindSendPadding {
		t.Fatalf("expected the padding action to be scheduled under a zero global fraction, got %v", got)
	}
}

func TestNew_RejectsBadFraction(t *testing.T) {
	s0 := state.New(nil, action.Descriptor{}, nil, nil)
	m := mustMachine(t, []*state.State{s0}, 0, 0, 0, 0)
	_, err := New([]*machine.Machine{m}, 1.5, 0, time.Unix(0, 0), rand.New(rand.NewSource(1)))
	if err == nil {
		t.Fatal("expected an error for max_padding_frac > 1")
	}
}
