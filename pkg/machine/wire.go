package machine

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"maybenot-go/maybenot/pkg/action"
	"maybenot-go/maybenot/pkg/counter"
	"maybenot-go/maybenot/pkg/dist"
	"maybenot-go/maybenot/pkg/event"
	"maybenot-go/maybenot/pkg/state"
)

// The wire* types below are the CBOR schema for a Machine's canonical
// string form. They are kept separate from the runtime types in action,
// counter, dist, and state so that those packages can evolve their
// in-memory representation without touching the wire format, and so the
// wire format can use short field names without polluting exported APIs.

type wireDist struct {
	Kind   uint8   `cbor:"k"`
	Param1 float64 `cbor:"p1"`
	Param2 float64 `cbor:"p2"`
	Start  float64 `cbor:"s"`
	Max    float64 `cbor:"m"`
}

func toWireDist(d dist.Dist) wireDist {
	return wireDist{Kind: uint8(d.Kind), Param1: d.Param1, Param2: d.Param2, Start: d.Start, Max: d.Max}
}

func (w wireDist) toDist() dist.Dist {
	return dist.Dist{Kind: dist.Kind(w.Kind), Param1: w.Param1, Param2: w.Param2, Start: w.Start, Max: w.Max}
}

type wireDescriptor struct {
	Kind                 uint8     `cbor:"k"`
	Timer                uint8     `cbor:"t,omitempty"`
	TimeoutDist          *wireDist `cbor:"td,omitempty"`
	DurationDist         *wireDist `cbor:"dd,omitempty"`
	LimitDist            *wireDist `cbor:"ld,omitempty"`
	DurationDistForTimer *wireDist `cbor:"tdt,omitempty"`
	Bypass               bool      `cbor:"by,omitempty"`
	Replace              bool      `cbor:"rp,omitempty"`
}

func toWireDescriptor(d action.Descriptor) wireDescriptor {
	w := wireDescriptor{
		Kind:    uint8(d.Kind),
		Timer:   uint8(d.Timer),
		Bypass:  d.Bypass,
		Replace: d.Replace,
	}
	switch d.Kind {
	case action.KindSendPadding:
		td := toWireDist(d.TimeoutDist)
		w.TimeoutDist = &td
		if d.HasLimitDist {
			ld := toWireDist(d.LimitDist)
			w.LimitDist = &ld
		}
	case action.KindBlockOutgoing:
		td := toWireDist(d.TimeoutDist)
		w.TimeoutDist = &td
		dd := toWireDist(d.DurationDist)
		w.DurationDist = &dd
		if d.HasLimitDist {
			ld := toWireDist(d.LimitDist)
			w.LimitDist = &ld
		}
	case action.KindUpdateTimer:
		dt := toWireDist(d.DurationDistForTimer)
		w.DurationDistForTimer = &dt
	}
	return w
}

func (w wireDescriptor) toDescriptor() action.Descriptor {
	d := action.Descriptor{
		Kind:    action.Kind(w.Kind),
		Timer:   action.Timer(w.Timer),
		Bypass:  w.Bypass,
		Replace: w.Replace,
	}
	if w.TimeoutDist != nil {
		d.TimeoutDist = w.TimeoutDist.toDist()
	}
	if w.DurationDist != nil {
		d.DurationDist = w.DurationDist.toDist()
	}
	if w.LimitDist != nil {
		d.LimitDist = w.LimitDist.toDist()
		d.HasLimitDist = true
	}
	if w.DurationDistForTimer != nil {
		d.DurationDistForTimer = w.DurationDistForTimer.toDist()
	}
	return d
}

type wireCounterUpdate struct {
	Operator    uint8    `cbor:"op"`
	ValueDist   wireDist `cbor:"vd"`
	CopyToOther bool     `cbor:"co,omitempty"`
}

func toWireCounterUpdate(u *counter.Update) *wireCounterUpdate {
	if u == nil {
		return nil
	}
	return &wireCounterUpdate{
		Operator:    uint8(u.Operator),
		ValueDist:   toWireDist(u.ValueDist),
		CopyToOther: u.CopyToOther,
	}
}

func (w *wireCounterUpdate) toCounterUpdate() *counter.Update {
	if w == nil {
		return nil
	}
	return &counter.Update{
		Operator:    counter.Operator(w.Operator),
		ValueDist:   w.ValueDist.toDist(),
		CopyToOther: w.CopyToOther,
	}
}

type wireTransition struct {
	State       int32   `cbor:"st"`
	Probability float64 `cbor:"pr"`
}

type wireState struct {
	Action      wireDescriptor             `cbor:"a"`
	CounterA    *wireCounterUpdate         `cbor:"ca,omitempty"`
	CounterB    *wireCounterUpdate         `cbor:"cb,omitempty"`
	Transitions map[uint8][]wireTransition `cbor:"tr,omitempty"`
}

func toWireState(s *state.State) wireState {
	transitions := s.AllTransitions()
	w := wireState{
		Action:      toWireDescriptor(s.Action),
		CounterA:    toWireCounterUpdate(s.CounterA),
		CounterB:    toWireCounterUpdate(s.CounterB),
		Transitions: make(map[uint8][]wireTransition, len(transitions)),
	}
	for evt, rows := range transitions {
		wrows := make([]wireTransition, len(rows))
		for i, tr := range rows {
			wrows[i] = wireTransition{State: int32(tr.State), Probability: tr.Probability}
		}
		w.Transitions[uint8(evt)] = wrows
	}
	return w
}

func (w wireState) toState() *state.State {
	transitions := make(map[event.Kind][]state.Transition, len(w.Transitions))
	for evtByte, wrows := range w.Transitions {
		rows := make([]state.Transition, len(wrows))
		for i, wt := range wrows {
			rows[i] = state.Transition{State: state.Index(wt.State), Probability: wt.Probability}
		}
		transitions[event.Kind(evtByte)] = rows
	}
	return state.New(transitions, w.Action.toDescriptor(), w.CounterA.toCounterUpdate(), w.CounterB.toCounterUpdate())
}

type wireMachine struct {
	States                 []wireState `cbor:"states"`
	AllowedPaddingPackets  uint64      `cbor:"app"`
	MaxPaddingFrac         float64     `cbor:"mpf"`
	AllowedBlockedMicrosec uint64      `cbor:"abm"`
	MaxBlockedFrac         float64     `cbor:"mbf"`
}

func toWireMachine(m *Machine) wireMachine {
	w := wireMachine{
		States:                 make([]wireState, len(m.states)),
		AllowedPaddingPackets:  m.AllowedPaddingPackets,
		MaxPaddingFrac:         m.MaxPaddingFrac,
		AllowedBlockedMicrosec: m.AllowedBlockedMicrosec,
		MaxBlockedFrac:         m.MaxBlockedFrac,
	}
	for i, st := range m.states {
		w.States[i] = toWireState(st)
	}
	return w
}

func (w wireMachine) toMachine() (*Machine, error) {
	states := make([]*state.State, len(w.States))
	for i, ws := range w.States {
		states[i] = ws.toState()
	}
	return New(states, w.AllowedPaddingPackets, w.MaxPaddingFrac, w.AllowedBlockedMicrosec, w.MaxBlockedFrac)
}

var cborEncMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("machine: building canonical cbor encoder: %v", err))
	}
	return mode
}()
