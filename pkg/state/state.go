// Package state implements a single machine state: the action it schedules
// on entry, the counter updates it applies on entry, and its transition
// table mapping each event kind to a row-stochastic distribution over the
// states that may be entered next.
package state

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"maybenot-go/maybenot/pkg/action"
	"maybenot-go/maybenot/pkg/counter"
	"maybenot-go/maybenot/pkg/event"
)

// epsilon is the tolerance a transition row's probability sum is allowed to
// exceed 1.0 by, to absorb floating point rounding from machines built by
// generators or round-tripped through the serialized format.
const epsilon = 1e-9

// Transition names a candidate next state and the probability of taking it.
type Transition struct {
	State       Index
	Probability float64
}

// State is a single state of a machine.
type State struct {
	// Action is scheduled whenever the machine transitions into this
	// state. The zero Descriptor means no action.
	Action action.Descriptor

	// CounterA/CounterB describe how this state updates the machine's two
	// counters on entry. Either, both, or neither may be set.
	CounterA *counter.Update
	CounterB *counter.Update

	// transitions is intentionally sparse: an event with no entry has no
	// chance of leaving this state on that event.
	transitions map[event.Kind][]Transition

	// alias holds a precomputed Vose-alias table per event, built by
	// BuildFastSample. Nil until built; the framework falls back to
	// linear cumulative sampling when absent.
	alias map[event.Kind]*aliasTable
}

// New constructs a State from a transition table. The table is copied
// defensively. Call Validate before using a State in a Machine.
func New(transitions map[event.Kind][]Transition, act action.Descriptor, counterA, counterB *counter.Update) *State {
	cp := make(map[event.Kind][]Transition, len(transitions))
	for k, rows := range transitions {
		if len(rows) == 0 {
			continue
		}
		cpRows := make([]Transition, len(rows))
		copy(cpRows, rows)
		cp[k] = cpRows
	}
	return &State{
		Action:      act,
		CounterA:    counterA,
		CounterB:    counterB,
		transitions: cp,
	}
}

// Transitions returns the transition row for evt, or nil if this state has
// no transitions on that event.
func (s *State) Transitions(evt event.Kind) []Transition {
	return s.transitions[evt]
}

// AllTransitions returns a defensive copy of every nonempty transition row,
// keyed by event kind. Used by the machine package to serialize a state.
func (s *State) AllTransitions() map[event.Kind][]Transition {
	out := make(map[event.Kind][]Transition, len(s.transitions))
	for k, rows := range s.transitions {
		cp := make([]Transition, len(rows))
		copy(cp, rows)
		out[k] = cp
	}
	return out
}

// Validate checks that every transition row sums to at most 1+epsilon,
// references only valid state indices for a machine of numStates states,
// and that the embedded action and counter updates are themselves valid.
func (s *State) Validate(numStates int) error {
	for evt, rows := range s.transitions {
		var sum float64
		for _, tr := range rows {
			if err := tr.State.Validate(numStates); err != nil {
				return fmt.Errorf("state: event %s: %w", evt, err)
			}
			if math.IsNaN(tr.Probability) || tr.Probability < 0 {
				return fmt.Errorf("state: event %s: probability %v must be finite and nonnegative", evt, tr.Probability)
			}
			sum += tr.Probability
		}
		if sum > 1.0+epsilon {
			return fmt.Errorf("state: event %s: transition probabilities sum to %v, must be <= 1", evt, sum)
		}
	}

	if err := s.Action.Validate(); err != nil {
		return err
	}
	if s.CounterA != nil {
		if err := s.CounterA.Validate(); err != nil {
			return fmt.Errorf("state: counter A: %w", err)
		}
	}
	if s.CounterB != nil {
		if err := s.CounterB.Validate(); err != nil {
			return fmt.Errorf("state: counter B: %w", err)
		}
	}
	return nil
}

// BuildFastSample precomputes a Vose-alias table for every event this
// state has transitions for, enabling O(1) SampleFast draws. Call only
// after Validate has succeeded.
func (s *State) BuildFastSample() {
	s.alias = make(map[event.Kind]*aliasTable, len(s.transitions))
	for evt, rows := range s.transitions {
		elements := make([]Index, 0, len(rows)+1)
		weights := make([]float64, 0, len(rows)+1)
		var sum float64
		for _, tr := range rows {
			elements = append(elements, tr.State)
			weights = append(weights, tr.Probability)
			sum += tr.Probability
		}
		if sum < 1.0 {
			elements = append(elements, noTransition)
			weights = append(weights, 1.0-sum)
		}
		s.alias[evt] = newAliasTable(elements, weights)
	}
}

// HasFastSample reports whether BuildFastSample has been called.
func (s *State) HasFastSample() bool {
	return s.alias != nil
}

// Fingerprint returns a deterministic textual representation of the
// state's semantic content (action, counters, transitions) independent of
// whether BuildFastSample has been called. Used by Machine.Name to produce
// a content-addressed identifier that doesn't depend on incidental runtime
// caches.
func (s *State) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "action:%+v;counterA:%+v;counterB:%+v;transitions:", s.Action, s.CounterA, s.CounterB)
	events := make([]event.Kind, 0, len(s.transitions))
	for evt := range s.transitions {
		events = append(events, evt)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	for _, evt := range events {
		fmt.Fprintf(&b, "[%s:%v]", evt, s.transitions[evt])
	}
	return b.String()
}

// Sample draws the next state for evt using linear cumulative sampling:
// draw u in [0,1) and walk the row's cumulative sum. Returns ok=false if
// the residual ("no transition") probability mass was drawn, or if there
// is no row for evt at all.
func (s *State) Sample(evt event.Kind, rng *rand.Rand) (Index, bool) {
	rows := s.transitions[evt]
	if len(rows) == 0 {
		return 0, false
	}
	u := rng.Float64()
	var cumulative float64
	for _, tr := range rows {
		cumulative += tr.Probability
		if u < cumulative {
			return tr.State, true
		}
	}
	return 0, false
}

// SampleFast draws the next state for evt using the precomputed alias
// table. BuildFastSample must have been called, and must produce results
// distributed identically to Sample given the same rng stream — this
// equivalence is an explicit testable property of the package.
func (s *State) SampleFast(evt event.Kind, rng *rand.Rand) (Index, bool) {
	table, ok := s.alias[evt]
	if !ok {
		return 0, false
	}
	idx := table.sample(rng)
	if idx == noTransition {
		return 0, false
	}
	return idx, true
}
