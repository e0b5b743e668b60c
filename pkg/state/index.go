package state

import "fmt"

// Index identifies a state within a machine's state sequence, or one of the
// two reserved pseudo-states a transition may target.
type Index int

const (
	// End is the reserved pseudo-state that stops a machine: current
	// becomes absorbing and no further events are delivered to it.
	End Index = -1
	// Signal is the reserved pseudo-state that, when entered, causes the
	// framework to synthesize a Signal event delivered to every machine
	// (including the one that produced it) before the next host event.
	Signal Index = -2

	// noTransition is an internal-only pseudo-target used to represent the
	// residual "do nothing" probability mass of a transition row. It is
	// never exposed outside this package.
	noTransition Index = -3
)

// Valid reports whether idx is End, Signal, or a nonnegative state
// position. It does not know the containing machine's state count; use
// Validate(numStates) for a bounds-checked version.
func (idx Index) Valid() bool {
	return idx == End || idx == Signal || idx >= 0
}

// Validate reports whether idx is End, Signal, or a state position strictly
// less than numStates.
func (idx Index) Validate(numStates int) error {
	switch idx {
	case End, Signal:
		return nil
	default:
		if idx < 0 || int(idx) >= numStates {
			return fmt.Errorf("state: invalid state index %d (have %d states)", idx, numStates)
		}
		return nil
	}
}

func (idx Index) String() string {
	switch idx {
	case End:
		return "END"
	case Signal:
		return "SIGNAL"
	default:
		return fmt.Sprintf("%d", int(idx))
	}
}
