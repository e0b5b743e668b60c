// Package counter defines the per-machine counter update descriptors.
//
// Each machine carries exactly two counters, A and B. A state may specify
// an update to either or both on entry; the update samples a value from a
// distribution and applies it with saturating arithmetic. If a counter
// transitions from nonzero to zero as a result, the framework synthesizes a
// CounterZero event scoped to the owning machine.
package counter

import (
	"fmt"

	"maybenot-go/maybenot/pkg/dist"
)

// Which identifies one of a machine's two counters.
type Which uint8

const (
	A Which = iota + 1
	B
)

func (w Which) String() string {
	switch w {
	case A:
		return "A"
	case B:
		return "B"
	default:
		return fmt.Sprintf("Which(%d)", uint8(w))
	}
}

// Other returns the counter that is not w.
func (w Which) Other() Which {
	if w == A {
		return B
	}
	return A
}

// Operator is the arithmetic applied to a counter by an Update.
type Operator uint8

const (
	Set Operator = iota + 1
	Increment
	Decrement
)

func (op Operator) String() string {
	switch op {
	case Set:
		return "Set"
	case Increment:
		return "Increment"
	case Decrement:
		return "Decrement"
	default:
		return fmt.Sprintf("Operator(%d)", uint8(op))
	}
}

// Update describes how a state updates one of its machine's counters on
// entry: which arithmetic operator, a distribution to sample the operand
// from, and whether the sampled (post-update) value should also be mirrored
// into the other counter.
type Update struct {
	Operator    Operator
	ValueDist   dist.Dist
	CopyToOther bool
}

// Validate checks that the embedded distribution is well-formed and the
// operator is one of the defined constants.
func (u Update) Validate() error {
	switch u.Operator {
	case Set, Increment, Decrement:
	default:
		return fmt.Errorf("counter: invalid operator %d", u.Operator)
	}
	if err := u.ValueDist.Validate(); err != nil {
		return fmt.Errorf("counter: value distribution: %w", err)
	}
	return nil
}

// Apply applies u to current using saturating u64 arithmetic and returns
// the new value. It does not itself decide whether to mirror the result
// into the other counter; callers (the framework) do that using
// u.CopyToOther.
func (u Update) Apply(current uint64, sampled uint64) uint64 {
	switch u.Operator {
	case Set:
		return sampled
	case Increment:
		sum := current + sampled
		if sum < current {
			return ^uint64(0)
		}
		return sum
	case Decrement:
		if sampled > current {
			return 0
		}
		return current - sampled
	default:
		return current
	}
}
