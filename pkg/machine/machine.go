// Package machine implements validated, serializable bundles of states that
// together define a probabilistic state machine, plus the per-machine
// padding/blocking budgets enforced by the framework.
package machine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"maybenot-go/maybenot/pkg/state"
)

// Machine is a validated, immutable bundle of states plus the budgets the
// framework enforces for it. Construct via New; a Machine obtained from New
// or Parse has already passed validation and may be shared read-only
// across multiple Framework instances.
type Machine struct {
	states []*state.State

	AllowedPaddingPackets  uint64
	MaxPaddingFrac         float64
	AllowedBlockedMicrosec uint64
	MaxBlockedFrac         float64
}

// New validates and constructs a Machine. States are not copied, but the
// returned Machine owns them from this point on — callers must not mutate
// the supplied slice or its *State elements afterward.
func New(states []*state.State, allowedPaddingPackets uint64, maxPaddingFrac float64, allowedBlockedMicrosec uint64, maxBlockedFrac float64) (*Machine, error) {
	m := &Machine{
		states:                 states,
		AllowedPaddingPackets:  allowedPaddingPackets,
		MaxPaddingFrac:         maxPaddingFrac,
		AllowedBlockedMicrosec: allowedBlockedMicrosec,
		MaxBlockedFrac:         maxBlockedFrac,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the aggregate machine invariants plus every contained
// state. It is called automatically by New and Parse; exported so a host
// that mutates a Machine's states directly (discouraged, but the type does
// not prevent it) can re-check before use.
func (m *Machine) Validate() error {
	if len(m.states) == 0 {
		return &InvalidMachineError{Reason: "a machine must have at least one state"}
	}
	if len(m.states) > StateMax {
		return &InvalidMachineError{Reason: fmt.Sprintf("too many states: max is %d, found %d", StateMax, len(m.states))}
	}
	if m.MaxPaddingFrac < 0 || m.MaxPaddingFrac > 1 {
		return &InvalidMachineError{Reason: fmt.Sprintf("max_padding_frac must be in [0,1], got %v", m.MaxPaddingFrac)}
	}
	if m.MaxBlockedFrac < 0 || m.MaxBlockedFrac > 1 {
		return &InvalidMachineError{Reason: fmt.Sprintf("max_blocking_frac must be in [0,1], got %v", m.MaxBlockedFrac)}
	}
	for i, st := range m.states {
		if err := st.Validate(len(m.states)); err != nil {
			return &InvalidStateError{Index: i, Reason: err}
		}
	}
	return nil
}

// NumStates returns the number of states in the machine.
func (m *Machine) NumStates() int {
	return len(m.states)
}

// State returns the state at idx. Panics if idx is out of range; callers
// are expected to only pass indices already bounds-checked by Validate
// (the framework never constructs a Machine without validating it first).
func (m *Machine) State(idx int) *state.State {
	return m.states[idx]
}

// BuildFastSample precomputes alias tables for every state in the machine,
// enabling the framework to use O(1) sampling instead of linear cumulative
// sampling.
func (m *Machine) BuildFastSample() {
	for _, st := range m.states {
		st.BuildFastSample()
	}
}

// Name returns a deterministic, content-addressed identifier for the
// machine: the lowercase hex SHA-256 digest of its budgets and the stable
// textual form of each state in order. Two machines with the same Name are
// guaranteed to behave identically; the converse is not guaranteed (it is
// a hash, not a semantic equality check).
func (m *Machine) Name() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%v|%d|%v", m.AllowedPaddingPackets, m.MaxPaddingFrac, m.AllowedBlockedMicrosec, m.MaxBlockedFrac)
	for _, st := range m.states {
		fmt.Fprintf(h, "|%s", st.Fingerprint())
	}
	return hex.EncodeToString(h.Sum(nil))
}
