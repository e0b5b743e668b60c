//go:build maybenot_legacy_v1

package machine

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// legacyWireDist is the v1 wire schema for a distribution: it predates the
// Start/Max clamp fields and the skew-normal kind, so it is decoded into
// the current dist.Dist shape with Start=0 and Max=maxFloat (the largest
// finite float64).
type legacyWireDist struct {
	Kind   uint8   `cbor:"k"`
	Param1 float64 `cbor:"p1"`
	Param2 float64 `cbor:"p2"`
}

func (w legacyWireDist) upgrade() wireDist {
	return wireDist{Kind: w.Kind, Param1: w.Param1, Param2: w.Param2, Start: 0, Max: maxFloat}
}

// legacyWireMachine is the v1 machine schema: three action kinds (cancel,
// send padding, block outgoing), no update-timer action, no counters, and
// transition tables keyed by the smaller v1 event set. The v1 event
// numbering is a strict prefix of the current event.Kind values, so legacy
// byte values map 1:1 onto current kinds for the events v1 actually had.
type legacyWireMachine struct {
	States                 []legacyWireState `cbor:"states"`
	AllowedPaddingPackets  uint64            `cbor:"allowed_padding_packets"`
	MaxPaddingFrac         float64           `cbor:"max_padding_frac"`
	AllowedBlockedMicrosec uint64            `cbor:"allowed_blocked_microsec"`
	MaxBlockedFrac         float64           `cbor:"max_blocked_frac"`
}

type legacyWireState struct {
	Action      legacyWireAction           `cbor:"action"`
	Transitions map[uint8][]wireTransition `cbor:"transitions"`
}

type legacyWireAction struct {
	Kind         uint8           `cbor:"kind"`
	TimeoutDist  *legacyWireDist `cbor:"timeout_dist,omitempty"`
	DurationDist *legacyWireDist `cbor:"duration_dist,omitempty"`
	LimitDist    *legacyWireDist `cbor:"limit_dist,omitempty"`
}

func (w legacyWireMachine) upgrade() wireMachine {
	out := wireMachine{
		States:                 make([]wireState, len(w.States)),
		AllowedPaddingPackets:  w.AllowedPaddingPackets,
		MaxPaddingFrac:         w.MaxPaddingFrac,
		AllowedBlockedMicrosec: w.AllowedBlockedMicrosec,
		MaxBlockedFrac:         w.MaxBlockedFrac,
	}
	for i, ls := range w.States {
		d := wireDescriptor{Kind: ls.Action.Kind}
		if ls.Action.TimeoutDist != nil {
			td := ls.Action.TimeoutDist.upgrade()
			d.TimeoutDist = &td
		}
		if ls.Action.DurationDist != nil {
			dd := ls.Action.DurationDist.upgrade()
			d.DurationDist = &dd
		}
		if ls.Action.LimitDist != nil {
			ld := ls.Action.LimitDist.upgrade()
			d.LimitDist = &ld
		}
		out.States[i] = wireState{Action: d, Transitions: ls.Transitions}
	}
	return out
}

// maxFloat stands in for the v1 format's implicit "no cap" distribution
// maximum, since v1 distributions had no explicit Max field.
const maxFloat = 1.7976931348623157e+308

func parseLegacyV1(body []byte) (*Machine, error) {
	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()

	limited := io.LimitReader(fr, MaxDecompressedSize+1)
	payload, err := io.ReadAll(limited)
	if err != nil {
		return nil, parseErr(ParseCorrupt, fmt.Errorf("inflating legacy payload: %w", err))
	}
	if len(payload) > MaxDecompressedSize {
		return nil, parseErr(ParseOversizedDecompressed, fmt.Errorf("decompressed legacy payload exceeds %d bytes", MaxDecompressedSize))
	}

	var legacy legacyWireMachine
	if err := cbor.Unmarshal(payload, &legacy); err != nil {
		return nil, parseErr(ParseCorrupt, fmt.Errorf("decoding legacy cbor: %w", err))
	}

	m, err := legacy.upgrade().toMachine()
	if err != nil {
		return nil, parseErr(ParseInvalid, err)
	}
	return m, nil
}
