// Package action defines what a machine schedules when it enters a state,
// and the concrete, sampled instruction returned to the host.
//
// # Overview
//
// A Descriptor is part of a machine's static definition: it says what kind
// of action a state schedules and from which distributions its timing is
// drawn, but carries no sampled values. An Action is the result of firing a
// Descriptor at a specific instant for a specific machine: a timeout (and,
// for BlockOutgoing, a duration) have been sampled, and the action is ready
// for the host to carry out.
package action

import (
	"fmt"
	"time"

	"maybenot-go/maybenot/pkg/dist"
)

// Timer identifies which of a machine's timers a Cancel action targets.
type Timer uint8

const (
	// TimerAction cancels the machine's pending scheduled action (padding
	// or blocking) only.
	TimerAction Timer = iota + 1
	// TimerInternal cancels the machine's internal timer armed by a
	// previous UpdateTimer action, leaving any pending action untouched.
	TimerInternal
	// TimerAll cancels both the action timer and the internal timer.
	TimerAll
)

func (t Timer) String() string {
	switch t {
	case TimerAction:
		return "Action"
	case TimerInternal:
		return "Internal"
	case TimerAll:
		return "All"
	default:
		return fmt.Sprintf("Timer(%d)", uint8(t))
	}
}

// Kind identifies the type of a Descriptor/Action.
type Kind uint8

const (
	KindCancel Kind = iota + 1
	KindSendPadding
	KindBlockOutgoing
	KindUpdateTimer
)

// Descriptor is the static, machine-definition-time action associated with
// a state: what to schedule if the state is entered. The zero Descriptor
// (Kind == 0) means "no action on entry to this state".
type Descriptor struct {
	Kind Kind

	// Timer is used by KindCancel only.
	Timer Timer

	// TimeoutDist is used by KindSendPadding and KindBlockOutgoing: the
	// delay before the action fires, sampled fresh every time the
	// descriptor is triggered.
	TimeoutDist dist.Dist

	// DurationDist is used by KindBlockOutgoing only: how long outgoing
	// traffic should be blocked for once the action fires.
	DurationDist dist.Dist

	// LimitDist is used by KindSendPadding and KindBlockOutgoing. When
	// present, it is sampled to produce a fresh per-state visit limit on
	// top of the machine-level budget; see the framework package for how
	// the two interact.
	LimitDist    dist.Dist
	HasLimitDist bool

	// DurationDistForTimer is used by KindUpdateTimer only: the duration
	// to arm the host's internal timer for.
	DurationDistForTimer dist.Dist

	// Bypass indicates, for SendPadding, that the padding MUST be sent
	// even if blocking is active and was itself scheduled without bypass;
	// for BlockOutgoing, that padding actions with bypass set may cross
	// this blocking. Consumed entirely by the host.
	Bypass bool

	// Replace indicates, for SendPadding/BlockOutgoing/UpdateTimer, that a
	// newly fired action of the same kind should replace (rather than be
	// dropped in favor of) any action/timer the machine already has
	// pending.
	Replace bool
}

// Validate checks that any embedded distributions are well-formed. It does
// not check cross-field consistency beyond what each Kind requires, since a
// zero Descriptor (no action) is always valid.
func (d Descriptor) Validate() error {
	switch d.Kind {
	case 0:
		return nil
	case KindCancel:
		switch d.Timer {
		case TimerAction, TimerInternal, TimerAll:
			return nil
		default:
			return fmt.Errorf("action: invalid cancel timer %d", d.Timer)
		}
	case KindSendPadding:
		if err := d.TimeoutDist.Validate(); err != nil {
			return fmt.Errorf("action: send-padding timeout: %w", err)
		}
		if d.HasLimitDist {
			if err := d.LimitDist.Validate(); err != nil {
				return fmt.Errorf("action: send-padding limit: %w", err)
			}
		}
		return nil
	case KindBlockOutgoing:
		if err := d.TimeoutDist.Validate(); err != nil {
			return fmt.Errorf("action: block-outgoing timeout: %w", err)
		}
		if err := d.DurationDist.Validate(); err != nil {
			return fmt.Errorf("action: block-outgoing duration: %w", err)
		}
		if d.HasLimitDist {
			if err := d.LimitDist.Validate(); err != nil {
				return fmt.Errorf("action: block-outgoing limit: %w", err)
			}
		}
		return nil
	case KindUpdateTimer:
		if err := d.DurationDistForTimer.Validate(); err != nil {
			return fmt.Errorf("action: update-timer duration: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("action: unknown descriptor kind %d", d.Kind)
	}
}

// Action is the sampled, concrete instruction returned to the host from a
// single TriggerEvents call.
type Action struct {
	Kind      Kind
	MachineID int

	// Timer is set for KindCancel.
	Timer Timer

	// Timeout is set for KindSendPadding and KindBlockOutgoing: delay from
	// "now" before the action should fire.
	Timeout time.Duration

	// Duration is set for KindBlockOutgoing (how long to block once fired)
	// and for KindUpdateTimer (how long to arm the internal timer for).
	Duration time.Duration

	Bypass  bool
	Replace bool
}

func (a Action) String() string {
	switch a.Kind {
	case KindCancel:
		return fmt.Sprintf("Cancel{timer=%s, machine=%d}", a.Timer, a.MachineID)
	case KindSendPadding:
		return fmt.Sprintf("SendPadding{timeout=%s, bypass=%t, replace=%t, machine=%d}", a.Timeout, a.Bypass, a.Replace, a.MachineID)
	case KindBlockOutgoing:
		return fmt.Sprintf("BlockOutgoing{timeout=%s, duration=%s, bypass=%t, replace=%t, machine=%d}", a.Timeout, a.Duration, a.Bypass, a.Replace, a.MachineID)
	case KindUpdateTimer:
		return fmt.Sprintf("UpdateTimer{duration=%s, replace=%t, machine=%d}", a.Duration, a.Replace, a.MachineID)
	default:
		return fmt.Sprintf("Action(kind=%d, machine=%d)", a.Kind, a.MachineID)
	}
}
