// Package ratelimit wraps a framework.Framework with a sliding-window rate
// limit applied to emitted non-Cancel actions, using a bucketed
// circular-buffer window.
package ratelimit

import (
	"time"

	"maybenot-go/maybenot/pkg/action"
	"maybenot-go/maybenot/pkg/event"
	"maybenot-go/maybenot/pkg/framework"
)

// bucketGranularity is fixed rather than configurable: the engine's window
// durations are measured in milliseconds to seconds, so a single
// fine-grained bucket size keeps the limiter accurate without a second
// tuning knob.
const bucketGranularity = time.Millisecond

// RateLimitedFramework suppresses non-Cancel actions once L of them have
// been emitted within the trailing window W. Cancel actions always pass
// through unconditionally, since dropping a cancellation would leave a
// host's timer armed with no way to un-arm it.
type RateLimitedFramework struct {
	inner *framework.Framework

	window    time.Duration
	maxPerWin int

	buckets []limiterBucket
	head    int
}

type limiterBucket struct {
	timestamp framework.Instant
	count     int
}

// New wraps fw with a sliding window of the given duration and a cap of
// maxActionsPerWindow non-Cancel actions within it. The window's advance is
// tied to the Instant passed to TriggerEvents, never to an action sequence
// number, so replaying the same (fw, events, clock) stream through a fresh
// limiter always yields the same decisions.
func New(fw *framework.Framework, window time.Duration, maxActionsPerWindow int) *RateLimitedFramework {
	numBuckets := int(window / bucketGranularity)
	if numBuckets < 1 {
		numBuckets = 1
	}
	return &RateLimitedFramework{
		inner:     fw,
		window:    window,
		maxPerWin: maxActionsPerWindow,
		buckets:   make([]limiterBucket, numBuckets),
	}
}

// TriggerEvents delegates to the wrapped Framework and then filters the
// result through the sliding window: once maxActionsPerWindow non-Cancel
// actions have been counted in the trailing window, further non-Cancel
// actions from this call are dropped. Cancel actions are never dropped and
// never count against the window.
func (r *RateLimitedFramework) TriggerEvents(events []event.Event, now framework.Instant) []action.Action {
	actions := r.inner.TriggerEvents(events, now)
	if len(actions) == 0 {
		return actions
	}

	r.prune(now)

	out := make([]action.Action, 0, len(actions))
	for _, act := range actions {
		if act.Kind == action.KindCancel {
			out = append(out, act)
			continue
		}
		if r.sum() >= r.maxPerWin {
			continue
		}
		r.add(now)
		out = append(out, act)
	}
	return out
}

func (r *RateLimitedFramework) ActionsInUse() uint64   { return r.inner.ActionsInUse() }
func (r *RateLimitedFramework) AllMachinesEnded() bool { return r.inner.AllMachinesEnded() }
func (r *RateLimitedFramework) NumMachines() int       { return r.inner.NumMachines() }

func (r *RateLimitedFramework) prune(now framework.Instant) {
	cutoff := now.Add(-r.window)
	for i := range r.buckets {
		if !r.buckets[i].timestamp.IsZero() && r.buckets[i].timestamp.Before(cutoff) {
			r.buckets[i] = limiterBucket{}
		}
	}
}

func (r *RateLimitedFramework) sum() int {
	var total int
	for _, b := range r.buckets {
		if !b.timestamp.IsZero() {
			total += b.count
		}
	}
	return total
}

func (r *RateLimitedFramework) add(now framework.Instant) {
	bucketTime := now.Truncate(bucketGranularity)
	if !r.buckets[r.head].timestamp.IsZero() && r.buckets[r.head].timestamp.Equal(bucketTime) {
		r.buckets[r.head].count++
		return
	}
	for i := range r.buckets {
		if r.buckets[i].timestamp.Equal(bucketTime) {
			r.buckets[i].count++
			r.head = i
			return
		}
	}

	target := -1
	for i := range r.buckets {
		if r.buckets[i].timestamp.IsZero() {
			target = i
			break
		}
	}
	if target == -1 {
		oldest := 0
		for i := 1; i < len(r.buckets); i++ {
			if r.buckets[i].timestamp.Before(r.buckets[oldest].timestamp) {
				oldest = i
			}
		}
		target = oldest
	}
	r.buckets[target] = limiterBucket{timestamp: bucketTime, count: 1}
	r.head = target
}
