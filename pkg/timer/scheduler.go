// Package timer provides an explicit, min-heap-backed deadline scheduler
// for T200. It is poll-driven by design -- no goroutines, no hidden
// globals, nothing fires on its own thread -- so a caller controls
// exactly when callbacks run by calling Advance. NextDeadline/Advance are
// O(log n) via container/heap rather than a linear scan over pending
// timers.
package timer

import (
	"container/heap"
	"time"
)

// Timer is a handle to a scheduled callback. The zero value is not usable;
// obtain one from Scheduler.After or Scheduler.Schedule.
type Timer struct {
	deadline time.Time
	cb       func()
	index    int // position in the heap, -1 when not queued
	active   bool
}

// Pending reports whether the timer is still queued and has not fired or
// been cancelled. Safe to call at any time (§5 "Cancellation").
func (t *Timer) Pending() bool {
	return t.active
}

// Deadline returns the absolute time the timer is set to fire.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler owns a set of pending timers. A Scheduler is not safe for
// concurrent use -- like the rest of this module it is meant to be driven
// from a single cooperative loop (§5).
type Scheduler struct {
	h timerHeap
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Schedule arms a timer to fire at the given absolute deadline, calling cb
// when Advance observes that the deadline has passed. Every call returns a
// new Timer; use Restart to re-arm an existing one (T200 restart).
func (s *Scheduler) Schedule(deadline time.Time, cb func()) *Timer {
	t := &Timer{deadline: deadline, cb: cb, active: true, index: -1}
	heap.Push(&s.h, t)
	return t
}

// After is Schedule relative to now.
func (s *Scheduler) After(d time.Duration, cb func()) *Timer {
	return s.Schedule(time.Now().Add(d), cb)
}

// Restart re-arms an existing timer at a new relative deadline, equivalent
// to Cancel followed by After but without reallocating a handle -- this is
// what T200 restart/resend does on every retransmission.
func (s *Scheduler) Restart(t *Timer, d time.Duration) {
	s.Cancel(t)
	t.deadline = time.Now().Add(d)
	t.active = true
	heap.Push(&s.h, t)
}

// Cancel removes a timer if it is still pending. Idempotent: cancelling an
// already-fired or already-cancelled timer is a no-op (§5 "Cancellation").
func (s *Scheduler) Cancel(t *Timer) {
	if !t.active || t.index < 0 {
		t.active = false
		return
	}
	heap.Remove(&s.h, t.index)
	t.active = false
}

// NextDeadline reports the deadline of the soonest-firing pending timer,
// the way osmo_timers_nearest reports the next select() timeout.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	if len(s.h) == 0 {
		return time.Time{}, false
	}
	return s.h[0].deadline, true
}

// Advance fires every timer whose deadline is at or before now, in
// deadline order, and returns how many fired. A callback is free to
// schedule new timers (including re-arming itself); those are only
// considered on a later Advance call, mirroring osmo_timers_update's
// restart-from-head handling of concurrent list mutation.
func (s *Scheduler) Advance(now time.Time) int {
	var due []*Timer
	for len(s.h) > 0 && !s.h[0].deadline.After(now) {
		due = append(due, heap.Pop(&s.h).(*Timer))
	}
	fired := 0
	for _, t := range due {
		// skip a due timer an earlier callback cancelled or re-armed
		if !t.active || t.index >= 0 {
			continue
		}
		t.active = false
		if t.cb != nil {
			t.cb()
		}
		fired++
	}
	return fired
}

// Len reports how many timers are currently pending.
func (s *Scheduler) Len() int {
	return len(s.h)
}
