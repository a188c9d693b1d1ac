// Package sched defers a single command invocation to a millisecond
// deadline, the way the controller arms synchronized effect starts
// across boards.
package sched

import "time"

// Clock returns milliseconds on a free-running wrapping counter.
type Clock func() uint32

// Millis returns a Clock counting from now, wrapping like a 32 bit
// hardware millisecond counter does after about 49 days.
func Millis() Clock {
	start := time.Now()
	return func() uint32 {
		return uint32(time.Since(start).Milliseconds())
	}
}

// Due reports whether a deadline on a wrapping clock has passed. The
// signed difference keeps the comparison correct across the wrap as
// long as the span is under half the counter range.
func Due(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}

// State enumerates scheduler states.
type State string

const (
	Idle  State = "idle"
	Armed State = "armed"
)

// Action is a deferred command invocation, replayed through the same
// dispatch the serial port feeds.
type Action struct {
	Name string
	Args []string
}

// Scheduler holds at most one pending Action. Arming again before the
// deadline simply replaces the old action; the newest schedule wins.
type Scheduler struct {
	State State

	clock    Clock
	fire     func(Action)
	pending  Action
	deadline uint32
}

// New constructs an idle Scheduler over a clock, firing actions into
// the given hook.
func New(clock Clock, fire func(Action)) *Scheduler {
	return &Scheduler{
		State: Idle,
		clock: clock,
		fire:  fire,
	}
}

// Arm schedules an action delayMS from now, replacing any pending one.
func (s *Scheduler) Arm(a Action, delayMS uint32) {
	s.pending = a
	s.deadline = s.clock() + delayMS
	s.State = Armed
}

// Disarm drops the pending action.
func (s *Scheduler) Disarm() {
	s.State = Idle
	s.pending = Action{}
}

// Pending returns the pending action and the milliseconds left before
// it fires. The bool is false when nothing is armed.
func (s *Scheduler) Pending() (Action, uint32, bool) {
	if s.State != Armed {
		return Action{}, 0, false
	}
	now := s.clock()
	if Due(now, s.deadline) {
		return s.pending, 0, true
	}
	return s.pending, s.deadline - now, true
}

// Tick fires the pending action once its deadline passes. The
// scheduler disarms before firing, so an action is free to arm the
// next one.
func (s *Scheduler) Tick() {
	if s.State != Armed {
		return
	}
	if !Due(s.clock(), s.deadline) {
		return
	}
	a := s.pending
	s.Disarm()
	if s.fire != nil {
		s.fire(a)
	}
}
