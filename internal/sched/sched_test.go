package sched

import (
	"strings"
	"testing"
)

func TestDueAcrossWrap(t *testing.T) {
	if !Due(100, 100) {
		t.Fatalf("deadline now should be due")
	}
	if !Due(101, 100) {
		t.Fatalf("deadline in the past should be due")
	}
	if Due(99, 100) {
		t.Fatalf("deadline in the future should not be due")
	}
	// Deadline sits past the counter wrap.
	if Due(0xFFFFFF00, 0x100) {
		t.Fatalf("wrapped deadline fired early")
	}
	if !Due(0x101, 0x100) {
		t.Fatalf("wrapped deadline never fired")
	}
	if !Due(0x0, 0xFFFFFF00) {
		t.Fatalf("post-wrap now should see the pre-wrap deadline as due")
	}
}

func TestFiresAtDeadline(t *testing.T) {
	var now uint32
	log := []string{}
	s := New(func() uint32 { return now }, func(a Action) {
		log = append(log, a.Name+" "+strings.Join(a.Args, " "))
	})

	s.Arm(Action{Name: "wave", Args: []string{"3"}}, 800)
	if s.State != Armed {
		t.Fatalf("expected armed, got %v", s.State)
	}

	now = 799
	s.Tick()
	if len(log) != 0 {
		t.Fatalf("fired %v before the deadline", log)
	}

	now = 800
	s.Tick()
	if len(log) != 1 || log[0] != "wave 3" {
		t.Fatalf("unexpected log %v", log)
	}
	if s.State != Idle {
		t.Fatalf("expected idle after firing, got %v", s.State)
	}

	s.Tick()
	if len(log) != 1 {
		t.Fatalf("fired twice: %v", log)
	}
}

func TestLastScheduleWins(t *testing.T) {
	var now uint32
	log := []string{}
	s := New(func() uint32 { return now }, func(a Action) {
		log = append(log, a.Name)
	})

	s.Arm(Action{Name: "wave"}, 100)
	now = 50
	s.Arm(Action{Name: "stop"}, 100)

	now = 120
	s.Tick()
	if len(log) != 0 {
		t.Fatalf("first schedule should have been replaced, got %v", log)
	}

	now = 150
	s.Tick()
	if len(log) != 1 || log[0] != "stop" {
		t.Fatalf("expected the replacement to fire, got %v", log)
	}
}

func TestFiresAcrossCounterWrap(t *testing.T) {
	now := ^uint32(0) - 100
	fired := 0
	s := New(func() uint32 { return now }, func(Action) { fired++ })

	// Deadline lands at 199, on the far side of the wrap.
	s.Arm(Action{Name: "wave"}, 300)
	now = ^uint32(0)
	s.Tick()
	if fired != 0 {
		t.Fatalf("fired before the wrapped deadline")
	}

	now = 200
	s.Tick()
	if fired != 1 {
		t.Fatalf("wrapped deadline fired %d times", fired)
	}
	s.Tick()
	if fired != 1 {
		t.Fatalf("fired again after the wrap")
	}
}

func TestDisarmDropsPending(t *testing.T) {
	var now uint32
	fired := 0
	s := New(func() uint32 { return now }, func(Action) { fired++ })

	s.Arm(Action{Name: "wave"}, 10)
	s.Disarm()
	now = 100
	s.Tick()
	if fired != 0 {
		t.Fatalf("disarmed action fired")
	}
	if _, _, ok := s.Pending(); ok {
		t.Fatalf("pending after disarm")
	}
}

func TestPendingReportsRemaining(t *testing.T) {
	var now uint32 = 1000
	s := New(func() uint32 { return now }, nil)

	s.Arm(Action{Name: "row0"}, 500)
	now = 1200
	a, left, ok := s.Pending()
	if !ok || a.Name != "row0" {
		t.Fatalf("pending lost: %v %v", a, ok)
	}
	if left != 300 {
		t.Fatalf("expected 300ms left, got %d", left)
	}
}

func TestActionMayRearm(t *testing.T) {
	var now uint32
	log := []string{}
	var s *Scheduler
	s = New(func() uint32 { return now }, func(a Action) {
		log = append(log, a.Name)
		if a.Name == "first" {
			s.Arm(Action{Name: "second"}, 10)
		}
	})

	s.Arm(Action{Name: "first"}, 10)
	now = 10
	s.Tick()
	if s.State != Armed {
		t.Fatalf("re-arm inside the hook was lost")
	}
	now = 20
	s.Tick()
	want := []string{"first", "second"}
	if len(log) != 2 || log[0] != want[0] || log[1] != want[1] {
		t.Fatalf("unexpected log %v", log)
	}
}
