package clock

import (
	"testing"
	"time"
)

func TestScheduleFiresAfterDelay(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	fired := make(chan struct{})
	s.Schedule(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestScheduleOrdersByDeadline(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var order []int
	done := make(chan struct{})

	s.Schedule(40*time.Millisecond, func() {
		order = append(order, 2)
		close(done)
	})
	s.Schedule(10*time.Millisecond, func() {
		order = append(order, 1)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timers never fired")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("fire order = %v, want [1 2]", order)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewScheduler()
	s.Stop()
	s.Stop() // must not panic
}

func TestWallTimeSecondsIsRecent(t *testing.T) {
	got := WallTimeSeconds()
	now := float64(time.Now().Unix())
	if got < now-5 || got > now+5 {
		t.Fatalf("WallTimeSeconds() = %f, too far from now (%f)", got, now)
	}
}
