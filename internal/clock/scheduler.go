// Package clock provides the wall-clock source and single-threaded timer
// scheduler the Host (spec.md §4.5, design note in §9) uses to implement
// the CDM's SetTimer/GetCurrentWallTime callbacks.
package clock

import (
	"sync"
	"time"
)

// job is a scheduled, one-shot timer callback.
type job struct {
	deadline time.Time
	fire     func()
}

// Scheduler runs scheduled jobs on a single dedicated goroutine, sleeping
// until the earliest deadline and firing everything due at wake-up —
// the model spec.md §9 describes for SetTimer. A Scheduler must be
// stopped with Stop to release its goroutine; Host does this at
// teardown.
type Scheduler struct {
	mu   sync.Mutex
	jobs []job

	wake chan struct{}
	done chan struct{}
	now  func() time.Time
}

// NewScheduler starts a Scheduler backed by the real wall clock.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		now:  time.Now,
	}
	go s.run()
	return s
}

// Schedule submits fire to run no earlier than delay from now. Firing
// happens on the scheduler's goroutine, never the caller's.
func (s *Scheduler) Schedule(delay time.Duration, fire func()) {
	s.mu.Lock()
	s.jobs = append(s.jobs, job{deadline: s.now().Add(delay), fire: fire})
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop cancels all outstanding jobs and releases the scheduler's
// goroutine. Jobs already in flight on the goroutine are not
// interrupted. Stop is idempotent.
func (s *Scheduler) Stop() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
}

func (s *Scheduler) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		case <-timer.C:
		}

		s.mu.Lock()
		now := s.now()
		var due []job
		var remaining []job
		next := time.Hour
		for _, j := range s.jobs {
			if !j.deadline.After(now) {
				due = append(due, j)
				continue
			}
			remaining = append(remaining, j)
			if d := j.deadline.Sub(now); d < next {
				next = d
			}
		}
		s.jobs = remaining
		s.mu.Unlock()

		for _, j := range due {
			j.fire()
		}
		if next <= 0 {
			next = time.Millisecond
		}
		timer.Reset(next)
	}
}

// WallTimeSeconds returns the current wall-clock time as seconds since
// the Unix epoch, double precision, matching cdm::Time.
func WallTimeSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
