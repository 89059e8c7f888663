package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
)

func newTestScheduler() *Scheduler {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunTick_SkipsWhileInFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	rt := &runningTask{Task: Task{
		Name: "probe",
		Fn: func(ctx context.Context) error {
			calls.Add(1)
			<-release
			return nil
		},
	}}
	s := newTestScheduler()

	done := make(chan struct{})
	go func() {
		s.runTick(rt)
		close(done)
	}()

	for !rt.inFlight.Load() {
	}
	s.runTick(rt)
	close(release)
	<-done

	if got := calls.Load(); got != 1 {
		t.Errorf("Fn called %d times, want 1 (second tick should have been skipped)", got)
	}
}

func TestRunTick_ClearsInFlightAfterFailure(t *testing.T) {
	rt := &runningTask{Task: Task{
		Name: "feed",
		Fn:   func(ctx context.Context) error { return errors.New("boom") },
	}}
	s := newTestScheduler()

	s.runTick(rt)

	if rt.inFlight.Load() {
		t.Errorf("expected inFlight cleared after a failed run")
	}
}

func TestRegister_RejectsInvalidSpec(t *testing.T) {
	s := newTestScheduler()
	err := s.Register(Task{Name: "bad", Spec: "not a cron spec", Fn: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}
