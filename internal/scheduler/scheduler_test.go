package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		TickInterval: 10 * time.Millisecond,
		DrainTimeout: time.Second,
		Jitter:       false,
	}
}

func TestScheduler_AddRemove(t *testing.T) {
	s := New(testConfig())

	s.Add("compact-hourly", time.Hour, func(context.Context) {})
	s.Add("compact-daily", time.Hour, func(context.Context) {})

	if s.Len() != 2 {
		t.Fatalf("expected 2 jobs, got %d", s.Len())
	}

	// Duplicate name is a no-op.
	s.Add("compact-hourly", time.Minute, func(context.Context) {})
	if s.Len() != 2 {
		t.Errorf("duplicate add changed job count to %d", s.Len())
	}

	s.Remove("compact-hourly")
	if s.Len() != 1 {
		t.Errorf("expected 1 job after remove, got %d", s.Len())
	}

	// Removing an unknown name is a no-op.
	s.Remove("nope")
	if s.Len() != 1 {
		t.Errorf("unknown remove changed job count to %d", s.Len())
	}
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := New(testConfig())

	var runs atomic.Int64
	s.Add("tick", 20*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})

	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want at least 2", runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if s.JobsRun() < 2 {
		t.Errorf("JobsRun = %d, want at least 2", s.JobsRun())
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(testConfig())

	ran := make(chan struct{}, 1)
	s.Add("slow", 24*time.Hour, func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	s.Start()
	defer s.Stop()

	s.RunNow("slow")

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run after RunNow")
	}
}

func TestScheduler_StopCancelsContext(t *testing.T) {
	s := New(testConfig())

	canceled := make(chan struct{})
	s.Add("watch", 20*time.Millisecond, func(ctx context.Context) {
		select {
		case <-ctx.Done():
			close(canceled)
		case <-time.After(5 * time.Second):
		}
	})

	s.Start()

	// Give the job a chance to start, then stop.
	time.Sleep(50 * time.Millisecond)
	go s.Stop()

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("job context was not canceled on Stop")
	}
}

func TestScheduler_StopBeforeStart(t *testing.T) {
	s := New(testConfig())
	s.Stop() // must not panic or block
}
