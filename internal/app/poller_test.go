package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeRefresher struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeRefresher) RefreshDue(context.Context) (int, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return 1, errors.New("offline")
	}
	return 1, nil
}

func TestPoll_CountsFailures(t *testing.T) {
	r := &fakeRefresher{}
	r.fail.Store(true)
	logger := zap.NewNop()

	failures := 0
	for i := 0; i < 3; i++ {
		failures = poll(context.Background(), r, failures, logger)
	}
	if failures != 3 {
		t.Fatalf("failures = %d, want 3", failures)
	}

	r.fail.Store(false)
	if got := poll(context.Background(), r, failures, logger); got != 0 {
		t.Fatalf("failures after recovery = %d, want 0", got)
	}
}

func TestPoll_CancelledContextIsNotAFailure(t *testing.T) {
	r := &fakeRefresher{}
	r.fail.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := poll(ctx, r, 2, zap.NewNop()); got != 2 {
		t.Fatalf("failures = %d, want unchanged 2", got)
	}
}

func TestStartPoller_StopsWithContext(t *testing.T) {
	r := &fakeRefresher{}
	ctx, cancel := context.WithCancel(context.Background())
	StartPoller(ctx, r, 5*time.Millisecond, nil)

	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("poller ran %d times, want at least 3", r.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	time.Sleep(20 * time.Millisecond)
	stopped := r.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if r.calls.Load() != stopped {
		t.Fatal("poller kept running after cancel")
	}
}
