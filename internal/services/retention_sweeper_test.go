package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-delivery/internal/data/repos/testutil"
)

type sweepCounter struct {
	DeliveryService
	calls atomic.Int32
	fail  bool
}

func (s *sweepCounter) ExpireOverdueChecks(ctx context.Context, now time.Time) (int64, error) {
	s.calls.Add(1)
	if s.fail {
		return 0, errors.New("db down")
	}
	return 0, nil
}

func TestRetentionSweeperRunsUntilCancelled(t *testing.T) {
	for _, fail := range []bool{false, true} {
		svc := &sweepCounter{fail: fail}
		w := NewRetentionSweeper(testutil.Logger(t), svc, 5*time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		deadline := time.After(2 * time.Second)
		for svc.calls.Load() < 3 {
			select {
			case <-deadline:
				t.Fatalf("sweeper ran %d times, want >= 3", svc.calls.Load())
			case <-time.After(time.Millisecond):
			}
		}
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("sweeper did not stop")
		}
	}
}

func TestRetentionSweeperDefaultInterval(t *testing.T) {
	w := NewRetentionSweeper(testutil.Logger(t), &sweepCounter{}, 0)
	if w.interval != 5*time.Minute {
		t.Fatalf("interval: want=5m got=%s", w.interval)
	}
}
