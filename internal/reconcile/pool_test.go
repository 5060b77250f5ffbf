package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestForEachBoundsConcurrency(t *testing.T) {
	var active, peak, done int32
	err := forEach(context.Background(), 3, 20, func(context.Context, int) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&done, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("forEach returned error: %v", err)
	}
	if done != 20 {
		t.Fatalf("expected 20 calls, got %d", done)
	}
	if peak > 3 {
		t.Fatalf("peak concurrency %d exceeds 3 workers", peak)
	}
}

func TestForEachStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	err := forEach(context.Background(), 1, 10, func(_ context.Context, i int) error {
		atomic.AddInt32(&calls, 1)
		if i == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected work to stop after the failure, got %d calls", calls)
	}
}

func TestForEachHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := forEach(ctx, 2, 5, func(context.Context, int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
