package transport

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_QueuesBeyondCapacity(t *testing.T) {
	l := NewLimiter(2)
	release := make(chan struct{})
	var (
		running, peak int32
		wg            sync.WaitGroup
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.UnaryInterceptor(context.Background(), nil, nil, func(context.Context, any) (any, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				<-release
				atomic.AddInt32(&running, -1)
				return nil, nil
			})
			if err != nil {
				t.Errorf("queued call failed: %v", err)
			}
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for l.InUse() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Fatalf("peak concurrency %d exceeds capacity 2", got)
	}
	if l.InUse() != 0 {
		t.Fatalf("slots leaked: %d", l.InUse())
	}
}

func TestLimiter_WaitHonoursCancel(t *testing.T) {
	l := NewLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}

	l.Release()
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("slot not reusable after release: %v", err)
	}
}

func TestLimiter_WaitersNeedNoHelperGoroutine(t *testing.T) {
	l := NewLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	const waiters = 20
	ctx, cancel := context.WithCancel(context.Background())
	base := runtime.NumGoroutine()

	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() { errs <- l.Acquire(ctx) }()
	}
	time.Sleep(50 * time.Millisecond)
	// one goroutine per waiter; slack for unrelated runtime goroutines
	if extra := runtime.NumGoroutine() - base; extra > waiters+5 {
		t.Fatalf("%d goroutines for %d waiters", extra, waiters)
	}

	cancel()
	for i := 0; i < waiters; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("want canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not woken by cancel")
		}
	}
	if l.InUse() != 1 {
		t.Fatalf("in use = %d, want 1", l.InUse())
	}
}

func TestLimiter_CancelledContextGetsNoSlot(t *testing.T) {
	l := NewLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
	if l.InUse() != 0 {
		t.Fatalf("in use = %d, want 0", l.InUse())
	}
}
