package kafka

import (
	"context"
	"testing"
	"time"

	"modelwrap/internal/frame"
)

func at(p int32, off int64) frame.Checkpoint {
	return frame.Checkpoint{Topic: "t", Partition: p, Offset: off}
}

func TestTracker_OutOfOrderResolve(t *testing.T) {
	tr := NewTracker(10, time.Hour)
	ctx := context.Background()
	r1, _ := tr.Track(ctx, at(0, 5))
	r2, _ := tr.Track(ctx, at(0, 6))
	r3, _ := tr.Track(ctx, at(0, 7))
	if got := tr.Pending(); got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}

	// resolving the middle one must not move the commit point
	if res := r2(); res.Advanced {
		t.Fatalf("advanced before head resolved: %+v", res)
	}
	if res := r1(); !res.Advanced || res.Next != 7 {
		t.Fatalf("after head: %+v, want next 7", res)
	}
	if res := r3(); !res.Advanced || res.Next != 8 {
		t.Fatalf("after tail: %+v, want next 8", res)
	}
	if got := tr.Pending(); got != 0 {
		t.Fatalf("pending = %d, want 0", got)
	}
}

func TestTracker_PartitionsAreIndependent(t *testing.T) {
	tr := NewTracker(10, time.Hour)
	ctx := context.Background()
	_, _ = tr.Track(ctx, at(0, 1))
	rb, _ := tr.Track(ctx, at(1, 40))
	if res := rb(); !res.Advanced || res.Next != 41 {
		t.Fatalf("partition 1 blocked by partition 0: %+v", res)
	}
}

func TestTracker_ResolveTwiceIsNoop(t *testing.T) {
	tr := NewTracker(10, time.Hour)
	r, _ := tr.Track(context.Background(), at(0, 1))
	r()
	if res := r(); res.Advanced {
		t.Fatalf("second resolve advanced: %+v", res)
	}
	if got := tr.Pending(); got != 0 {
		t.Fatalf("pending = %d, want 0", got)
	}
}

func TestTracker_TrackHonoursCancel(t *testing.T) {
	tr := NewTracker(1, time.Hour)
	if _, err := tr.Track(context.Background(), at(0, 1)); err != nil {
		t.Fatalf("first track: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := tr.Track(ctx, at(0, 2)); err == nil {
		t.Fatal("track over capacity should fail once ctx ends")
	}
}

func TestTracker_TrackWaitsForResolve(t *testing.T) {
	tr := NewTracker(1, time.Hour)
	r, _ := tr.Track(context.Background(), at(0, 1))
	go func() {
		time.Sleep(20 * time.Millisecond)
		r()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := tr.Track(ctx, at(0, 2)); err != nil {
		t.Fatalf("track after resolve: %v", err)
	}
}

func TestTracker_CommitDue(t *testing.T) {
	tr := NewTracker(10, 0)
	r, err := tr.Track(context.Background(), at(0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if res := r(); !res.CommitDue || res.Next != 8 {
		t.Fatalf("got %+v, want next 8 and commit due", res)
	}
}

func TestTracker_ResetDropsInflight(t *testing.T) {
	tr := NewTracker(1, time.Hour)
	r, _ := tr.Track(context.Background(), at(0, 1))
	tr.Reset()
	if res := r(); res.Advanced {
		t.Fatalf("resolve after reset advanced: %+v", res)
	}
	if _, err := tr.Track(context.Background(), at(0, 2)); err != nil {
		t.Fatalf("capacity not freed by reset: %v", err)
	}
}
