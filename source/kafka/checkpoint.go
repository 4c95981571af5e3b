package kafka

import (
	"context"
	"slices"
	"sync"
	"time"

	"modelwrap/internal/frame"
)

type partitionKey struct {
	topic     string
	partition int32
}

// window holds the in-flight offsets of one partition in arrival order.
type window struct {
	offsets []int64
	done    map[int64]bool
}

// Tracker bounds the number of in-flight records and works out, per
// partition, the next offset that is safe to commit: one past the longest
// resolved prefix. Records may resolve in any order.
type Tracker struct {
	capacity    int64
	commitEvery time.Duration

	mu         sync.Mutex
	cond       *sync.Cond
	inflight   int64
	parts      map[partitionKey]*window
	lastCommit time.Time
}

// Resolution is what resolving one record yields.
type Resolution struct {
	// Next is the offset to mark when Advanced is set.
	Next     int64
	Advanced bool
	// CommitDue reports that commitEvery has passed since the last commit.
	CommitDue bool
}

func NewTracker(capacity int64, commitEvery time.Duration) *Tracker {
	t := &Tracker{
		capacity:    capacity,
		commitEvery: commitEvery,
		parts:       make(map[partitionKey]*window),
		lastCommit:  time.Now(),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Track registers cp, waiting while capacity records are already in
// flight. The returned func resolves cp; calling it twice is a no-op.
func (t *Tracker) Track(ctx context.Context, cp frame.Checkpoint) (func() Resolution, error) {
	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.mu.Unlock()
		t.cond.Broadcast()
	})
	defer stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.capacity > 0 && t.inflight >= t.capacity {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := partitionKey{cp.Topic, cp.Partition}
	w := t.parts[k]
	if w == nil {
		w = &window{done: make(map[int64]bool)}
		t.parts[k] = w
	}
	w.offsets = append(w.offsets, cp.Offset)
	w.done[cp.Offset] = false
	t.inflight++

	var once sync.Once
	return func() (r Resolution) {
		once.Do(func() { r = t.resolve(w, cp.Offset) })
		return r
	}, nil
}

func (t *Tracker) resolve(w *window, offset int64) Resolution {
	t.mu.Lock()
	defer t.mu.Unlock()

	var r Resolution
	if _, ok := w.done[offset]; !ok {
		// dropped by Reset
		return r
	}
	w.done[offset] = true
	t.inflight--

	n := 0
	for n < len(w.offsets) && w.done[w.offsets[n]] {
		delete(w.done, w.offsets[n])
		n++
	}
	if n > 0 {
		r.Next, r.Advanced = w.offsets[n-1]+1, true
		w.offsets = slices.Delete(w.offsets, 0, n)
	}
	if now := time.Now(); now.Sub(t.lastCommit) >= t.commitEvery {
		t.lastCommit = now
		r.CommitDue = true
	}
	t.cond.Broadcast()
	return r
}

// Pending is the number of unresolved records.
func (t *Tracker) Pending() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight
}

// Reset forgets every in-flight record, as after a rebalance. Resolving a
// forgotten record does nothing.
func (t *Tracker) Reset() {
	t.mu.Lock()
	for _, w := range t.parts {
		clear(w.done)
		w.offsets = nil
	}
	t.parts = make(map[partitionKey]*window)
	t.inflight = 0
	t.mu.Unlock()
	t.cond.Broadcast()
}
