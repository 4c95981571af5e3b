package transport

import (
	"context"
	"sync"

	"google.golang.org/grpc"
)

// Limiter bounds how many calls run at once. Callers beyond the capacity
// wait for a free slot or for their context to end; there is no timeout of
// its own.
type Limiter struct {
	capacity int

	mu    sync.Mutex
	cond  *sync.Cond
	inUse int
}

func NewLimiter(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	l := &Limiter{capacity: capacity}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Acquire takes a slot, waiting until one is free or ctx ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	// wakes waiters when ctx ends; lock first so the broadcast cannot land
	// between a waiter's ctx check and its Wait
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.mu.Unlock()
		l.cond.Broadcast()
	})
	defer stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	for l.inUse >= l.capacity {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.inUse++
	return nil
}

func (l *Limiter) Release() {
	l.mu.Lock()
	if l.inUse > 0 {
		l.inUse--
	}
	l.mu.Unlock()
	l.cond.Broadcast()
}

// InUse reports the number of held slots.
func (l *Limiter) InUse() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse
}

// UnaryInterceptor holds one slot for the duration of each call.
func (l *Limiter) UnaryInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if err := l.Acquire(ctx); err != nil {
		return nil, err
	}
	defer l.Release()
	return handler(ctx, req)
}
