package stdout

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"modelwrap/internal/frame"
	"modelwrap/sink"
)

/* ────────── public config ────────── */
type Config struct {
	PrintCounter bool `koanf:"print_counter"`  // prepend seq#
	BatchSize    int  `koanf:"ack_batch_size"` // 0 = ack immediately
	FlushMS      int  `koanf:"ack_flush_ms"`   // 0 = disabled
	// Output defaults to os.Stdout.
	Output io.Writer `koanf:"-"`
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config
	out io.Writer
	ack sink.EmitFn

	wmu sync.Mutex // serialises writes

	mu      sync.Mutex // guards pending+timer
	pending []*frame.Checkpoint
	timer   *time.Timer // nil → no timer armed
	seq     uint64
}

// New returns an unconfigured stdout sink.
func New() sink.Adapter { return &driver{out: os.Stdout} }

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	if c.Output != nil {
		d.out = c.Output
	}
	return nil
}

func (d *driver) Push(f *frame.Frame) error {
	d.wmu.Lock()
	var err error
	if d.cfg.PrintCounter {
		_, err = fmt.Fprintf(d.out, "[sink %06d] %s %s\n", atomic.AddUint64(&d.seq, 1), f.Checkpoint, f.Value)
	} else {
		_, err = fmt.Fprintf(d.out, "%s\n", f.Value)
	}
	d.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("stdout-sink: write: %w", err)
	}

	if d.ack == nil || f.Checkpoint == nil {
		return nil
	}

	d.mu.Lock()
	d.pending = append(d.pending, f.Checkpoint)

	/* 1. flush on batch size */
	if d.cfg.BatchSize <= 1 || len(d.pending) >= d.cfg.BatchSize {
		d.flushLocked()
		d.mu.Unlock()
		return nil
	}

	/* 2. arm the one-shot timer if needed */
	if d.cfg.FlushMS > 0 && d.timer == nil {
		d.timer = time.AfterFunc(
			time.Duration(d.cfg.FlushMS)*time.Millisecond,
			d.timerFlush,
		)
	}
	d.mu.Unlock()
	return nil
}

func (d *driver) Close() error {
	d.mu.Lock()
	d.flushLocked()
	d.mu.Unlock()
	return nil
}

/* ────────── sink.AckAware ────────── */
func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

/* ────────── internals ────────── */

// called by the background timer goroutine
func (d *driver) timerFlush() {
	d.mu.Lock()
	d.flushLocked()
	d.mu.Unlock()
}

// must be called with d.mu *held*
func (d *driver) flushLocked() {
	if len(d.pending) == 0 || d.ack == nil {
		d.stopTimerLocked()
		return
	}
	for _, t := range d.pending {
		d.ack(t)
	}
	d.pending = d.pending[:0]
	d.stopTimerLocked() // re-arm on next Push if needed
}

func (d *driver) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", New)
}
