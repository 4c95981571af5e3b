// Package stream runs the transform pipeline over a Kafka topic: each
// consumed SeldonMessage is transformed and the response is pushed to the
// sinks under the same key.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"modelwrap/internal/apierr"
	"modelwrap/internal/frame"
	"modelwrap/internal/logging"
	"modelwrap/internal/message"
	"modelwrap/internal/transform"
	"modelwrap/sink"
	"modelwrap/source/kafka"
)

// Handler turns one consumed payload into the payload to produce.
type Handler func(ctx context.Context, in []byte) ([]byte, error)

// PipelineHandler runs p in direction d. Failures are encoded as a status
// body rather than returned, so a bad record never stalls the partition.
func PipelineHandler(p *transform.Pipeline, d transform.Direction) Handler {
	return func(ctx context.Context, in []byte) ([]byte, error) {
		var req message.Message
		var err error
		if uerr := json.Unmarshal(in, &req); uerr != nil {
			err = apierr.Wrap(apierr.InvalidJSON, uerr, "decode record")
		}
		var resp *message.Message
		if err == nil {
			resp, err = p.Run(ctx, d, &req)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logging.L().Warn("stream: transform failed", "direction", d.String(), "err", err)
			resp = apierr.Body(err)
			if puid := req.Puid(); puid != "" {
				resp.Meta = &message.Meta{Puid: puid}
			}
		}
		out, merr := json.Marshal(resp)
		if merr != nil {
			// still produce something, or the record is never committed
			err = apierr.Wrap(apierr.InternalInconsistency, merr, "encode response")
			logging.L().Warn("stream: response not encodable", "direction", d.String(), "err", err)
			resp = apierr.Body(err)
			if puid := req.Puid(); puid != "" {
				resp.Meta = &message.Meta{Puid: puid}
			}
			return json.Marshal(resp)
		}
		return out, nil
	}
}

type Runner struct {
	source  kafka.Adapter
	sinks   []sink.Adapter
	handler Handler

	mu   sync.Mutex
	subs []func(*frame.Ack)
	ctx  context.Context
	done chan error
}

func NewRunner(h Handler) *Runner { return &Runner{handler: h, ctx: context.Background()} }

func (r *Runner) AddSink(s sink.Adapter)    { r.sinks = append(r.sinks, s) }
func (r *Runner) SetSource(s kafka.Adapter) { r.source = s }

func (r *Runner) SubscribeAck(fn func(*frame.Ack)) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// Ack is bound to every AckAware sink.
func (r *Runner) Ack(cp *frame.Checkpoint) {
	ack := &frame.Ack{Checkpoint: cp}

	r.mu.Lock()
	handlers := append([]func(*frame.Ack){}, r.subs...)
	r.mu.Unlock()

	for _, fn := range handlers {
		fn(ack)
	}
}

/*──────── frame routing ───────*/
func (r *Runner) pushFrame(f *frame.Frame) error {
	out, err := r.handler(r.ctx, f.Value)
	if err != nil {
		return fmt.Errorf("stream: %s: %w", f.Checkpoint, err)
	}
	res := &frame.Frame{
		Key:        f.Key,
		Value:      out,
		Headers:    f.Headers,
		Timestamp:  f.Timestamp,
		Checkpoint: f.Checkpoint,
	}
	for _, s := range r.sinks {
		if err := s.Push(res); err != nil {
			return fmt.Errorf("stream: push %s: %w", f.Checkpoint, err)
		}
	}
	return nil
}

// Start consumes in the background until ctx ends or the source fails; Wait
// reports the outcome.
func (r *Runner) Start(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	if r.handler == nil {
		return errors.New("runner: no handler configured")
	}
	r.ctx = ctx
	r.done = make(chan error, 1)
	go func() { r.done <- r.source.Run(ctx, r.pushFrame) }()
	return nil
}

// Wait blocks until the source stops.
func (r *Runner) Wait() error {
	if r.done == nil {
		return nil
	}
	err := <-r.done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runner) Close() error {
	var errs []error
	if r.source != nil {
		errs = append(errs, r.source.Close())
	}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
