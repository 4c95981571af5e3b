package stream

import (
	"fmt"

	"modelwrap/internal/config"
	"modelwrap/sink"
	_ "modelwrap/sink/kafka"
	"modelwrap/source/kafka"
)

// Compile wires a Kafka source and the output sink around h.
func Compile(cfg config.StreamConfig, h Handler) (*Runner, error) {
	r := NewRunner(h)

	kc, err := config.LoadStreamSource(cfg.SourceConfig)
	if err != nil {
		return nil, err
	}
	src, err := kafka.NewAdapter(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if err = src.Configure(kc); err != nil {
		return nil, err
	}
	r.SetSource(src)
	if aw, ok := src.(kafka.AckReceiver); ok {
		r.SubscribeAck(aw.OnAck)
	}

	out, err := sink.NewAdapter("kafka")
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	if err := out.Configure(cfg.Output); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("stream output: %w", err)
	}
	if ackAware, ok := out.(sink.AckAware); ok {
		ackAware.BindAck(r.Ack)
	}
	r.AddSink(out)
	return r, nil
}
