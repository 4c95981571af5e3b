package kafka

import (
	"context"

	"modelwrap/internal/frame"
)

type EmitFunc func(*frame.Frame) error

type Adapter interface {
	Configure(Config) error
	Run(context.Context, EmitFunc) error
	Close() error
}

// AckReceiver is implemented by drivers that commit only after the sinks
// acknowledge a frame (commit_mode: e2e).
type AckReceiver interface {
	OnAck(*frame.Ack)
}
