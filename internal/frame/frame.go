// Package frame holds the unit of work that flows from a stream source,
// through the transform pipeline, to the sinks.
package frame

import (
	"fmt"
	"time"
)

// Checkpoint identifies the source record a frame came from. Sinks hand it
// back once the frame is durable so the source can commit.
type Checkpoint struct {
	Topic     string
	Partition int32
	Offset    int64
}

func (c *Checkpoint) String() string {
	if c == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s[%d]@%d", c.Topic, c.Partition, c.Offset)
}

type Frame struct {
	Key        []byte
	Value      []byte
	Headers    map[string][]byte
	Timestamp  time.Time
	Checkpoint *Checkpoint
}

// Ack is emitted by a sink once a frame has been durably processed.
type Ack struct {
	Checkpoint *Checkpoint
}
