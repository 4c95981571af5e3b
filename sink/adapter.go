package sink

import (
	"fmt"
	"sort"
	"sync"

	"modelwrap/internal/frame"
)

// EmitFn is what a sink calls to notify the runner that a frame
// (or a batch of frames) has been durably processed.
type EmitFn func(*frame.Checkpoint)

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error      // driver-specific config ⇒ struct
	Push(*frame.Frame) error // consume one frame
	Close() error             // idempotent
}

// AckAware is *optional*; sinks that need to emit acks simply implement it.
type AckAware interface {
	BindAck(EmitFn)
}

/*──────── registry ───────*/

type factory = func() Adapter

var (
	mu  sync.RWMutex
	reg = map[string]factory{}
)

func Register(name string, f factory) {
	mu.Lock()
	reg[name] = f
	mu.Unlock()
}

func NewAdapter(name string) (Adapter, error) {
	mu.RLock()
	f, ok := reg[name]
	mu.RUnlock()
	if ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}

// Drivers lists the registered sink names.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
