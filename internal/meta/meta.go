// Package meta builds the optional tags and metrics of a response envelope
// from the model's diagnostic hooks.
package meta

import (
	"encoding/json"
	"fmt"
	"math"
	"runtime/debug"
	"slices"

	"modelwrap/internal/logging"
	"modelwrap/internal/message"
	"modelwrap/internal/telemetry"
	"modelwrap/model"
)

// Assembler queries a model's Tagger and MetricsReporter hooks. Hook failures
// never leave the assembler: an error or panic means "nothing provided".
type Assembler struct {
	tagger   model.Tagger
	reporter model.MetricsReporter
}

func New(m any) *Assembler {
	a := &Assembler{}
	a.tagger, _ = m.(model.Tagger)
	a.reporter, _ = m.(model.MetricsReporter)
	return a
}

// Assemble returns the tags and metrics to attach. Each result is nil when
// the model provides none.
func (a *Assembler) Assemble() (map[string]any, []message.Metric) {
	return a.tags(), a.metrics()
}

func (a *Assembler) tags() (out map[string]any) {
	if a.tagger == nil {
		return nil
	}
	err := guard("tags", func() error {
		t, err := a.tagger.Tags()
		if err != nil {
			return err
		}
		if len(t) == 0 {
			return nil
		}
		// tags travel as JSON; NaN or a channel would break the response
		if _, err := json.Marshal(t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		logging.L().Warn("meta: custom tags dropped", "err", err)
		return nil
	}
	return out
}

func (a *Assembler) metrics() (out []message.Metric) {
	if a.reporter == nil {
		return nil
	}
	var ms []model.Metric
	err := guard("metrics", func() error {
		var err error
		ms, err = a.reporter.Metrics()
		return err
	})
	if err != nil {
		logging.L().Warn("meta: custom metrics dropped", "err", err)
		return nil
	}
	ms = slices.DeleteFunc(slices.Clone(ms), func(m model.Metric) bool {
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			logging.L().Warn("meta: non-finite metric dropped", "key", m.Key, "value", m.Value)
			return true
		}
		return false
	})
	if len(ms) == 0 {
		return nil
	}
	telemetry.RecordCustom(ms)
	out = make([]message.Metric, 0, len(ms))
	for _, m := range ms {
		out = append(out, message.Metric{Key: m.Key, Type: m.Type.String(), Value: m.Value, Tags: m.Tags})
	}
	return out
}

func guard(hook string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Debug("meta: hook panic", "hook", hook, "stack", string(debug.Stack()))
			err = fmt.Errorf("%s hook panicked: %v", hook, r)
		}
	}()
	return fn()
}
