package meta

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"modelwrap/internal/message"
	"modelwrap/model"
)

type hooks struct {
	tags    map[string]any
	tagErr  error
	metrics []model.Metric
	panicky bool
}

func (h hooks) Tags() (map[string]any, error) {
	if h.panicky {
		panic("tags exploded")
	}
	return h.tags, h.tagErr
}

func (h hooks) Metrics() ([]model.Metric, error) {
	if h.panicky {
		panic("metrics exploded")
	}
	return h.metrics, nil
}

func TestAssemble_NoHooks(t *testing.T) {
	tags, metrics := New(struct{}{}).Assemble()
	assert.Nil(t, tags)
	assert.Nil(t, metrics)
}

func TestAssemble_Values(t *testing.T) {
	a := New(hooks{
		tags:    map[string]any{"model": "scaler"},
		metrics: []model.Metric{{Key: "meta_test_rows", Type: model.Gauge, Value: 4}},
	})
	tags, metrics := a.Assemble()
	assert.Equal(t, map[string]any{"model": "scaler"}, tags)
	want := []message.Metric{{Key: "meta_test_rows", Type: "GAUGE", Value: 4}}
	if diff := cmp.Diff(want, metrics); diff != "" {
		t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemble_FailuresAreSwallowed(t *testing.T) {
	for name, h := range map[string]hooks{
		"error": {tagErr: errors.New("boom")},
		"panic": {panicky: true},
		"empty": {tags: map[string]any{}, metrics: []model.Metric{}},
	} {
		t.Run(name, func(t *testing.T) {
			var (
				tags    map[string]any
				metrics []message.Metric
			)
			assert.NotPanics(t, func() { tags, metrics = New(h).Assemble() })
			assert.Nil(t, tags)
			assert.Nil(t, metrics)
		})
	}
}

func TestAssemble_DropsValuesJSONCannotCarry(t *testing.T) {
	a := New(hooks{
		tags: map[string]any{"score": math.NaN()},
		metrics: []model.Metric{
			{Key: "meta_test_inf", Type: model.Gauge, Value: math.Inf(1)},
			{Key: "meta_test_zero", Type: model.Gauge, Value: 0},
		},
	})
	tags, metrics := a.Assemble()
	assert.Nil(t, tags)
	want := []message.Metric{{Key: "meta_test_zero", Type: "GAUGE", Value: 0}}
	if diff := cmp.Diff(want, metrics); diff != "" {
		t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
	}
}
