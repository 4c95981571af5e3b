// Package model defines the optional capabilities a user-supplied model may
// implement. A model is any value; the server checks which of the interfaces
// below it satisfies once, when the pipeline is built, and falls back to
// identity transforms and request-supplied names for the rest.
package model

import (
	"context"

	"modelwrap/tensor"
)

// InputTransformer rewrites features on the way into a model. The returned
// array must keep the row count; the column count may change.
type InputTransformer interface {
	TransformInput(ctx context.Context, x tensor.Array, names []string) (tensor.Array, error)
}

// OutputTransformer rewrites predictions on the way out of a model.
type OutputTransformer interface {
	TransformOutput(ctx context.Context, x tensor.Array, names []string) (tensor.Array, error)
}

// FeatureNamer overrides the column names of transformed input.
type FeatureNamer interface {
	FeatureNames() []string
}

// ClassNamer overrides the column names of transformed output.
type ClassNamer interface {
	ClassNames() []string
}

// Tagger contributes meta.tags to every response.
type Tagger interface {
	Tags() (map[string]any, error)
}

// MetricsReporter contributes meta.metrics to every response.
type MetricsReporter interface {
	Metrics() ([]Metric, error)
}

type MetricType int

const (
	Counter MetricType = iota
	Gauge
	Timer
)

func (t MetricType) String() string {
	switch t {
	case Counter:
		return "COUNTER"
	case Gauge:
		return "GAUGE"
	case Timer:
		return "TIMER"
	default:
		return "UNKNOWN"
	}
}

// Metric is one custom observation. Timer values are milliseconds.
type Metric struct {
	Key   string
	Type  MetricType
	Value float64
	Tags  map[string]string
}
