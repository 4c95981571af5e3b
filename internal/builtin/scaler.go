// Package builtin provides a declarative model loaded from YAML, so the
// server can run without any user code.
package builtin

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"modelwrap/model"
	"modelwrap/tensor"
)

// ScalerSpec is the YAML model definition.
type ScalerSpec struct {
	FeatureNames []string       `yaml:"feature_names"`
	ClassNames   []string       `yaml:"class_names"`
	Tags         map[string]any `yaml:"tags"`
	Input        struct {
		// x' = (x - offset) * scale, column-wise. Missing entries are 0 and 1.
		Offset []float64 `yaml:"offset"`
		Scale  []float64 `yaml:"scale"`
		// Bias appends a constant column when set.
		Bias *float64 `yaml:"bias"`
	} `yaml:"input"`
	Output struct {
		Softmax bool `yaml:"softmax"`
	} `yaml:"output"`
}

// Scaler implements every optional capability of the model package.
type Scaler struct {
	spec ScalerSpec
	rows atomic.Int64
}

var (
	_ model.InputTransformer  = (*Scaler)(nil)
	_ model.OutputTransformer = (*Scaler)(nil)
	_ model.FeatureNamer      = (*Scaler)(nil)
	_ model.ClassNamer        = (*Scaler)(nil)
	_ model.Tagger            = (*Scaler)(nil)
	_ model.MetricsReporter   = (*Scaler)(nil)
)

func Load(path string) (*Scaler, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("builtin: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Scaler, error) {
	var spec ScalerSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return nil, fmt.Errorf("builtin: parse: %w", err)
	}
	for i, s := range spec.Input.Scale {
		if s == 0 || math.IsNaN(s) {
			return nil, fmt.Errorf("builtin: input.scale[%d] must be a non-zero number", i)
		}
	}
	return &Scaler{spec: spec}, nil
}

func (s *Scaler) TransformInput(_ context.Context, x tensor.Array, _ []string) (tensor.Array, error) {
	rows, cols := x.Dims()
	s.rows.Store(int64(rows))
	if rows == 0 || (cols == 0 && s.spec.Input.Bias == nil) {
		return x, nil
	}
	if n := len(s.spec.Input.Offset); n > cols {
		return tensor.Array{}, fmt.Errorf("builtin: %d offsets for %d columns", n, cols)
	}
	if n := len(s.spec.Input.Scale); n > cols {
		return tensor.Array{}, fmt.Errorf("builtin: %d scales for %d columns", n, cols)
	}

	outCols := cols
	if s.spec.Input.Bias != nil {
		outCols++
	}
	out := mat.NewDense(rows, outCols, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		copy(row, x.Row(i))
		if off := s.spec.Input.Offset; len(off) > 0 {
			floats.Sub(row[:len(off)], off)
		}
		if sc := s.spec.Input.Scale; len(sc) > 0 {
			floats.Mul(row[:len(sc)], sc)
		}
		out.SetRow(i, append(row[:cols:cols], s.biasTail()...))
	}
	return tensor.FromMatrix(out), nil
}

func (s *Scaler) biasTail() []float64 {
	if s.spec.Input.Bias == nil {
		return nil
	}
	return []float64{*s.spec.Input.Bias}
}

func (s *Scaler) TransformOutput(_ context.Context, x tensor.Array, _ []string) (tensor.Array, error) {
	s.rows.Store(int64(x.Rows()))
	if !s.spec.Output.Softmax || x.Empty() {
		return x, nil
	}
	rows := x.RowsCopy()
	for _, r := range rows {
		softmax(r)
	}
	return tensor.FromRows(rows)
}

// softmax normalises r in place.
func softmax(r []float64) {
	lse := floats.LogSumExp(r)
	for i, v := range r {
		r[i] = math.Exp(v - lse)
	}
}

func (s *Scaler) FeatureNames() []string { return s.spec.FeatureNames }
func (s *Scaler) ClassNames() []string   { return s.spec.ClassNames }

func (s *Scaler) Tags() (map[string]any, error) { return s.spec.Tags, nil }

func (s *Scaler) Metrics() ([]model.Metric, error) {
	return []model.Metric{{Key: "rows_transformed", Type: model.Gauge, Value: float64(s.rows.Load())}}, nil
}
