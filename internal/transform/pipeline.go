// Package transform runs one request through the user model: sanity check,
// decode, transform, encode and metadata assembly, identically for every
// front end.
package transform

import (
	"context"
	"errors"
	"fmt"

	"modelwrap/internal/apierr"
	"modelwrap/internal/datadef"
	"modelwrap/internal/message"
	"modelwrap/internal/meta"
	"modelwrap/internal/validate"
	"modelwrap/model"
	"modelwrap/tensor"
)

type transformFunc func(ctx context.Context, x tensor.Array, names []string) (tensor.Array, error)

// stage is the resolved capability pair for one direction. A nil names
// function means the request names are kept.
type stage struct {
	transform transformFunc
	names     func() []string
}

// Pipeline is safe for concurrent use as long as the model is.
type Pipeline struct {
	stages [2]stage
	meta   *meta.Assembler
}

// New resolves m's optional capabilities once. Absent transforms are the
// identity and absent name hooks keep the names of the request.
func New(m any) *Pipeline {
	p := &Pipeline{meta: meta.New(m)}

	in := stage{transform: identity}
	if t, ok := m.(model.InputTransformer); ok {
		in.transform = t.TransformInput
	}
	if n, ok := m.(model.FeatureNamer); ok {
		in.names = n.FeatureNames
	}

	out := stage{transform: identity}
	if t, ok := m.(model.OutputTransformer); ok {
		out.transform = t.TransformOutput
	}
	if n, ok := m.(model.ClassNamer); ok {
		out.names = n.ClassNames
	}

	p.stages[Input], p.stages[Output] = in, out
	return p
}

func identity(_ context.Context, x tensor.Array, _ []string) (tensor.Array, error) { return x, nil }

// Run transforms req in direction d and returns the response envelope.
func (p *Pipeline) Run(ctx context.Context, d Direction, req *message.Message) (*message.Message, error) {
	if d != Input && d != Output {
		return nil, fmt.Errorf("transform: %s", d)
	}
	if err := validate.SanityCheck(req); err != nil {
		return nil, err
	}
	x, names, variant, err := datadef.Decode(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := p.stages[d]
	y, err := call(ctx, st.transform, x, names)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || apierr.KindOf(err) != apierr.Unknown {
			return nil, err
		}
		return nil, apierr.Wrap(apierr.TransformFailed, err, "transform %s", d)
	}
	if y.Rows() != x.Rows() {
		return nil, apierr.New(apierr.InternalInconsistency,
			"transform %s changed row count from %d to %d", d, x.Rows(), y.Rows())
	}

	outNames := names
	if st.names != nil {
		outNames = st.names()
	}
	data, err := datadef.Encode(y, outNames, variant)
	if err != nil {
		return nil, err
	}

	tags, metrics := p.meta.Assemble()
	return &message.Message{
		Data: data,
		Meta: &message.Meta{Puid: req.Puid(), Tags: tags, Metrics: metrics},
	}, nil
}

// call invokes the model transform, turning a panic into an error so a bad
// model cannot take down a stream worker.
func call(ctx context.Context, fn transformFunc, x tensor.Array, names []string) (y tensor.Array, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return fn(ctx, x, names)
}
