// Package datadef converts between the wire DataDef variants and the
// canonical tensor.Array. The variant a request arrived in is reported by
// Decode and handed back to Encode so responses mirror requests.
package datadef

import (
	"bytes"
	"encoding/json"
	"math"

	"modelwrap/internal/apierr"
	"modelwrap/internal/message"
	"modelwrap/tensor"
)

type Variant int

const (
	Unknown Variant = iota
	Tensor
	NDArray
	Binary
	String
)

func (v Variant) String() string {
	switch v {
	case Tensor:
		return "tensor"
	case NDArray:
		return "ndarray"
	case Binary:
		return "binData"
	case String:
		return "strData"
	default:
		return "unknown"
	}
}

// Decomposable reports whether the variant can be decoded into an Array.
func (v Variant) Decomposable() bool { return v == Tensor || v == NDArray }

// VariantOf inspects which payload field of m is populated.
func VariantOf(m *message.Message) Variant {
	switch {
	case m == nil:
		return Unknown
	case m.BinData != nil:
		return Binary
	case m.StrData != nil:
		return String
	case m.Data == nil:
		return Unknown
	case m.Data.Tensor != nil:
		return Tensor
	case m.Data.HasNdarray():
		return NDArray
	default:
		return Unknown
	}
}

// Decode extracts the canonical array, the column names and the variant.
func Decode(m *message.Message) (tensor.Array, []string, Variant, error) {
	v := VariantOf(m)
	switch v {
	case Binary, String:
		return tensor.Array{}, nil, v, apierr.New(apierr.MalformedPayload, "%s payloads cannot be transformed", v)
	case Unknown:
		return tensor.Array{}, nil, v, apierr.New(apierr.MalformedPayload, "data holds neither tensor nor ndarray")
	}
	d := m.Data
	if d.Tensor != nil && d.HasNdarray() {
		return tensor.Array{}, nil, Unknown, apierr.New(apierr.MalformedPayload, "data holds both tensor and ndarray")
	}

	var (
		a   tensor.Array
		err error
	)
	if v == Tensor {
		a, err = decodeTensor(d.Tensor)
	} else {
		a, err = decodeNdarray(d.Ndarray)
	}
	if err != nil {
		return tensor.Array{}, nil, v, err
	}
	if !namesFit(d.Names, a) {
		return tensor.Array{}, nil, v, apierr.New(apierr.MalformedPayload,
			"%d names for %d columns", len(d.Names), a.Cols())
	}
	return a, d.Names, v, nil
}

// Encode renders a in variant v. Shape is taken from a, not from the request.
func Encode(a tensor.Array, names []string, v Variant) (*message.DataDef, error) {
	if !namesFit(names, a) {
		return nil, apierr.New(apierr.InternalInconsistency,
			"%d names for %d columns after transform", len(names), a.Cols())
	}
	out := &message.DataDef{}
	if len(names) > 0 {
		out.Names = append([]string(nil), names...)
	}
	switch v {
	case Tensor:
		rows, cols := a.Dims()
		if rows > math.MaxInt32 || cols > math.MaxInt32 {
			return nil, apierr.New(apierr.InternalInconsistency, "%dx%d does not fit a tensor shape", rows, cols)
		}
		out.Tensor = &message.Tensor{
			Shape:  []int32{int32(rows), int32(cols)},
			Values: a.Values(),
		}
	case NDArray:
		// ndarray cells are plain JSON numbers; only the tensor variant
		// carries NaN and infinities.
		for _, v := range a.Values() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apierr.New(apierr.InternalInconsistency, "ndarray cannot carry %v", v)
			}
		}
		b, err := json.Marshal(a.RowsCopy())
		if err != nil {
			return nil, apierr.Wrap(apierr.InternalInconsistency, err, "encode ndarray")
		}
		out.Ndarray = b
	default:
		return nil, apierr.New(apierr.InternalInconsistency, "cannot encode an array as %s", v)
	}
	return out, nil
}

// An array without rows has no columns to hold names against.
func namesFit(names []string, a tensor.Array) bool {
	return len(names) == 0 || a.Rows() == 0 || len(names) == a.Cols()
}

func decodeTensor(t *message.Tensor) (tensor.Array, error) {
	if len(t.Shape) == 0 {
		return tensor.Array{}, apierr.New(apierr.MalformedPayload, "tensor shape is empty")
	}
	n := 1
	for _, d := range t.Shape {
		if d < 0 {
			return tensor.Array{}, apierr.New(apierr.MalformedPayload, "tensor shape %v has a negative dimension", t.Shape)
		}
		// n never exceeds len(values), so the product cannot wrap
		if d != 0 && n > len(t.Values)/int(d) {
			return tensor.Array{}, apierr.New(apierr.MalformedPayload,
				"tensor shape %v holds more than the %d values given", t.Shape, len(t.Values))
		}
		n *= int(d)
	}
	if n != len(t.Values) {
		return tensor.Array{}, apierr.New(apierr.MalformedPayload,
			"tensor shape %v holds %d values, got %d", t.Shape, n, len(t.Values))
	}

	rows, cols := 1, int(t.Shape[0])
	if len(t.Shape) > 1 {
		rows, cols = int(t.Shape[0]), 1
		for _, d := range t.Shape[1:] {
			cols *= int(d)
		}
	}
	a, err := tensor.New(rows, cols, t.Values)
	if err != nil {
		return tensor.Array{}, apierr.Wrap(apierr.MalformedPayload, err, "tensor")
	}
	return a, nil
}

func decodeNdarray(raw json.RawMessage) (tensor.Array, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return tensor.Array{}, apierr.Wrap(apierr.MalformedPayload, err, "ndarray must be a list")
	}
	if len(items) == 0 {
		return tensor.Array{}, nil
	}

	// A flat list of numbers is a single instance.
	if !bytes.HasPrefix(bytes.TrimSpace(items[0]), []byte("[")) {
		var flat []*float64
		if err := json.Unmarshal(raw, &flat); err != nil {
			return tensor.Array{}, apierr.Wrap(apierr.MalformedPayload, err, "ndarray values must be numbers")
		}
		row, err := cells(flat, 0)
		if err != nil {
			return tensor.Array{}, err
		}
		return tensor.FromRows([][]float64{row})
	}

	var grid [][]*float64
	if err := json.Unmarshal(raw, &grid); err != nil {
		return tensor.Array{}, apierr.Wrap(apierr.MalformedPayload, err, "ndarray must be a list of numeric rows")
	}
	rows := make([][]float64, len(grid))
	for i, r := range grid {
		if r == nil {
			return tensor.Array{}, apierr.New(apierr.MalformedPayload, "ndarray row %d is null", i)
		}
		var err error
		if rows[i], err = cells(r, i); err != nil {
			return tensor.Array{}, err
		}
	}
	a, err := tensor.FromRows(rows)
	if err != nil {
		return tensor.Array{}, apierr.Wrap(apierr.MalformedPayload, err, "ndarray")
	}
	return a, nil
}

// cells rejects JSON nulls, which encoding/json would otherwise read as 0.
func cells(in []*float64, row int) ([]float64, error) {
	out := make([]float64, len(in))
	for j, c := range in {
		if c == nil {
			return nil, apierr.New(apierr.MalformedPayload, "ndarray cell [%d][%d] is null", row, j)
		}
		out[j] = *c
	}
	return out, nil
}
