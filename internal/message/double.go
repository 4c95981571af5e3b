package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// errNotNumber is a type error so callers classify it with the other
// wrong-shape JSON errors.
func errNotNumber(what string) error {
	return &json.UnmarshalTypeError{Value: what, Type: reflect.TypeFor[float64]()}
}

// double follows the protobuf JSON mapping for double: finite values are
// numbers, NaN and the infinities are the strings "NaN", "Infinity" and
// "-Infinity". Numeric strings are accepted on input as protojson does.
type double float64

func (f double) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(v)
}

func (f *double) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return errNotNumber("null")
	}
	if len(b) == 0 || b[0] != '"' {
		var v float64
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = double(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "NaN":
		*f = double(math.NaN())
	case "Infinity":
		*f = double(math.Inf(1))
	case "-Infinity":
		*f = double(math.Inf(-1))
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return errNotNumber(fmt.Sprintf("string %q", s))
		}
		*f = double(v)
	}
	return nil
}

type tensorJSON struct {
	Shape  []int32 `json:"shape,omitempty"`
	Values []double `json:"values,omitempty"`
}

func (t Tensor) MarshalJSON() ([]byte, error) {
	out := tensorJSON{Shape: t.Shape}
	if t.Values != nil {
		out.Values = make([]double, len(t.Values))
		for i, v := range t.Values {
			out.Values[i] = double(v)
		}
	}
	return json.Marshal(out)
}

func (t *Tensor) UnmarshalJSON(b []byte) error {
	var in tensorJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	t.Shape, t.Values = in.Shape, nil
	if in.Values != nil {
		t.Values = make([]float64, len(in.Values))
		for i, v := range in.Values {
			t.Values[i] = float64(v)
		}
	}
	return nil
}
