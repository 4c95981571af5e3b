package message

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestProtoBridge_PreservesEnvelope(t *testing.T) {
	in := &Message{
		Meta: &Meta{
			Puid:    "abc",
			Tags:    map[string]any{"model": "scaler", "version": float64(2)},
			Routing: map[string]int32{"router": 1},
			Metrics: []Metric{{Key: "rows", Type: "GAUGE", Value: 3}},
		},
		Data: &DataDef{
			Names:  []string{"a", "b"},
			Tensor: &Tensor{Shape: []int32{1, 2}, Values: []float64{0.5, 1.5}},
		},
	}

	p, err := ToProto(in)
	require.NoError(t, err)
	out, err := FromProto(p)
	require.NoError(t, err)

	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestProtoBridge_NdarrayAndStatus(t *testing.T) {
	in := &Message{
		Status: &Status{Code: 400, Info: "bad", Reason: "MALFORMED_PAYLOAD", Status: StatusFailure},
		Data: &DataDef{
			Names:   []string{"x"},
			Ndarray: json.RawMessage(`[[1],[2]]`),
		},
	}
	p, err := ToProto(in)
	require.NoError(t, err)
	out, err := FromProto(p)
	require.NoError(t, err)

	require.Equal(t, in.Status, out.Status)
	require.True(t, out.Data.HasNdarray())
	require.JSONEq(t, `[[1],[2]]`, string(out.Data.Ndarray))
}

func TestProtoBridge_OpaquePayloads(t *testing.T) {
	s := "hello"
	p, err := ToProto(&Message{StrData: &s})
	require.NoError(t, err)
	out, err := FromProto(p)
	require.NoError(t, err)
	require.True(t, out.Opaque())
	require.Equal(t, "hello", *out.StrData)

	p, err = ToProto(&Message{BinData: []byte{0, 1, 2}})
	require.NoError(t, err)
	out, err = FromProto(p)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1, 2}, out.BinData)
}

func TestHasNdarray_NullIsAbsent(t *testing.T) {
	var d DataDef
	require.NoError(t, json.Unmarshal([]byte(`{"ndarray": null}`), &d))
	require.False(t, d.HasNdarray())
}

func TestProtoBridge_NonFiniteTensorValues(t *testing.T) {
	in := &Message{Data: &DataDef{
		Tensor: &Tensor{Shape: []int32{1, 4}, Values: []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1}},
	}}
	p, err := ToProto(in)
	require.NoError(t, err)
	out, err := FromProto(p)
	require.NoError(t, err)

	v := out.Data.Tensor.Values
	require.Len(t, v, 4)
	require.True(t, math.IsNaN(v[0]))
	require.True(t, math.IsInf(v[1], 1))
	require.True(t, math.IsInf(v[2], -1))
	require.Equal(t, 1.0, v[3])
}

func TestTensorJSON_ProtoMapping(t *testing.T) {
	b, err := json.Marshal(&Tensor{Shape: []int32{3}, Values: []float64{math.Inf(1), math.NaN(), 0.5}})
	require.NoError(t, err)
	require.JSONEq(t, `{"shape":[3],"values":["Infinity","NaN",0.5]}`, string(b))

	var tn Tensor
	require.NoError(t, json.Unmarshal([]byte(`{"shape":[2],"values":["-Infinity","2.5"]}`), &tn))
	require.True(t, math.IsInf(tn.Values[0], -1))
	require.Equal(t, 2.5, tn.Values[1])

	for _, bad := range []string{`{"values":[1,null]}`, `{"values":["many"]}`, `{"values":[true]}`} {
		err := json.Unmarshal([]byte(bad), &tn)
		var typeErr *json.UnmarshalTypeError
		require.True(t, errors.As(err, &typeErr), "%s: %v", bad, err)
	}
}

func TestMetricJSON_KeepsZeroValue(t *testing.T) {
	b, err := json.Marshal(Metric{Key: "rows", Type: "GAUGE"})
	require.NoError(t, err)
	require.JSONEq(t, `{"key":"rows","type":"GAUGE","value":0}`, string(b))
}
