package transport

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"modelwrap/internal/config"
	"modelwrap/internal/message"
	"modelwrap/internal/transform"
	"modelwrap/tensor"
)

func startServer(t *testing.T, m any, opts Options) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(transform.New(m), opts)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() { srv.Stop(context.Background()) })

	c, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHealth_ServingUntilStop(t *testing.T) {
	c := startServer(t, struct{}{}, Options{})
	ok, err := c.Healthy(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

type classNamer struct{}

func (classNamer) ClassNames() []string { return []string{"neg", "pos"} }

func (classNamer) TransformOutput(_ context.Context, x tensor.Array, _ []string) (tensor.Array, error) {
	rows := x.RowsCopy()
	for _, r := range rows {
		r[0], r[1] = r[1], r[0]
	}
	return tensor.FromRows(rows)
}

func TestTransformOutput_OverGRPC(t *testing.T) {
	c := startServer(t, classNamer{}, Options{Workers: 2})
	resp, err := c.Transform(context.Background(), transform.Output, &message.Message{
		Meta: &message.Meta{Puid: "abc"},
		Data: &message.DataDef{Names: []string{"a", "b"}, Ndarray: json.RawMessage(`[[0.25,0.75]]`)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"neg", "pos"}, resp.Data.Names)
	assert.JSONEq(t, `[[0.75,0.25]]`, string(resp.Data.Ndarray))
	assert.Equal(t, "abc", resp.Puid())
}

func TestTransformInput_TensorIdentity(t *testing.T) {
	c := startServer(t, struct{}{}, Options{})
	resp, err := c.Transform(context.Background(), transform.Input, &message.Message{
		Data: &message.DataDef{Tensor: &message.Tensor{Shape: []int32{2, 1}, Values: []float64{1, 2}}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Data.Tensor)
	assert.Equal(t, []int32{2, 1}, resp.Data.Tensor.Shape)
	assert.Equal(t, []float64{1, 2}, resp.Data.Tensor.Values)
	if resp.Meta != nil {
		assert.Nil(t, resp.Meta.Tags)
		assert.Nil(t, resp.Meta.Metrics)
	}
}

func TestTransform_MalformedPayloadIsInvalidArgument(t *testing.T) {
	c := startServer(t, struct{}{}, Options{})
	_, err := c.Transform(context.Background(), transform.Input, &message.Message{
		Data: &message.DataDef{Names: []string{"a"}},
	})
	require.Error(t, err)
	st := status.Convert(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())

	var reason string
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			reason = info.GetReason()
		}
	}
	assert.Equal(t, "MALFORMED_PAYLOAD", reason)
}

func TestTransformInput_NonFiniteTensorValues(t *testing.T) {
	c := startServer(t, struct{}{}, Options{})
	resp, err := c.Transform(context.Background(), transform.Input, &message.Message{
		Data: &message.DataDef{Tensor: &message.Tensor{Shape: []int32{1, 3}, Values: []float64{math.NaN(), 1, math.Inf(1)}}},
	})
	require.NoError(t, err)
	v := resp.Data.Tensor.Values
	require.Len(t, v, 3)
	assert.True(t, math.IsNaN(v[0]))
	assert.Equal(t, 1.0, v[1])
	assert.True(t, math.IsInf(v[2], 1))
}

type panicky struct{}

func (panicky) FeatureNames() []string { panic("names hook exploded") }

func TestTransform_PanicIsInternal(t *testing.T) {
	c := startServer(t, panicky{}, Options{})
	_, err := c.Transform(context.Background(), transform.Input, &message.Message{
		Data: &message.DataDef{Ndarray: json.RawMessage(`[[1]]`)},
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestMaxMessageSize(t *testing.T) {
	c := startServer(t, struct{}{}, Options{MaxMessageSize: 256})
	values := make([]float64, 200)
	_, err := c.Transform(context.Background(), transform.Input, &message.Message{
		Data: &message.DataDef{Tensor: &message.Tensor{Shape: []int32{1, 200}, Values: values}},
	})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestResolveMaxMessageSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "annotations")
	require.NoError(t, os.WriteFile(path, []byte(
		"seldon.io/grpc-max-message-size=\"10485760\"\nteam=\"ml\"\n"), 0o600))

	ann, err := config.LoadAnnotations(path)
	require.NoError(t, err)
	n, err := ResolveMaxMessageSize(ann, 99)
	require.NoError(t, err)
	assert.Equal(t, 10485760, n)

	empty, err := config.LoadAnnotations(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	n, err = ResolveMaxMessageSize(empty, 99)
	require.NoError(t, err)
	assert.Equal(t, 99, n)

	require.NoError(t, os.WriteFile(path, []byte("seldon.io/grpc-max-message-size=\"lots\"\n"), 0o600))
	bad, err := config.LoadAnnotations(path)
	require.NoError(t, err)
	_, err = ResolveMaxMessageSize(bad, 0)
	assert.Error(t, err)
}
