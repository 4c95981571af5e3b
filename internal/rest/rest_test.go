package rest

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelwrap/internal/message"
	"modelwrap/internal/transform"
	"modelwrap/tensor"
)

func init() { gin.SetMode(gin.TestMode) }

type featureNamer struct{}

func (featureNamer) FeatureNames() []string { return []string{"a", "b"} }
func (featureNamer) Tags() (map[string]any, error) {
	return map[string]any{"source": "test"}, nil
}

func do(t *testing.T, h http.Handler, r *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	var body map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func postJSON(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestTransformInput_IdentityEchoesNames(t *testing.T) {
	h := NewHandler(transform.New(struct{}{}), Options{})
	w, body := do(t, h, postJSON("/transform-input", `{"data":{"names":["x","y"],"ndarray":[[1,2],[3,4]]}}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp message.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"x", "y"}, resp.Data.Names)
	assert.JSONEq(t, `[[1,2],[3,4]]`, string(resp.Data.Ndarray))
	assert.Equal(t, map[string]any{}, body["meta"])
}

func TestTransformInput_FormFieldAndOverride(t *testing.T) {
	h := NewHandler(transform.New(featureNamer{}), Options{})
	q := url.Values{"json": {`{"data":{"names":["x","y"],"tensor":{"shape":[1,2],"values":[5,6]}}}`}}
	w, body := do(t, h, httptest.NewRequest(http.MethodGet, "/transform-input?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := body["data"].(map[string]any)
	assert.Equal(t, []any{"a", "b"}, data["names"])
	assert.Equal(t, map[string]any{"shape": []any{1.0, 2.0}, "values": []any{5.0, 6.0}}, data["tensor"])
	assert.Equal(t, map[string]any{"tags": map[string]any{"source": "test"}}, body["meta"])
}

func TestTransformOutput_MalformedPayload(t *testing.T) {
	h := NewHandler(transform.New(struct{}{}), Options{})
	w, body := do(t, h, postJSON("/transform-output", `{"data":{"names":["a"]}}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	status := body["status"].(map[string]any)
	assert.Equal(t, "MALFORMED_PAYLOAD", status["reason"])
	assert.Equal(t, "FAILURE", status["status"])
	assert.EqualValues(t, 400, status["code"])
	assert.NotEmpty(t, status["info"])
}

func TestTransform_ClientErrors(t *testing.T) {
	h := NewHandler(transform.New(struct{}{}), Options{})
	cases := map[string]struct {
		req    *http.Request
		reason string
	}{
		"missing":      {httptest.NewRequest(http.MethodGet, "/transform-input", nil), "MISSING_PAYLOAD"},
		"invalid json": {postJSON("/transform-input", `{"data":`), "INVALID_JSON"},
		"no data":      {postJSON("/transform-input", `{"meta":{}}`), "MALFORMED_REQUEST"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w, body := do(t, h, tc.req)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.reason, body["status"].(map[string]any)["reason"])
		})
	}
}

type rowDropper struct{}

func (rowDropper) TransformOutput(_ context.Context, _ tensor.Array, _ []string) (tensor.Array, error) {
	return tensor.Zeros(0, 1), nil
}

func TestTransform_ServiceFaultIs500(t *testing.T) {
	h := NewHandler(transform.New(rowDropper{}), Options{})
	w, body := do(t, h, postJSON("/transform-output", `{"data":{"ndarray":[[1]]}}`))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_INCONSISTENCY", body["status"].(map[string]any)["reason"])
}

type overflow struct{}

func (overflow) TransformOutput(_ context.Context, x tensor.Array, _ []string) (tensor.Array, error) {
	return tensor.New(x.Rows(), 1, []float64{math.Inf(1)})
}

func TestTransform_NonFiniteOutput(t *testing.T) {
	h := NewHandler(transform.New(overflow{}), Options{})

	w, body := do(t, h, postJSON("/transform-output", `{"data":{"tensor":{"shape":[1,1],"values":[1e308]}}}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"Infinity"}, body["data"].(map[string]any)["tensor"].(map[string]any)["values"])

	// ndarray cells are JSON numbers and cannot hold an infinity
	w, body = do(t, h, postJSON("/transform-output", `{"data":{"ndarray":[[1e308]]}}`))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotEmpty(t, w.Body.String())
	assert.Equal(t, "INTERNAL_INCONSISTENCY", body["status"].(map[string]any)["reason"])
}

func TestTransformInput_NonFiniteTensorInput(t *testing.T) {
	h := NewHandler(transform.New(struct{}{}), Options{})
	w, body := do(t, h, postJSON("/transform-input", `{"data":{"tensor":{"shape":[2],"values":["NaN",1]}}}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"NaN", 1.0}, body["data"].(map[string]any)["tensor"].(map[string]any)["values"])

	w, body = do(t, h, postJSON("/transform-input", `{"data":{"tensor":{"shape":[2],"values":[null,1]}}}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MALFORMED_REQUEST", body["status"].(map[string]any)["reason"])
}

func TestAPIDoc(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "seldon.json")
	require.NoError(t, os.WriteFile(doc, []byte(`{"openapi":"3.0.0"}`), 0o600))

	h := NewHandler(transform.New(struct{}{}), Options{APIDoc: doc})
	w, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/seldon.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"openapi":"3.0.0"}`, w.Body.String())

	h = NewHandler(transform.New(struct{}{}), Options{APIDoc: filepath.Join(dir, "missing.json")})
	w, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/seldon.json", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPingAndCORS(t *testing.T) {
	h := NewHandler(transform.New(struct{}{}), Options{})
	r := httptest.NewRequest(http.MethodGet, "/health/ping", nil)
	r.Header.Set("Origin", "http://example.com")
	w, _ := do(t, h, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
