// Package message holds the SeldonMessage envelope as plain Go values. The
// JSON tags follow the protobuf JSON mapping of api/proto/v1, so the same
// struct decodes REST bodies and, through protojson, gRPC messages.
package message

import (
	"bytes"
	"encoding/json"
)

type Message struct {
	Status  *Status  `json:"status,omitempty"`
	Meta    *Meta    `json:"meta,omitempty"`
	Data    *DataDef `json:"data,omitempty"`
	BinData []byte   `json:"binData,omitempty"`
	StrData *string  `json:"strData,omitempty"`
}

// Opaque reports whether the message carries a pass-through payload.
func (m *Message) Opaque() bool {
	return m != nil && (m.BinData != nil || m.StrData != nil)
}

// Puid returns the request id from meta, if any.
func (m *Message) Puid() string {
	if m == nil || m.Meta == nil {
		return ""
	}
	return m.Meta.Puid
}

type DataDef struct {
	Names   []string        `json:"names,omitempty"`
	Tensor  *Tensor         `json:"tensor,omitempty"`
	Ndarray json.RawMessage `json:"ndarray,omitempty"`
}

// HasNdarray reports whether ndarray holds anything but JSON null.
func (d *DataDef) HasNdarray() bool {
	if d == nil {
		return false
	}
	b := bytes.TrimSpace(d.Ndarray)
	return len(b) > 0 && !bytes.Equal(b, []byte("null"))
}

// Tensor marshals through tensorJSON so values may be NaN or infinite.
type Tensor struct {
	Shape  []int32   `json:"shape,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

type Meta struct {
	Puid        string            `json:"puid,omitempty"`
	Tags        map[string]any    `json:"tags,omitempty"`
	Routing     map[string]int32  `json:"routing,omitempty"`
	RequestPath map[string]string `json:"requestPath,omitempty"`
	Metrics     []Metric          `json:"metrics,omitempty"`
}

type Metric struct {
	Key   string            `json:"key,omitempty"`
	Type  string            `json:"type,omitempty"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

type Status struct {
	Code   int32  `json:"code,omitempty"`
	Info   string `json:"info,omitempty"`
	Reason string `json:"reason,omitempty"`
	Status string `json:"status,omitempty"`
}
