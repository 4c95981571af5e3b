// Package validate pulls a SeldonMessage out of an HTTP request and checks
// that it is structurally usable before any decoding happens.
package validate

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"modelwrap/internal/apierr"
	"modelwrap/internal/message"
)

// DefaultMaxBody caps request bodies when the caller passes no limit.
const DefaultMaxBody int64 = 32 << 20

// Extract reads the envelope from, in order: a JSON body, a "json" form or
// query field, or form fields named after the envelope keys.
func Extract(r *http.Request, maxBody int64) (*message.Message, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}

	if isJSON(r) && r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil {
			return nil, apierr.Wrap(apierr.InvalidJSON, err, "read body")
		}
		if int64(len(body)) > maxBody {
			return nil, apierr.New(apierr.MalformedRequest, "body exceeds %d bytes", maxBody)
		}
		if len(bytes.TrimSpace(body)) > 0 {
			return parseEnvelope(body, "body")
		}
	}

	if err := r.ParseMultipartForm(maxBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, apierr.Wrap(apierr.MalformedRequest, err, "parse form")
	}
	if s := r.Form.Get("json"); s != "" {
		return parseEnvelope([]byte(s), "json field")
	}
	if m, ok, err := fromFields(r.Form); ok {
		return m, err
	}
	return nil, apierr.New(apierr.MissingPayload, "request has no json body, json field or envelope fields")
}

// SanityCheck verifies the envelope carries something the codec can look at.
// Opaque payloads pass so that the codec can reject them with a precise kind.
func SanityCheck(m *message.Message) error {
	if m == nil {
		return apierr.New(apierr.MalformedRequest, "empty request")
	}
	if m.Opaque() {
		return nil
	}
	if m.Data == nil {
		return apierr.New(apierr.MalformedRequest, "request must contain data")
	}
	if len(m.Data.Names) == 0 && m.Data.Tensor == nil && !m.Data.HasNdarray() {
		return apierr.New(apierr.MalformedRequest, "data must hold names, tensor or ndarray")
	}
	return nil
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}

func parseEnvelope(b []byte, source string) (*message.Message, error) {
	var m message.Message
	if err := unmarshal(b, &m, source); err != nil {
		return nil, err
	}
	return &m, nil
}

func unmarshal(b []byte, v any, source string) error {
	err := json.Unmarshal(b, v)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apierr.Wrap(apierr.MalformedRequest, err, "%s has the wrong structure", source)
	}
	return apierr.Wrap(apierr.InvalidJSON, err, "%s is not valid JSON", source)
}

func fromFields(form url.Values) (*message.Message, bool, error) {
	var (
		m     message.Message
		found bool
	)
	if form.Has("data") {
		found = true
		var d message.DataDef
		if err := unmarshal([]byte(form.Get("data")), &d, "data field"); err != nil {
			return nil, true, err
		}
		m.Data = &d
	}
	if form.Has("meta") {
		found = true
		var md message.Meta
		if err := unmarshal([]byte(form.Get("meta")), &md, "meta field"); err != nil {
			return nil, true, err
		}
		m.Meta = &md
	}
	if form.Has("binData") {
		found = true
		b, err := base64.StdEncoding.DecodeString(form.Get("binData"))
		if err != nil {
			return nil, true, apierr.Wrap(apierr.MalformedRequest, err, "binData field is not base64")
		}
		m.BinData = b
	}
	if form.Has("strData") {
		found = true
		s := form.Get("strData")
		m.StrData = &s
	}
	return &m, found, nil
}
