// Package reqlog ships request/response payload records to sinks.
package reqlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"modelwrap/internal/frame"
	"modelwrap/internal/logging"
	"modelwrap/internal/message"
	"modelwrap/sink"
)

type Record struct {
	ID        string           `json:"id"`
	Puid      string           `json:"puid,omitempty"`
	Protocol  string           `json:"protocol"`
	Direction string           `json:"direction"`
	Request   *message.Message `json:"request,omitempty"`
	Response  *message.Message `json:"response,omitempty"`
	Error     string           `json:"error,omitempty"`
	Time      time.Time        `json:"time"`
}

// Logger fans records out to its sinks. A nil *Logger discards everything.
type Logger struct {
	sinks []sink.Adapter
	now   func() time.Time
}

func New(sinks ...sink.Adapter) *Logger {
	if len(sinks) == 0 {
		return nil
	}
	return &Logger{sinks: sinks, now: time.Now}
}

// Log records one call. Sink failures are logged, never returned.
func (l *Logger) Log(protocol, direction string, req, resp *message.Message, callErr error) {
	if l == nil {
		return
	}
	rec := Record{
		ID:        uuid.NewString(),
		Puid:      req.Puid(),
		Protocol:  protocol,
		Direction: direction,
		Request:   req,
		Response:  resp,
		Time:      l.now().UTC(),
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		logging.L().Warn("reqlog: encode", "id", rec.ID, "err", err)
		return
	}
	key := rec.Puid
	if key == "" {
		key = rec.ID
	}
	f := &frame.Frame{Key: []byte(key), Value: b, Timestamp: rec.Time}
	for _, s := range l.sinks {
		if err := s.Push(f); err != nil {
			logging.L().Warn("reqlog: push", "id", rec.ID, "err", err)
		}
	}
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("reqlog: close sink: %w", err))
		}
	}
	return errors.Join(errs...)
}
