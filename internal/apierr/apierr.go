// Package apierr is the error taxonomy of the transform path and the single
// place where errors are classified into HTTP statuses and gRPC codes.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"modelwrap/internal/message"
)

type Kind int

const (
	// Unknown marks errors that did not originate in this package.
	Unknown Kind = iota
	MissingPayload
	InvalidJSON
	MalformedRequest
	MalformedPayload
	InternalInconsistency
	TransformFailed
)

const Domain = "modelwrap"

func (k Kind) String() string {
	switch k {
	case MissingPayload:
		return "MISSING_PAYLOAD"
	case InvalidJSON:
		return "INVALID_JSON"
	case MalformedRequest:
		return "MALFORMED_REQUEST"
	case MalformedPayload:
		return "MALFORMED_PAYLOAD"
	case InternalInconsistency:
		return "INTERNAL_INCONSISTENCY"
	case TransformFailed:
		return "TRANSFORM_FAILED"
	default:
		return "UNKNOWN"
	}
}

// ClientFault reports whether the caller sent something unusable.
func (k Kind) ClientFault() bool {
	switch k {
	case MissingPayload, InvalidJSON, MalformedRequest, MalformedPayload:
		return true
	default:
		return false
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apierr.New(k, ""))
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	if KindOf(err).ClientFault() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Body renders err as the {"status": {...}} failure envelope.
func Body(err error) *message.Message {
	return &message.Message{Status: &message.Status{
		Code:   int32(HTTPStatus(err)),
		Info:   info(err),
		Reason: KindOf(err).String(),
		Status: message.StatusFailure,
	}}
}

// GRPCStatus maps err to a gRPC status carrying an ErrorInfo with the kind.
func GRPCStatus(err error) *status.Status {
	if KindOf(err) == Unknown {
		if s, ok := status.FromError(err); ok {
			return s
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return status.FromContextError(err)
		}
	}
	code := codes.Internal
	if KindOf(err).ClientFault() {
		code = codes.InvalidArgument
	}
	st := status.New(code, info(err))
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: KindOf(err).String(),
		Domain: Domain,
	})
	if derr != nil {
		return st
	}
	return detailed
}

func info(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Msg
	}
	return err.Error()
}
