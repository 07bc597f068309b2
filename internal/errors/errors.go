// Package errors provides the pipeline's error taxonomy. Every stage reports
// failures as an *AppError so callers can decide between aborting, isolating
// a single segment, or falling back to another backend.
package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies a failure.
type Code int

const (
	Unknown Code = iota
	// ModelUnavailable covers missing credentials, weights or an unreachable
	// backend. Fatal to the stage unless a fallback exists.
	ModelUnavailable
	// InferenceError is a bad input to a single model call.
	InferenceError
	// MalformedSegment is an invalid diarization interval.
	MalformedSegment
	Cancelled
	Internal
)

func (c Code) String() string {
	switch c {
	case ModelUnavailable:
		return "MODEL_UNAVAILABLE"
	case InferenceError:
		return "INFERENCE_ERROR"
	case MalformedSegment:
		return "MALFORMED_SEGMENT"
	case Cancelled:
		return "CANCELLED"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// AppError is the base error type with structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf returns the code of the outermost AppError in err's chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

// IsCode checks if an error carries a specific code anywhere in its chain.
func IsCode(err error, code Code) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// FromGRPCError maps a gRPC status error onto the taxonomy.
func FromGRPCError(err error, msg string) *AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return Wrap(err, Unknown, msg)
	}
	return Wrap(err, grpcToCode(st.Code()), msg).WithMetadata("grpc_code", st.Code().String())
}

func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.Unavailable, codes.Unauthenticated, codes.PermissionDenied,
		codes.FailedPrecondition, codes.NotFound, codes.Unimplemented:
		return ModelUnavailable
	case codes.InvalidArgument, codes.Internal, codes.DataLoss, codes.OutOfRange:
		return InferenceError
	case codes.Canceled, codes.DeadlineExceeded:
		return Cancelled
	default:
		return Unknown
	}
}
