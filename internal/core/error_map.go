package core

import (
	"context"
	"errors"
)

// CodedError is implemented by domain errors that carry a machine-readable code.
type CodedError interface {
	error
	ErrorCode() string
}

// ErrorCode returns a stable label for err, suitable for metrics and logs.
func ErrorCode(err error) string {
	if err == nil {
		return "ok"
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal_error"
	}
}
