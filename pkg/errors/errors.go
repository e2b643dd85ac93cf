// Package errors provides structured error handling for strata
package errors

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	stringpool "github.com/ajitpratap0/strata/pkg/strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents protocol misuse and invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid operator arguments
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents unknown ops, columns or files
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConfig represents plan and engine configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents decode and encode failures
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeTimeout represents cancelled or expired runs
	ErrorTypeTimeout ErrorType = "timeout"
)

// Error is a typed failure. Type decides the CLI exit code; Details carry
// the offending op, column or offset into log output.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value pair reported by Fields.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: stringpool.Sprintf(format, args...)}
}

// Wrap retypes err. Details of a wrapped *Error are carried over so the
// outermost error still reports them. Wrap(nil, ...) is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	w := &Error{Type: errType, Message: message, Cause: err}
	var inner *Error
	if errors.As(err, &inner) && len(inner.Details) > 0 {
		w.Details = make(map[string]interface{}, len(inner.Details))
		for k, v := range inner.Details {
			w.Details[k] = v
		}
	}
	return w
}

// IsType reports whether the outermost *Error in err's chain has errType.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the outermost error type, or ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// Fields renders err for a zap log line: the error itself, its type and
// one field per detail in key order.
func Fields(err error) []zap.Field {
	if err == nil {
		return nil
	}
	fields := []zap.Field{zap.Error(err), zap.String("error_type", string(TypeOf(err)))}
	var e *Error
	if !errors.As(err, &e) {
		return fields
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, e.Details[k]))
	}
	return fields
}
