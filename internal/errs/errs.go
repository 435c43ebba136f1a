// Package errs defines the typed failures surfaced by the conversion core.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a failure. Callers branch on the code, never on the message.
type Code string

const (
	InvalidArgument  Code = "INVALID_ARGUMENT"
	MissingArtifact  Code = "MISSING_ARTIFACT"
	CodecFailure     Code = "CODEC_FAILURE"
	UnsupportedRoute Code = "UNSUPPORTED_ROUTE"

	// InvalidPath and EmptyInput refine InvalidArgument.
	InvalidPath Code = "INVALID_PATH"
	EmptyInput  Code = "EMPTY_INPUT"
)

// Sentinels for errors.Is.
var (
	ErrInvalidArgument  = &Error{Code: InvalidArgument}
	ErrMissingArtifact  = &Error{Code: MissingArtifact}
	ErrCodecFailure     = &Error{Code: CodecFailure}
	ErrUnsupportedRoute = &Error{Code: UnsupportedRoute}
	ErrInvalidPath      = &Error{Code: InvalidPath}
	ErrEmptyInput       = &Error{Code: EmptyInput}
)

// Error is a classified failure. Hop names the conversion edge that failed,
// when the failure happened inside a chain.
type Error struct {
	Code    Code
	Op      string
	Hop     string
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Hop != "" {
		b.WriteString(e.Hop)
		b.WriteString(": ")
	}
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " ")))
	}
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code. InvalidPath and EmptyInput also match InvalidArgument.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == InvalidArgument && (e.Code == InvalidPath || e.Code == EmptyInput)
}

// New creates an Error with a message.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, op, format string, args ...any) *Error {
	return New(code, op, fmt.Sprintf(format, args...))
}

// Wrap classifies cause under code. An existing *Error keeps its own code.
func Wrap(code Code, op string, cause error, message string) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}

// WithHop returns a copy of err attributed to hop. An already attributed
// error keeps its original hop.
func WithHop(err error, hop string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Code: CodecFailure, Hop: hop, Cause: err}
	}
	if e.Hop != "" {
		return err
	}
	cp := *e
	cp.Hop = hop
	return &cp
}

// CodeOf returns the code of err, or "" when err is not classified.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HopOf returns the hop a classified error is attributed to.
func HopOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hop
	}
	return ""
}
