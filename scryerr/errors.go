// Package scryerr defines the error taxonomy shared across Scry's
// components: validation, sandbox, render, transport, and fatal
// initialization failures. Tool-level consumers switch on Kind to decide
// whether to surface a structured error response or log and continue.
package scryerr

import (
	"errors"
	"fmt"
)

// Kind tags an error with where in the pipeline it originated.
type Kind int

const (
	// Validation covers bad board names, out-of-range dimensions, and
	// oversize code — always surfaced as a tool-level error response.
	Validation Kind = iota
	// ScriptCompile covers sandbox compile failures.
	ScriptCompile
	// ScriptRuntime covers sandbox runtime failures, including resource-cap
	// terminations.
	ScriptRuntime
	// Render covers SVG parse, dimension, and rasterization failures.
	Render
	// TransportIO covers HTTP I/O and file-write failures. Never fatal.
	TransportIO
	// Fatal covers initialization-only failures (bind, directory creation).
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case ScriptCompile:
		return "script_compile"
	case ScriptRuntime:
		return "script_runtime"
	case Render:
		return "render"
	case TransportIO:
		return "transport_io"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a kind-tagged error carrying a human-readable message intended
// to be shown verbatim to the calling model in tool-level responses.
type Error struct {
	kind Kind
	msg  string
}

// New builds a kind-tagged error with the given message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf builds a kind-tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.msg }

// Kind reports the taxonomy tag this error was created with.
func (e *Error) Kind() Kind { return e.kind }

// KindOf extracts the Kind from err if it is (or wraps) a *Error, reporting
// ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.kind, true
	}
	return 0, false
}
