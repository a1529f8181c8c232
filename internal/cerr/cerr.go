// Package cerr holds the structured error values the compiler core hands
// back to its caller: a parse error with a source offset, and the internal
// invariant violations the HIR builder raises when its contract is
// violated.
package cerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Type classifies a CandorError the way sentra/internal/errors classifies
// a SentraError, trimmed to the two kinds this core actually raises.
type Type string

const (
	// SyntaxError is user-visible: the parser could not make sense of the
	// token stream at Offset.
	SyntaxError Type = "SyntaxError"
	// InternalError is a programming error — an invariant the HIR builder
	// assumes was violated. Never user-visible.
	InternalError Type = "InternalError"
)

// Location pinpoints a position in the source buffer by byte offset, not
// line/column — the token stream this core consumes carries only offsets
// (spec's Token{kind, offset, length, text}).
type Location struct {
	Offset int
}

// CandorError is the error value returned by Parse on failure, and the
// value wrapped (via pkg/errors) when an internal invariant is violated.
type CandorError struct {
	Type     Type
	Message  string
	Location Location
	Source   string // optional source snippet for display
	cause    error
}

func (e *CandorError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Type))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	fmt.Fprintf(&sb, " (offset %d)", e.Location.Offset)
	if e.Source != "" {
		sb.WriteString("\n  ")
		sb.WriteString(e.Source)
	}
	return sb.String()
}

// Unwrap exposes the wrapped cause, if any, so errors.Is/As keep working
// across an internal-error wrap.
func (e *CandorError) Unwrap() error { return e.cause }

// NewSyntaxError builds the sentinel a parser production returns on the
// first unrecoverable token it sees (spec §7).
func NewSyntaxError(message string, offset int) *CandorError {
	return &CandorError{
		Type:     SyntaxError,
		Message:  message,
		Location: Location{Offset: offset},
	}
}

// WithSource attaches the source line or snippet surrounding the error, for
// display by a caller such as cmd/candorc.
func (e *CandorError) WithSource(source string) *CandorError {
	e.Source = source
	return e
}

// Internal wraps a violated invariant (an emit into a closed block, a
// break/continue outside a loop, an unsupported AST node, ...) with a
// captured stack via
// pkg/errors, since these are programming errors meant for a developer
// reading a panic, not a user-facing diagnostic.
func Internal(offset int, format string, args ...interface{}) *CandorError {
	msg := fmt.Sprintf(format, args...)
	return &CandorError{
		Type:     InternalError,
		Message:  msg,
		Location: Location{Offset: offset},
		cause:    errors.WithStack(errors.New(msg)),
	}
}
