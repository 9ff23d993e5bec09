// Package diag defines the error taxonomy shared by every translator in the
// toolchain (Assembler, VM Translator, Tokenizer/Parser, Code Generator).
//
// Every fatal condition a translator can hit boils down to one of a handful
// of kinds; callers at the CLI boundary only need the kind to decide on an
// exit code and a human-facing prefix, the wrapped cause carries the detail.
package diag

import "github.com/pkg/errors"

// Kind classifies a translator failure. See spec.md §7 for the authoritative
// description of each.
type Kind uint8

const (
	// InvalidInput covers argument shape, extension and missing-file errors
	// (a directory mode missing 'Sys.vm' or 'Main.jack', a bad extension, ...).
	InvalidInput Kind = iota
	// Lexical covers malformed integers, unterminated strings/comments and
	// identifiers starting with a digit.
	Lexical
	// Syntax covers a token that does not match the expected production.
	Syntax
	// Symbol covers undefined identifiers, duplicate symbols and attempts to
	// redefine a predefined assembler symbol.
	Symbol
	// Encoding covers unknown comp/dest/jump mnemonics in the assembler.
	Encoding
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case Lexical:
		return "lexical error"
	case Syntax:
		return "syntax error"
	case Symbol:
		return "symbol error"
	case Encoding:
		return "encoding error"
	default:
		return "unknown error"
	}
}

// Error is a Kind-tagged error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error with no wrapped cause.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Wrap builds a *Error wrapping 'cause', preserving its chain via pkg/errors.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: errors.WithMessage(cause, msg)}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, defaulting to InvalidInput for untagged errors reaching the CLI.
func KindOf(err error) (Kind, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return InvalidInput, false
}

// KindOrDefault extracts the Kind from err (see KindOf), or 'fallback' if err
// is untagged. Useful when re-wrapping an error whose own Kind should be
// preserved across a call boundary instead of being collapsed to one kind.
func KindOrDefault(err error, fallback Kind) Kind {
	if kind, ok := KindOf(err); ok {
		return kind
	}
	return fallback
}
