// Package apperr defines the error kinds surfaced by the analysis pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindService       Kind = "service"
	KindFormat        Kind = "format"
	KindInvariant     Kind = "invariant"
	KindCancelled     Kind = "cancelled"
)

// NoPiece marks errors that are not tied to a single piece.
const NoPiece = -1

// Error is a classified pipeline error. Piece is 0-based; Total is the piece count.
type Error struct {
	Kind    Kind
	Piece   int
	Total   int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + " error"
	if e.Piece != NoPiece {
		msg += fmt.Sprintf(" at piece %d/%d", e.Piece+1, e.Total)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Configf builds a configuration error. These are raised before any network call.
func Configf(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Piece: NoPiece, Message: fmt.Sprintf(format, args...)}
}

// Config wraps cause as a configuration error.
func Config(message string, cause error) *Error {
	return &Error{Kind: KindConfiguration, Piece: NoPiece, Message: message, Cause: cause}
}

// Service wraps a completion-service failure for the given piece.
func Service(piece, total int, cause error) *Error {
	return &Error{Kind: KindService, Piece: piece, Total: total, Message: "completion failed", Cause: cause}
}

// Cancelled reports that the run stopped before issuing the request for piece.
func Cancelled(piece, total int, cause error) *Error {
	return &Error{Kind: KindCancelled, Piece: piece, Total: total, Message: "run cancelled", Cause: cause}
}

// Format reports an unparseable structured response. It is recovered locally.
func Format(piece, total int, cause error) *Error {
	return &Error{Kind: KindFormat, Piece: piece, Total: total, Message: "response is not valid structured output", Cause: cause}
}

// Invariantf reports an internal defect.
func Invariantf(format string, args ...any) *Error {
	return &Error{Kind: KindInvariant, Piece: NoPiece, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
