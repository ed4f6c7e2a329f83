// Package apperr defines the typed failures shared by the generation pipeline.
package apperr

import (
	"errors"
	"strings"
)

// Kind categorizes a failure.
type Kind string

const (
	KindTimeout            Kind = "TIMEOUT"
	KindTransport          Kind = "TRANSPORT"
	KindBackendError       Kind = "BACKEND_ERROR"
	KindCatalogUnavailable Kind = "CATALOG_UNAVAILABLE"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindNotReady           Kind = "NOT_READY"
	KindGenerationFailed   Kind = "GENERATION_FAILED"
	KindAssetUnavailable   Kind = "ASSET_UNAVAILABLE"
	KindNotFound           Kind = "NOT_FOUND"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindInternal           Kind = "INTERNAL"
)

// Error is a failure carrying its kind and, for backend errors, the
// upstream status and body.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("] ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates an error of the given kind around err.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
