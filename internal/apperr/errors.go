// Package apperr defines the error kinds shared by the extractor, the job
// tracker and the HTTP layer. Handlers map a Kind to a status code; the Kind
// string itself is the stable machine-readable code sent to clients.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidURL   Kind = "invalid_url"
	KindExtraction   Kind = "extraction_failed"
	KindNotFound     Kind = "not_found"
	KindNotReady     Kind = "not_ready"
	KindTooLarge     Kind = "too_large"
	KindTimeout      Kind = "timeout"
	KindBusy         Kind = "busy"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

// Error carries a Kind, a client-facing message and the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so sentinels like ErrNotFound work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidURL = &Error{Kind: KindInvalidURL}
	ErrExtraction = &Error{Kind: KindExtraction}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrNotReady   = &Error{Kind: KindNotReady}
	ErrTooLarge   = &Error{Kind: KindTooLarge}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrBusy       = &Error{Kind: KindBusy}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the Kind of err. Context deadline errors count as timeouts;
// anything unrecognised is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Message returns the client-facing text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidURL, KindExtraction:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindNotReady:
		return http.StatusConflict
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
