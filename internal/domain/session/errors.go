package session

import "errors"

var (
	ErrAlreadyExists = errors.New("session already exists")
	ErrNotFound      = errors.New("session not found")
	ErrNotReady      = errors.New("session not connected")
	ErrAuthFailure   = errors.New("authentication failed")
	ErrTransport     = errors.New("transport error")
	ErrInternal      = errors.New("internal error")
	ErrInvalidInput  = errors.New("invalid input")
)

// Kind classifies an error returned by the session layer.
type Kind string

const (
	KindAlreadyExists Kind = "already_exists"
	KindNotFound      Kind = "not_found"
	KindNotReady      Kind = "not_ready"
	KindAuthFailure   Kind = "auth_failure"
	KindTransport     Kind = "transport"
	KindInternal      Kind = "internal"
	KindInvalidInput  Kind = "invalid_input"
)

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotReady):
		return KindNotReady
	case errors.Is(err, ErrAuthFailure):
		return KindAuthFailure
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindInternal
	}
}
