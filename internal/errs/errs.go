// ABOUTME: Typed error kinds shared by the file client, auth session and controller
// ABOUTME: Callers branch on Kind via errors.Is against the sentinel values

package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the user-facing layer should react to it
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindNetwork
	KindValidation
	KindNotFound
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is comparisons. An *Error matches the sentinel of its Kind.
var (
	ErrAuth       = &Error{Kind: KindAuth}
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrServer     = &Error{Kind: KindServer}
)

// Error is a classified failure from a remote call or the session layer
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a classified error
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies an underlying error
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind of err, or KindUnknown when err is unclassified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Reason returns the text to show a user for err. Server-supplied messages win
// over wrapped transport errors.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
