package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies why a backend, tracker or OAuth call failed.
type Kind int

const (
	// Unknown is returned by KindOf for errors that carry no classification.
	Unknown Kind = iota
	MissingCredential
	InvalidModel
	NetworkTimeout
	AuthRejected
	ResourceNotFound
	BackendFault
	BackendUnreachable
	UnrecognizedResponse
	ProtocolViolation
)

var kindNames = map[Kind]string{
	Unknown:              "Unknown",
	MissingCredential:    "MissingCredential",
	InvalidModel:         "InvalidModel",
	NetworkTimeout:       "NetworkTimeout",
	AuthRejected:         "AuthRejected",
	ResourceNotFound:     "ResourceNotFound",
	BackendFault:         "BackendFault",
	BackendUnreachable:   "BackendUnreachable",
	UnrecognizedResponse: "UnrecognizedResponse",
	ProtocolViolation:    "ProtocolViolation",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure. Msg is safe to show to the user; Err keeps
// the underlying cause for logs.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone: errors.Is(err, &Error{Kind: AuthRejected}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// New builds a classified error.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, op string, err error, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromStatus maps a non-2xx HTTP status code to a Kind. Statuses other than
// 401/403/404 are reported as BackendFault.
func FromStatus(code int) Kind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return AuthRejected
	case http.StatusNotFound:
		return ResourceNotFound
	default:
		return BackendFault
	}
}

// FromTransport classifies an error returned by an HTTP round trip, i.e. one
// where no response was received.
func FromTransport(op string, err error) *Error {
	if IsTimeout(err) {
		return Wrap(NetworkTimeout, op, err, "request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(BackendUnreachable, op, err, "request canceled")
	}
	return Wrap(BackendUnreachable, op, err, "no response from server")
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
