// Package signalerr holds the error taxonomy shared by the linking, backup and
// transport code.
package signalerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	NotRegistered
	AlreadyRegistered
	RegistrationFailed
	LinkingFailed
	ConnectionFailed
	SendFailed
	ReceiveFailed
	AttachmentError
	CryptoError
	StorageError
	NetworkError
	ProtocolError
)

var kindNames = map[Kind]string{
	Unknown:            "unknown error",
	NotRegistered:      "not registered",
	AlreadyRegistered:  "already registered",
	RegistrationFailed: "registration failed",
	LinkingFailed:      "linking failed",
	ConnectionFailed:   "connection failed",
	SendFailed:         "message send failed",
	ReceiveFailed:      "message receive failed",
	AttachmentError:    "attachment error",
	CryptoError:        "crypto error",
	StorageError:       "storage error",
	NetworkError:       "network error",
	ProtocolError:      "protocol error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure with an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of the outermost classified error in err's chain,
// or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
