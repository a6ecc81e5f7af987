package uploader

import (
	"errors"
	"fmt"
)

// Kind classifies an upload failure.
type Kind int

const (
	KindConfig       Kind = iota + 1 // missing/invalid parameter or folder reference
	KindCredential                   // malformed credential bundle
	KindAuth                         // token exchange rejected
	KindNotFound                     // parent folder missing or inaccessible
	KindInvalidState                 // parent folder trashed
	KindRemote                       // any other API failure
)

// Sentinels for errors.Is. Every *Error unwraps to the sentinel of its Kind.
var (
	ErrConfig       = errors.New("ConfigError")
	ErrCredential   = errors.New("CredentialError")
	ErrAuth         = errors.New("AuthError")
	ErrNotFound     = errors.New("NotFoundError")
	ErrInvalidState = errors.New("InvalidStateError")
	ErrRemote       = errors.New("RemoteError")
)

func (k Kind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindCredential:
		return ErrCredential
	case KindAuth:
		return ErrAuth
	case KindNotFound:
		return ErrNotFound
	case KindInvalidState:
		return ErrInvalidState
	case KindRemote:
		return ErrRemote
	default:
		return nil
	}
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is returned by every stage of the upload.
type Error struct {
	Kind    Kind
	Stage   State
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(kind Kind, stage State, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// ConfigError builds a KindConfig error raised before any stage runs.
func ConfigError(format string, args ...any) *Error {
	return newError(KindConfig, StateValidating, nil, format, args...)
}

// CredentialError builds a KindCredential error for failures obtaining the
// credential bundle, such as a missing secret or a failed decryption.
func CredentialError(cause error, format string, args ...any) *Error {
	return newError(KindCredential, StateValidating, cause, format, args...)
}
