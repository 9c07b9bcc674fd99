// Package errl carries the error taxonomy of the issuance and verification engine.
//
// Every error that reaches a caller has a machine-distinguishable Kind and a
// human-readable message. Callers branch on Kind, never on the message text.
package errl

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	// KindValidation means the issuer input was rejected. The user corrects and resubmits.
	KindValidation Kind = "ValidationError"
	// KindRender means the drawing surface could not be obtained. Retry is possible.
	KindRender Kind = "RenderError"
	// KindNetworkUnavailable means no ledger endpoint answered.
	KindNetworkUnavailable Kind = "NetworkUnavailable"
	// KindContractNotDeployed means no registry address is known for the connected network.
	KindContractNotDeployed Kind = "ContractNotDeployed"
	// KindSubmissionRejected means the ledger refused the write. Terminal for that submission.
	KindSubmissionRejected Kind = "SubmissionRejected"
	// KindInvalidFingerprintFormat means a fingerprint failed the syntax check.
	KindInvalidFingerprintFormat Kind = "InvalidFingerprintFormat"
	// KindNotFound is used by the HTTP surface for unknown local records.
	KindNotFound Kind = "NotFound"
	// KindInternal is anything else.
	KindInternal Kind = "Internal"
)

// KindedError is the structured error type.
type KindedError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *KindedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *KindedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a kinded error with a stack trace attached.
func New(kind Kind, msg string) error {
	return pkgerrors.WithStack(&KindedError{Kind: kind, Message: msg})
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap returns a kinded error that wraps cause.
// A nil cause is equivalent to New.
func Wrap(kind Kind, cause error, msg string) error {
	return pkgerrors.WithStack(&KindedError{Kind: kind, Message: msg, Cause: cause})
}

// KindOf returns the Kind of the outermost KindedError in the chain, or
// KindInternal if err carries no kind. It returns "" for a nil error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ke *KindedError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindInternal
}

// Is reports whether err is (or wraps) a KindedError of the given kind.
func Is(err error, kind Kind) bool {
	var ke *KindedError
	if !errors.As(err, &ke) {
		return false
	}
	return ke.Kind == kind
}

// Message returns the human-readable message of the outermost KindedError,
// falling back to err.Error().
func Message(err error) string {
	var ke *KindedError
	if errors.As(err, &ke) {
		return ke.Error()
	}
	return err.Error()
}

// Errorf formats an error like fmt.Errorf (so %w works) and records the call stack.
func Errorf(format string, args ...any) error {
	return pkgerrors.WithStack(fmt.Errorf(format, args...))
}

// Error records the call stack on err. It returns nil if err is nil.
func Error(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}
