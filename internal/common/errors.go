// Package common defines the error taxonomy shared by every layer of the
// attestation service. Callers match kinds with errors.Is.
package common

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrInvalidInput is a malformed request: bad threshold, empty hash, unknown policy.
	ErrInvalidInput = Register(2, "invalid input", false)

	// ErrNotFound is returned when a document or signer is absent.
	ErrNotFound = Register(3, "not found", false)

	// ErrProofInvalid means the identity proof failed verification.
	ErrProofInvalid = Register(4, "identity proof invalid", false)

	// ErrAlreadySigned is a terminal result: the signer already signed the document.
	ErrAlreadySigned = Register(5, "already signed", false)

	// ErrThresholdAlreadyMet is a terminal result: no signature slot is left.
	ErrThresholdAlreadyMet = Register(6, "threshold already met", false)

	// ErrLedgerUnavailable is a transient attestation ledger failure.
	ErrLedgerUnavailable = Register(7, "ledger unavailable", true)

	// ErrStorageFailure is a transient repository failure.
	ErrStorageFailure = Register(8, "storage failure", true)

	// ErrNotReady is returned by finalize before the threshold is reached.
	ErrNotReady = Register(9, "not ready", false)

	// ErrNotRecipient means the signer is not on the document's recipient list.
	ErrNotRecipient = Register(10, "signer is not a recipient", false)

	// ErrUploadFailed is a transient content store failure.
	ErrUploadFailed = Register(11, "upload failed", true)

	// ErrVerifierUnavailable means the identity verifier could not be reached.
	ErrVerifierUnavailable = Register(12, "identity verifier unavailable", true)

	// ErrFinalizationBusy means another instance holds the finalization lock.
	ErrFinalizationBusy = Register(13, "finalization in progress", true)

	// ErrPolicyMismatch means the identity or proof kind does not match the document policy.
	ErrPolicyMismatch = Register(14, "identity policy mismatch", false)
)

// usedCodes keeps codes unique. Code 1 is reserved for errors outside the taxonomy.
var usedCodes = map[uint32]*Error{1: nil}

// Error is a root error kind. Runtime errors wrap one of the registered kinds
// so that transports can map them to status codes without string matching.
type Error struct {
	code      uint32
	desc      string
	retryable bool
}

// Register declares a new root error. Reusing a code panics, so call it only
// from package-level var blocks.
func Register(code uint32, desc string, retryable bool) *Error {
	if e, ok := usedCodes[code]; ok {
		panic(fmt.Sprintf("error with code %d is already registered: %v", code, e))
	}
	e := &Error{code: code, desc: desc, retryable: retryable}
	usedCodes[code] = e
	return e
}

func (e *Error) Error() string {
	return e.desc
}

// Code returns the registered numeric code.
func (e *Error) Code() uint32 {
	return e.code
}

// Retryable reports whether an operation failing with this kind may be retried as a whole.
func (e *Error) Retryable() bool {
	return e.retryable
}

// New returns an error of this kind with an additional description.
func (e *Error) New(msg string) error {
	return pkgerrors.Wrap(e, msg)
}

// Newf is New with formatting.
func (e *Error) Newf(format string, args ...any) error {
	return pkgerrors.Wrapf(e, format, args...)
}

// Wrap labels cause with this kind. Both errors.Is(err, e) and
// errors.Is(err, cause) hold for the result. A nil cause yields nil.
func (e *Error) Wrap(cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &kindError{kind: e, msg: msg, cause: pkgerrors.WithStack(cause)}
}

type kindError struct {
	kind  *Error
	msg   string
	cause error
}

func (k *kindError) Error() string {
	if k.msg == "" {
		return fmt.Sprintf("%s: %s", k.kind.desc, k.cause.Error())
	}
	return fmt.Sprintf("%s: %s: %s", k.kind.desc, k.msg, k.cause.Error())
}

func (k *kindError) Is(target error) bool {
	return target == k.kind
}

func (k *kindError) Unwrap() error {
	return k.cause
}

// KindOf returns the registered kind carried by err, or nil.
func KindOf(err error) *Error {
	if err == nil {
		return nil
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// CodeOf returns the registered code of err; 1 for errors outside the taxonomy, 0 for nil.
func CodeOf(err error) uint32 {
	if err == nil {
		return 0
	}
	if k := KindOf(err); k != nil {
		return k.code
	}
	return 1
}

// IsRetryable reports whether err belongs to a retryable kind.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k != nil && k.retryable
}

// ByCode returns the kind registered under code, or nil.
func ByCode(code uint32) *Error {
	return usedCodes[code]
}
