// Package errs provides the error taxonomy shared by the upload and download
// pipelines, the storage backends and the HTTP layer.
//
// Every failure leaving a pipeline is an *Error whose Kind is one of the
// sentinel values below, so callers can branch with errors.Is without parsing
// messages.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is to test for them.
var (
	// ErrValidation indicates bad caller input: missing boundary, bad framing,
	// unusable file name.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyUpload indicates the source stream carried no bytes at all.
	ErrEmptyUpload = fmt.Errorf("%w: upload contained no data", ErrValidation)

	// ErrPartLimitExceeded indicates the object needs more parts than the
	// maximum supported object size allows.
	ErrPartLimitExceeded = errors.New("object exceeds maximum supported size")

	// ErrTransport indicates an object store call failed.
	ErrTransport = errors.New("object store request failed")

	// ErrNotFound indicates the object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrMissingEncryptionKey indicates the object metadata has no wrapped key.
	ErrMissingEncryptionKey = errors.New("object has no encryption key")

	// ErrKeyUnwrap indicates the wrapped key was rejected by the key protection
	// service or did not unwrap to a valid key and IV.
	ErrKeyUnwrap = errors.New("encryption key could not be unwrapped")

	// ErrCorruptObject indicates the ciphertext is not valid for its key.
	ErrCorruptObject = errors.New("object ciphertext is corrupt")

	// ErrCancelled indicates the caller cancelled the operation.
	ErrCancelled = errors.New("operation cancelled")

	// ErrTransactionClosed indicates Complete or Abort was called on a
	// transaction that already finished.
	ErrTransactionClosed = errors.New("upload transaction already finished")
)

// kinds is ordered by precedence for KindOf.
var kinds = []error{
	ErrCancelled,
	ErrEmptyUpload,
	ErrValidation,
	ErrPartLimitExceeded,
	ErrNotFound,
	ErrMissingEncryptionKey,
	ErrKeyUnwrap,
	ErrCorruptObject,
	ErrTransactionClosed,
	ErrTransport,
}

// Error is a classified failure of a single operation.
type Error struct {
	// Op is the operation that failed (e.g. "upload", "uploadPart", "getMetadata")
	Op string

	// Key is the object key, if known
	Key string

	// Kind is one of the sentinel errors of this package
	Kind error

	// Err is the underlying cause, may be nil
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil && !errors.Is(e.Kind, e.Err) {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Key, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New creates an Error of the given kind.
func New(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithKey adds object key context.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// Transport wraps a backend failure.
func Transport(op, key string, err error) *Error {
	return New(op, ErrTransport, err).WithKey(key)
}

// KindOf returns the sentinel kind of err, or nil if err is unclassified.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Classify turns err into an *Error. Cancellation wins over every other kind:
// when ctx is done or err is a context error the result is ErrCancelled.
// Already classified errors keep their kind; anything else is a transport
// failure.
func Classify(ctx context.Context, op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCancelled) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return New(op, ErrCancelled, err).WithKey(key)
	}
	if KindOf(err) != nil {
		return err
	}
	return Transport(op, key, err)
}

// IsClientFault reports whether err was caused by the caller's input.
func IsClientFault(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPartLimitExceeded) ||
		errors.Is(err, ErrNotFound)
}
