package domain

import "errors"

// Error kinds returned by the order core. Callers match them with errors.Is; the
// wrapping error message carries the human-readable reason.
var (
	ErrValidation        = errors.New("validation_error")
	ErrNotFound          = errors.New("not_found")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrBelowMinimumOrder = errors.New("below_minimum_order")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrConflict          = errors.New("conflict")
)

var kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrInsufficientStock,
	ErrBelowMinimumOrder,
	ErrUnauthorized,
	ErrInvalidTransition,
	ErrConflict,
}

// Kind returns the sentinel an error wraps, or nil for errors outside the taxonomy.
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// StorageError is a backing store failure. Its message carries only the kind
// and a reason that is safe to show clients; the driver error is reachable
// through errors.Is/As and Detail.
type StorageError struct {
	Kind   error
	Reason string
	Err    error
}

func NewStorageError(kind error, reason string, err error) *StorageError {
	return &StorageError{Kind: kind, Reason: reason, Err: err}
}

func (e *StorageError) Error() string {
	return e.Kind.Error() + ": " + e.Reason
}

func (e *StorageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Detail is err's message followed by the storage cause, if any. It is meant
// for logs, never for responses.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var se *StorageError
	if errors.As(err, &se) && se.Err != nil {
		return err.Error() + ": " + se.Err.Error()
	}
	return err.Error()
}
