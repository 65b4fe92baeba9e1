package earlystop

import (
	"errors"
	"fmt"
)

// InvalidStateError reports a snapshot that cannot be restored: a required
// field is missing, has the wrong type, or holds a value outside the legal
// range. Field is empty when the whole payload is unreadable.
type InvalidStateError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *InvalidStateError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid early stopping state: %s", e.Reason)
	}
	return fmt.Sprintf("invalid early stopping state: field %q: %s", e.Field, e.Reason)
}

// IsInvalidState reports whether err is (or wraps) an InvalidStateError
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// invalidState builds an InvalidStateError for field with a formatted reason
func invalidState(field, format string, args ...any) *InvalidStateError {
	return &InvalidStateError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
