package core

import (
	"errors"
	"fmt"

	"github.com/nasdf/docproxy/constraint"
	"github.com/nasdf/docproxy/transport"
)

var (
	// ErrTerminalState is returned when an operation is attempted on a deleted document.
	ErrTerminalState = errors.New("document is deleted")
	// ErrIdentityRequired is returned when an operation needs a document identity.
	ErrIdentityRequired = errors.New("document has no identity")
	// ErrMissingContext is returned when a detached document without a collection is saved.
	ErrMissingContext = errors.New("document has no collection")
	// ErrNotFound is returned when the remote document does not exist.
	ErrNotFound = transport.ErrNotFound
	// ErrMissingField is returned when a field is not present in the document or map.
	ErrMissingField = errors.New("field not found")
	// ErrNotLoaded is returned when document data is required but was never fetched.
	ErrNotLoaded = errors.New("document is not loaded")
	// ErrConstraint is matched by invalid field names and nesting depth violations.
	ErrConstraint = constraint.ErrConstraint
	// ErrUnsupportedValue is returned when a value cannot be stored in a document.
	ErrUnsupportedValue = errors.New("unsupported value")
	// ErrIndexOutOfRange is returned when a list index is invalid.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrValueNotFound is returned when a list does not contain a value.
	ErrValueNotFound = errors.New("value not found")
)

func terminalError(op string) error {
	return fmt.Errorf("cannot %s: %w", op, ErrTerminalState)
}

func identityError(op string) error {
	return fmt.Errorf("cannot %s on a detached document: %w", op, ErrIdentityRequired)
}

func missingFieldError(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

func indexError(index, length int) error {
	return fmt.Errorf("%w: index %d with length %d", ErrIndexOutOfRange, index, length)
}
