package domain

import "fmt"

// NotFoundError reports an unknown position id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("position %q not found", e.ID)
}

// InvalidStateError reports a lifecycle operation applied to a position in
// the wrong state, e.g. closing an already closed position.
type InvalidStateError struct {
	ID     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("position %q is %s", e.ID, e.Status)
}

// ValidationError reports rejected input on a ledger operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IOError wraps a storage or remote call failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
