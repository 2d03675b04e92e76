package browser

import (
	"errors"
	"fmt"
)

var (
	ErrClosed         = errors.New("browser is closed")
	ErrNoDocument     = errors.New("not viewing any document")
	ErrNotHTML        = errors.New("not viewing HTML")
	ErrHistoryStart   = errors.New("already at start of history")
	ErrNoFormSelected = errors.New("no form selected")

	ErrLinkNotFound = errors.New("link not found")
	ErrFormNotFound = errors.New("form not found")
)

// StateError reports a verb that is invalid in the browser's current state.
type StateError struct {
	Op  string
	Err error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("browser: %s: %v", e.Op, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a link or form search with no match.
type NotFoundError struct {
	Query string
	Err   error
}

func (e *NotFoundError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("browser: %v", e.Err)
	}
	return fmt.Sprintf("browser: %v: %s", e.Err, e.Query)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func stateError(op string, err error) error {
	return &StateError{Op: op, Err: err}
}
