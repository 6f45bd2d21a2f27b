package models

import "fmt"

// ValidationError is locally detected bad input. It never reaches the
// backend and the offending local state (draft, selection) is preserved so
// the user can correct and retry.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// BackendError wraps a gateway failure. The originating local state survives;
// every retry is a fresh user-initiated action, nothing retries
// automatically.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *BackendError) Unwrap() error { return e.Err }
