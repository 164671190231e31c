package types

import "fmt"

// ValidationError is returned for input rejected before anything is stored or fetched
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var (
	ErrInvalidAddress   = &ValidationError{Field: "token address", Reason: "expected 32-44 base58 characters"}
	ErrInvalidCondition = &ValidationError{Field: "condition", Reason: "expected above or below"}
	ErrInvalidTarget    = &ValidationError{Field: "target value", Reason: "must be a positive number"}
	ErrInvalidOwner     = &ValidationError{Field: "owner", Reason: "must not be empty"}
)
