package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidInput     = errors.New("invalid input")
)

// InsufficientDataError reports a computation that needs more observations than were supplied.
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d observations, have %d", e.Need, e.Have)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}
