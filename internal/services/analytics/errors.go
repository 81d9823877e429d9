package analytics

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrInsufficientData    = errors.New("insufficient_data")
)

// InsufficientError reports how much data was seen versus needed.
type InsufficientError struct {
	Kind     error
	What     string
	Observed int
	Required int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("%s: %v (observed %d, required %d)", e.What, e.Kind, e.Observed, e.Required)
}

func (e *InsufficientError) Unwrap() error { return e.Kind }
