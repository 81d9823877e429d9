package fusion

import (
	"errors"
	"fmt"

	"PriceFusion/internal/domain/models"
)

var (
	ErrInsufficientSources = errors.New("insufficient sources")
	ErrFusionFailed        = errors.New("fusion failed")
)

// Error is the failure value returned by Fuse. It matches
// ErrInsufficientSources or ErrFusionFailed through errors.Is.
type Error struct {
	Reason     error
	Detail     string
	Observed   int
	Required   int
	Rejections []models.Rejection
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: observed %d valid quotes, required %d", e.Reason, e.Observed, e.Required)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Reason }
