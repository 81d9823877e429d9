package api

import (
	"context"
	"errors"

	"PriceFusion/internal/services/analytics"
	"PriceFusion/internal/services/fusion"
	xhttp "PriceFusion/pkg/http"
)

// toAppError maps domain failures onto the response envelope. Insufficient
// data is a 422 that reports what was observed against what was required.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var fe *fusion.Error
	if errors.As(err, &fe) {
		code := "ERR_FUSION_FAILED"
		if errors.Is(fe, fusion.ErrInsufficientSources) {
			code = "ERR_INSUFFICIENT_SOURCES"
		}
		ae := xhttp.UnprocessableError(code, fe.Error()).
			WithParam("observed", fe.Observed).
			WithParam("required", fe.Required)
		if len(fe.Rejections) > 0 {
			ae.WithParam("rejections", fe.Rejections)
		}
		return ae.WithError(err)
	}

	var ie *analytics.InsufficientError
	if errors.As(err, &ie) {
		code := "ERR_INSUFFICIENT_DATA"
		if errors.Is(ie, analytics.ErrInsufficientHistory) {
			code = "ERR_INSUFFICIENT_HISTORY"
		}
		return xhttp.UnprocessableError(code, ie.Error()).
			WithParam("observed", ie.Observed).
			WithParam("required", ie.Required).
			WithError(err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return xhttp.UnavailableError("upstream timed out").WithError(err)
	}
	return xhttp.InternalError("internal error").WithError(err)
}
