package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"PriceFusion/internal/domain/models"
	domrepo "PriceFusion/internal/domain/repository"
	"PriceFusion/internal/service/metrics"
	"PriceFusion/internal/service/normalizer"
	xhttp "PriceFusion/pkg/http"
	xlogger "PriceFusion/pkg/logger"
)

type NormalizeHandler struct {
	logger     *xlogger.Logger
	normalizer domrepo.ProductNormalizer
}

var _ xhttp.Handler = (*NormalizeHandler)(nil)

func NewNormalizeHandler(logger *xlogger.Logger, n domrepo.ProductNormalizer) *NormalizeHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &NormalizeHandler{logger: logger.With("api-normalize"), normalizer: n}
}

func (h *NormalizeHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/api/normalize", h.Normalize)
}

func (h *NormalizeHandler) Normalize(c echo.Context) error {
	defer observe("normalize", time.Now())
	req := &models.NormalizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	np, err := h.normalizer.Normalize(c.Request().Context(), req.Name)
	if err != nil {
		var ae *xhttp.AppError
		if errors.Is(err, normalizer.ErrEmptyName) {
			ae = xhttp.BadRequestError(err.Error())
		} else {
			ae = toAppError(err)
			h.logger.Warn("normalize failed", xlogger.String("name", req.Name), xlogger.Error(err))
		}
		metrics.EndpointErrors.WithLabelValues("normalize", ae.Code).Inc()
		return xhttp.AppErrorResponse(c, ae)
	}
	return xhttp.SuccessResponse(c, np)
}
