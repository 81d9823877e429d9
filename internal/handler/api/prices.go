package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/service/metrics"
	"PriceFusion/internal/services/fusion"
	xhttp "PriceFusion/pkg/http"
	xlogger "PriceFusion/pkg/logger"
)

// PriceService is what the price routes need from the fusion use case.
type PriceService interface {
	GetPrice(ctx context.Context, productKey string) (models.FusedPrice, error)
	Refresh(ctx context.Context, productKey string) (models.FusedPrice, error)
	FuseQuotes(ctx context.Context, productKey string, quotes []models.Quote, opts fusion.Options) (models.FusedPrice, error)
	DefaultOptions() fusion.Options
}

// PriceHandler serves fused prices.
type PriceHandler struct {
	logger *xlogger.Logger
	svc    PriceService
}

var _ xhttp.Handler = (*PriceHandler)(nil)

func NewPriceHandler(logger *xlogger.Logger, svc PriceService) *PriceHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PriceHandler{logger: logger.With("api-prices"), svc: svc}
}

func (h *PriceHandler) RegisterRoutes(g *echo.Group) {
	api := g.Group("/api/prices")
	api.POST("/fuse", h.Fuse)
	api.GET("/:key", h.Get)
}

// Get returns the fused price, recomputing it when refresh=true.
func (h *PriceHandler) Get(c echo.Context) error {
	defer observe("price", time.Now())
	req := &models.PriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var (
		fp  models.FusedPrice
		err error
	)
	if req.Refresh {
		fp, err = h.svc.Refresh(c.Request().Context(), req.ProductKey)
	} else {
		fp, err = h.svc.GetPrice(c.Request().Context(), req.ProductKey)
	}
	if err != nil {
		return h.fail(c, "price", req.ProductKey, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, fp)
}

// Fuse fuses caller-supplied quotes. Options left out of the body keep the
// configured defaults.
func (h *PriceHandler) Fuse(c echo.Context) error {
	defer observe("fuse", time.Now())
	req := &models.FuseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	opts := h.svc.DefaultOptions()
	if v := req.Options.EnableValidation; v != nil {
		opts.EnableValidation = *v
	}
	if v := req.Options.EnableBrandPrices; v != nil {
		opts.EnableBrandPrices = *v
	}
	if v := req.Options.UseDynamicTrust; v != nil {
		opts.UseDynamicTrust = *v
	}
	if req.Options.MinSourceCount > 0 {
		opts.MinSourceCount = req.Options.MinSourceCount
	}

	fp, err := h.svc.FuseQuotes(c.Request().Context(), req.ProductKey, req.Quotes, opts)
	if err != nil {
		return h.fail(c, "fuse", req.ProductKey, err)
	}
	return xhttp.SuccessResponse(c, fp)
}

func (h *PriceHandler) fail(c echo.Context, endpoint, key string, err error) error {
	ae := toAppError(err)
	metrics.EndpointErrors.WithLabelValues(endpoint, ae.Code).Inc()
	if ae.Status >= 500 {
		h.logger.Error(endpoint+" failed", xlogger.String("product", key), xlogger.Error(err))
	} else {
		h.logger.Debug(endpoint+" rejected", xlogger.String("product", key), xlogger.String("code", ae.Code))
	}
	return xhttp.AppErrorResponse(c, ae)
}

func observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
