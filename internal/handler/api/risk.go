package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"PriceFusion/internal/domain/models"
	"PriceFusion/internal/service/metrics"
	xhttp "PriceFusion/pkg/http"
	xlogger "PriceFusion/pkg/logger"
)

type RiskService interface {
	Analyze(ctx context.Context, productKey string, windowDays int) (models.RiskAnalysis, error)
	AnalyzeSupplied(ctx context.Context, productKey string, quotes []models.Quote, prices []models.PricePoint, stock []models.StockObservation) (models.RiskAnalysis, error)
}

type RiskHandler struct {
	logger *xlogger.Logger
	svc    RiskService
}

var _ xhttp.Handler = (*RiskHandler)(nil)

func NewRiskHandler(logger *xlogger.Logger, svc RiskService) *RiskHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RiskHandler{logger: logger.With("api-risk"), svc: svc}
}

func (h *RiskHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/api/risk/:key", h.Get)
	g.POST("/api/risk", h.Analyze)
}

func (h *RiskHandler) Get(c echo.Context) error {
	defer observe("risk", time.Now())
	req := &models.RiskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ra, err := h.svc.Analyze(c.Request().Context(), req.ProductKey, req.WindowDays)
	if err != nil {
		return h.fail(c, "risk", req.ProductKey, err)
	}
	return xhttp.SuccessResponse(c, ra)
}

func (h *RiskHandler) Analyze(c echo.Context) error {
	defer observe("risk_supplied", time.Now())
	req := &models.RiskAnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ra, err := h.svc.AnalyzeSupplied(c.Request().Context(), req.ProductKey, req.Quotes, req.PriceHistory, req.StockHistory)
	if err != nil {
		return h.fail(c, "risk_supplied", req.ProductKey, err)
	}
	return xhttp.SuccessResponse(c, ra)
}

func (h *RiskHandler) fail(c echo.Context, endpoint, key string, err error) error {
	ae := toAppError(err)
	metrics.EndpointErrors.WithLabelValues(endpoint, ae.Code).Inc()
	if ae.Status >= 500 {
		h.logger.Error(endpoint+" failed", xlogger.String("product", key), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, ae)
}
