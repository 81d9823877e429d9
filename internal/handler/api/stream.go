package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	xhttp "PriceFusion/pkg/http"
	xlogger "PriceFusion/pkg/logger"
)

// Upgrader upgrades a request to a websocket and serves it until it closes.
type Upgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

// StreamHandler exposes the live fused-price feed.
type StreamHandler struct {
	logger *xlogger.Logger
	hub    Upgrader
}

var _ xhttp.Handler = (*StreamHandler)(nil)

func NewStreamHandler(logger *xlogger.Logger, hub Upgrader) *StreamHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &StreamHandler{logger: logger.With("api-stream"), hub: hub}
}

func (h *StreamHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws/prices", h.Prices)
}

func (h *StreamHandler) Prices(c echo.Context) error {
	// on failure the upgrader has already written the HTTP error
	if err := h.hub.ServeWS(c.Response(), c.Request()); err != nil {
		h.logger.Debug("websocket upgrade failed", xlogger.String("remote", c.RealIP()), xlogger.Error(err))
	}
	return nil
}
