package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
)

type HealthService interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    HealthService
	cache HealthService
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

// NewHealthHandler takes the database and, optionally, the cache checker.
func NewHealthHandler(db HealthService, cache HealthService) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	c, cancel := context.WithTimeout(xhttp.Context(ctx), 2*time.Second)
	defer cancel()

	status := xhttp.StatusOK
	body := map[string]string{"status": "healthy", "database": "ok"}
	if err := h.db.Ping(c); err != nil {
		logger.Warn("health check failed", "component", "database", "error", err)
		status = xhttp.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "unavailable"
	}
	if h.cache != nil {
		body["cache"] = "ok"
		if err := h.cache.Ping(c); err != nil {
			logger.Warn("health check failed", "component", "cache", "error", err)
			status = xhttp.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["cache"] = "unavailable"
		}
	}
	writeJSON(ctx, status, body)
}

// PingFunc adapts a plain checker, such as a Redis ping, to HealthService.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}
