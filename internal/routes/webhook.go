// Package routes wires the HTTP surface: the authority's hook endpoints
// plus the operational endpoints.
package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dukerupert/bifrost/internal/handler/webhook"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/middleware"
)

// WebhookDeps carries the handlers and collaborators the hook routes need.
type WebhookDeps struct {
	CreateOrder *webhook.CreateOrderHandler
	Discount    *webhook.DiscountHandler
	Shipping    *webhook.ShippingHandler
	Auth        hook.Authenticator
	Logger      zerolog.Logger
}

// RegisterWebhookRoutes registers the authority's hook endpoints. Every
// hook route verifies the delivery signature before the handler runs.
func RegisterWebhookRoutes(e *echo.Echo, deps WebhookDeps) {
	g := e.Group("/hooks", middleware.HookAuth(deps.Auth, deps.Logger))
	g.POST("/create_order", deps.CreateOrder.Handle)
	g.POST("/discount", deps.Discount.Handle)
	g.POST("/shipping", deps.Shipping.Handle)
}

// RegisterOperationalRoutes registers health and metrics endpoints.
func RegisterOperationalRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
