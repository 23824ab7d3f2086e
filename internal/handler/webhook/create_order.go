package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/service"
	"github.com/dukerupert/bifrost/internal/telemetry"
)

// CreateOrderHandler serves the order.create hook.
type CreateOrderHandler struct {
	orders OrderCreator
	// receivedURL is the storefront URL the authority redirects the
	// customer to after a successful order; empty disables the redirect.
	receivedURL string
	logger      zerolog.Logger
}

// OrderCreator is the service seam the handler depends on.
type OrderCreator interface {
	CreateOrder(ctx context.Context, tx hook.Transaction) (*service.OrderResult, error)
}

// NewCreateOrderHandler creates the order.create hook handler.
func NewCreateOrderHandler(orders OrderCreator, receivedURL string, logger zerolog.Logger) *CreateOrderHandler {
	return &CreateOrderHandler{
		orders:      orders,
		receivedURL: receivedURL,
		logger:      logger.With().Str("hook", "order.create").Logger(),
	}
}

// Handle processes an order.create delivery. Exactly one response is
// written no matter which branch runs; errors are reported before the
// envelope goes out.
func (h *CreateOrderHandler) Handle(c echo.Context) error {
	start := time.Now()
	ctx := c.Request().Context()

	if telemetry.Business != nil {
		telemetry.Business.HookReceived.WithLabelValues("order.create").Inc()
		defer func() {
			telemetry.Business.HookLatency.WithLabelValues("order.create").Observe(time.Since(start).Seconds())
		}()
	}
	telemetry.AddBreadcrumb("hook", "order.create received", map[string]interface{}{
		"trace_id": hook.TraceID(ctx),
	})

	if !hook.FromAuthority(ctx) {
		h.logger.Error().Msg("delivery reached handler without the authority marker")
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("order.create", "unauthenticated").Inc()
		}
		return respondOrderFailure(c, domain.Unauthorized("order.create", "Unauthenticated hook delivery."))
	}

	var tx hook.Transaction
	if err := c.Bind(&tx); err != nil {
		h.logger.Warn().Err(err).Msg("malformed payload")
		telemetry.CaptureError(err, map[string]interface{}{"trace_id": hook.TraceID(ctx)})
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("order.create", "malformed").Inc()
		}
		return respondOrderFailure(c, err)
	}
	if err := c.Validate(&tx); err != nil {
		h.logger.Warn().Err(err).Msg("invalid payload")
		telemetry.CaptureError(err, map[string]interface{}{"trace_id": hook.TraceID(ctx)})
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("order.create", "invalid").Inc()
		}
		return respondOrderFailure(c, domain.Errorf(domain.EINVALID, "order.create", "Invalid hook payload."))
	}

	result, err := h.orders.CreateOrder(ctx, tx)
	if err != nil {
		h.logger.Warn().Err(err).Str("display_id", tx.Order.Cart.DisplayID).Msg("order creation rejected")
		telemetry.CaptureError(err, map[string]interface{}{
			"display_id": tx.Order.Cart.DisplayID,
			"trace_id":   hook.TraceID(ctx),
		})
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("order.create", "rejected").Inc()
		}
		return respondOrderFailure(c, err)
	}

	if telemetry.Business != nil {
		telemetry.Business.HookProcessed.WithLabelValues("order.create").Inc()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":             "success",
		"message":            "Order create was successful",
		"display_id":         result.DisplayID,
		"total":              result.Order.GrandTotalCents,
		"order_received_url": h.receivedURLFor(tx.Order.Cart.OrderReference),
	})
}

// receivedURLFor returns the redirect URL, or empty when the payload
// carried no order reference.
func (h *CreateOrderHandler) receivedURLFor(orderReference string) string {
	if orderReference == "" {
		return ""
	}
	return h.receivedURL
}
