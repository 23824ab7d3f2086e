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

// Plugin identification headers attached to shipping hook responses so the
// authority can correlate behavior with deployed versions.
const (
	userAgentPrefix     = "Bifrost/"
	pluginVersionHeader = "X-Plugin-Version"
)

// ShippingEstimator is the service seam the shipping handler depends on.
type ShippingEstimator interface {
	Estimate(ctx context.Context, req hook.ShippingRequest) (*service.ShippingResult, error)
}

// ShippingHandler serves the shipping-and-tax hook.
type ShippingHandler struct {
	estimator ShippingEstimator
	version   string
	logger    zerolog.Logger
}

// NewShippingHandler creates the shipping hook handler.
func NewShippingHandler(estimator ShippingEstimator, version string, logger zerolog.Logger) *ShippingHandler {
	return &ShippingHandler{
		estimator: estimator,
		version:   version,
		logger:    logger.With().Str("hook", "shipping").Logger(),
	}
}

// Handle processes a shipping estimation delivery.
func (h *ShippingHandler) Handle(c echo.Context) error {
	start := time.Now()
	ctx := c.Request().Context()

	c.Response().Header().Set("User-Agent", userAgentPrefix+h.version)
	c.Response().Header().Set(pluginVersionHeader, h.version)

	if telemetry.Business != nil {
		telemetry.Business.HookReceived.WithLabelValues("shipping").Inc()
		defer func() {
			telemetry.Business.HookLatency.WithLabelValues("shipping").Observe(time.Since(start).Seconds())
		}()
	}
	telemetry.AddBreadcrumb("hook", "shipping received", map[string]interface{}{
		"trace_id": hook.TraceID(ctx),
	})

	if !hook.FromAuthority(ctx) {
		h.logger.Error().Msg("delivery reached handler without the authority marker")
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("shipping", "unauthenticated").Inc()
		}
		return respondCartFailure(c, domain.Unauthorized("shipping.estimate", "Unauthenticated hook delivery."), nil)
	}

	var req hook.ShippingRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn().Err(err).Msg("malformed payload")
		telemetry.CaptureError(err, map[string]interface{}{"trace_id": hook.TraceID(ctx)})
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("shipping", "malformed").Inc()
		}
		return respondCartFailure(c, err, nil)
	}
	if err := c.Validate(&req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid payload")
		telemetry.CaptureError(err, map[string]interface{}{"trace_id": hook.TraceID(ctx)})
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("shipping", "invalid").Inc()
		}
		return respondCartFailure(c, domain.Errorf(domain.EINVALID, "shipping.estimate", "Invalid hook payload."), nil)
	}

	result, err := h.estimator.Estimate(ctx, req)
	if err != nil {
		h.logger.Warn().Err(err).Str("display_id", req.Cart.DisplayID).Msg("shipping estimation rejected")
		telemetry.CaptureError(err, map[string]interface{}{
			"display_id":       req.Cart.DisplayID,
			"shipping_address": req.ShippingAddress,
			"trace_id":         hook.TraceID(ctx),
		})
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("shipping", "rejected").Inc()
		}
		return respondCartFailure(c, err, nil)
	}

	if telemetry.Business != nil {
		telemetry.Business.HookProcessed.WithLabelValues("shipping").Inc()
	}

	return c.JSON(http.StatusOK, result)
}
