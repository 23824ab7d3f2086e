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

// DiscountApplier is the service seam the discount handler depends on.
type DiscountApplier interface {
	Apply(ctx context.Context, req hook.DiscountRequest) (*service.DiscountOutcome, *domain.Quote, error)
	CartTotals(ctx context.Context, q *domain.Quote) (service.CartTotals, error)
}

// DiscountHandler serves the discount validation hook.
type DiscountHandler struct {
	discounts DiscountApplier
	logger    zerolog.Logger
}

// NewDiscountHandler creates the discount hook handler.
func NewDiscountHandler(discounts DiscountApplier, logger zerolog.Logger) *DiscountHandler {
	return &DiscountHandler{
		discounts: discounts,
		logger:    logger.With().Str("hook", "discount").Logger(),
	}
}

// Handle processes a discount validation delivery. Failure envelopes attach
// the current cart totals when a cart context was resolved before the error.
func (h *DiscountHandler) Handle(c echo.Context) error {
	start := time.Now()
	ctx := c.Request().Context()

	if telemetry.Business != nil {
		telemetry.Business.HookReceived.WithLabelValues("discount").Inc()
		defer func() {
			telemetry.Business.HookLatency.WithLabelValues("discount").Observe(time.Since(start).Seconds())
		}()
	}
	telemetry.AddBreadcrumb("hook", "discount received", map[string]interface{}{
		"trace_id": hook.TraceID(ctx),
	})

	if !hook.FromAuthority(ctx) {
		h.logger.Error().Msg("delivery reached handler without the authority marker")
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("discount", "unauthenticated").Inc()
		}
		return respondCartFailure(c, domain.Unauthorized("discount.apply", "Unauthenticated hook delivery."), nil)
	}

	var req hook.DiscountRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Warn().Err(err).Msg("malformed payload")
		telemetry.CaptureError(err, map[string]interface{}{"trace_id": hook.TraceID(ctx)})
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("discount", "malformed").Inc()
		}
		return respondCartFailure(c, err, nil)
	}
	if err := c.Validate(&req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid payload")
		telemetry.CaptureError(err, map[string]interface{}{"trace_id": hook.TraceID(ctx)})
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("discount", "invalid").Inc()
		}
		return respondCartFailure(c, domain.Errorf(domain.EINVALID, "discount.apply", "Invalid hook payload."), nil)
	}

	outcome, quote, err := h.discounts.Apply(ctx, req)
	if err != nil {
		h.logger.Warn().Err(err).Str("code", req.Code()).Msg("discount rejected")
		telemetry.CaptureError(err, map[string]interface{}{
			"discount_code": req.Code(),
			"trace_id":      hook.TraceID(ctx),
		})
		if telemetry.Business != nil {
			telemetry.Business.HookFailed.WithLabelValues("discount", "rejected").Inc()
		}

		var totals *service.CartTotals
		if quote != nil {
			if t, terr := h.discounts.CartTotals(ctx, quote); terr == nil {
				totals = &t
			}
		}
		return respondCartFailure(c, err, totals)
	}

	if telemetry.Business != nil {
		telemetry.Business.HookProcessed.WithLabelValues("discount").Inc()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":          "success",
		"discount_code":   outcome.Result.Code,
		"discount_amount": outcome.Result.AmountCents,
		"description":     outcome.Result.Description,
		"discount_type":   outcome.Result.Type,
		"cart":            outcome.Cart,
	})
}
