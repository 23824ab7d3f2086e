// Package webhook implements the payment authority's hook endpoints:
// order creation, discount validation, and shipping estimation.
package webhook

import (
	"github.com/labstack/echo/v4"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/service"
)

// orderFailure is the create-order failure envelope.
type orderFailure struct {
	Status string       `json:"status"`
	Error  []orderError `json:"error"`
}

type orderError struct {
	Code int           `json:"code"`
	Data []errorReason `json:"data"`
}

type errorReason struct {
	Reason string `json:"reason"`
}

// cartFailure is the cart-update failure envelope (discount and shipping
// hooks). Cart totals are attached when a cart context exists.
type cartFailure struct {
	Status string              `json:"status"`
	Error  cartError           `json:"error"`
	Cart   *service.CartTotals `json:"cart,omitempty"`
}

type cartError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// respondOrderFailure writes the create-order failure envelope. The wire
// code comes from the error, defaulting to the general order-create code.
func respondOrderFailure(c echo.Context, err error) error {
	return c.JSON(domain.ErrorStatus(err), orderFailure{
		Status: "failure",
		Error: []orderError{{
			Code: domain.ErrorHookCode(err, domain.HookCodeGeneral),
			Data: []errorReason{{Reason: domain.ErrorMessage(err)}},
		}},
	})
}

// respondCartFailure writes the cart-update failure envelope, defaulting
// unclassified errors to the service error code.
func respondCartFailure(c echo.Context, err error, totals *service.CartTotals) error {
	return c.JSON(domain.ErrorStatus(err), cartFailure{
		Status: "failure",
		Error: cartError{
			Code:    domain.ErrorHookCode(err, domain.HookCodeService),
			Message: domain.ErrorMessage(err),
		},
		Cart: totals,
	})
}
