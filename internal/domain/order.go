package domain

import (
	"context"
	"time"
)

// Order domain errors.
var (
	ErrOrderNotFound      = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrOrderAlreadyExists = &Error{Code: ECONFLICT, HookCode: HookCodeOrderAlreadyExists, Message: "Order has already been created"}
)

// Order is created at most once per external transaction, keyed by the
// increment ID reserved on the quote.
type Order struct {
	ID              int64
	IncrementID     string
	QuoteID         int64
	Currency        string
	SubtotalCents   int64
	DiscountCents   int64
	ShippingCents   int64
	TaxCents        int64
	GrandTotalCents int64
	Items           []OrderItem
	CreatedAt       time.Time
}

// OrderItem snapshots a quote line item at materialization time.
type OrderItem struct {
	SKU            string
	Name           string
	Quantity       int32
	UnitPriceCents int64
	RowTotalCents  int64
}

// OrderStore is the narrow seam over the platform's order persistence.
type OrderStore interface {
	// GetOrderByIncrementID returns the order for an increment ID, or
	// ErrOrderNotFound. The existence check is the duplicate-webhook guard;
	// callers must treat it as a hard precondition before creating.
	GetOrderByIncrementID(ctx context.Context, incrementID string) (*Order, error)

	// CreateOrder persists the order and its items. Implementations must
	// enforce increment-ID uniqueness and return ErrOrderAlreadyExists on
	// conflict so concurrent duplicate deliveries cannot both succeed.
	CreateOrder(ctx context.Context, o *Order) (*Order, error)
}
