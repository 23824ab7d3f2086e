package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/telemetry"
)

// CartSession is the resolved pair of quotes a hook operates on.
type CartSession struct {
	ParentQuoteID    int64
	IncrementID      string
	ImmutableQuoteID int64
	Parent           *domain.Quote
	Immutable        *domain.Quote
}

// CartGuard resolves and validates the cart referenced by a hook payload.
// Every failure carries the insufficient-information wire code; the HTTP
// status distinguishes missing carts (404) from unusable ones (422).
type CartGuard struct {
	quotes  domain.QuoteStore
	orders  domain.OrderStore
	regions domain.RegionStore
	logger  zerolog.Logger
}

// NewCartGuard creates a cart guard.
func NewCartGuard(quotes domain.QuoteStore, orders domain.OrderStore, regions domain.RegionStore, logger zerolog.Logger) *CartGuard {
	return &CartGuard{
		quotes:  quotes,
		orders:  orders,
		regions: regions,
		logger:  logger.With().Str("component", "cart_guard").Logger(),
	}
}

func insufficientInfo(code, format string, args ...interface{}) error {
	return domain.HookErrorf(code, domain.HookCodeInsufficientInfo, "cart.guard", format, args...)
}

// Resolve validates the payload's cart references and loads both quotes.
// Unexpected store failures are reported and fail closed as not-found so a
// transient outage never leaks cart state to the authority.
func (g *CartGuard) Resolve(ctx context.Context, cart hook.TransactionCart) (*CartSession, error) {
	if strings.TrimSpace(cart.OrderReference) == "" {
		err := insufficientInfo(domain.ENOTFOUND, "The cart reference is not found.")
		telemetry.CaptureError(err, map[string]interface{}{"display_id": cart.DisplayID})
		return nil, err
	}

	parentQuoteID, ok := hook.ParseQuoteID(cart.OrderReference)
	if !ok {
		return nil, insufficientInfo(domain.EUNPROCESSABLE, "The order reference is invalid.")
	}

	incrementID, immutableStr := hook.ParseDisplayID(cart.DisplayID)
	immutableQuoteID := parentQuoteID
	if immutableStr != "" {
		immutableQuoteID, ok = hook.ParseQuoteID(immutableStr)
		if !ok {
			return nil, insufficientInfo(domain.EUNPROCESSABLE, "The order reference is invalid.")
		}
	}
	if incrementID == "" {
		return nil, insufficientInfo(domain.EUNPROCESSABLE, "The order reference is invalid.")
	}

	// Product-page checkouts create both quotes as inactive, so the parent
	// is loaded without the active restriction when it doubles as the
	// immutable quote.
	var parent *domain.Quote
	var err error
	if immutableQuoteID == parentQuoteID {
		parent, err = g.quotes.GetQuote(ctx, parentQuoteID)
	} else {
		parent, err = g.quotes.GetActiveQuote(ctx, parentQuoteID)
	}
	if err != nil {
		return nil, g.failClosed(ctx, err, parentQuoteID)
	}

	// Duplicate webhook delivery: the order was already materialized. This
	// is the load-bearing idempotency check, so it gets the dedicated wire
	// code rather than the generic insufficient-information one.
	if _, err := g.orders.GetOrderByIncrementID(ctx, incrementID); err == nil {
		return nil, domain.ErrOrderAlreadyExists
	} else if !domain.IsCode(err, domain.ENOTFOUND) {
		return nil, g.failClosed(ctx, err, parentQuoteID)
	}

	immutable := parent
	if immutableQuoteID != parentQuoteID {
		immutable, err = g.quotes.GetQuote(ctx, immutableQuoteID)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				return nil, insufficientInfo(domain.ENOTFOUND, "The cart reference [%d] is not found.", immutableQuoteID)
			}
			return nil, g.failClosed(ctx, err, parentQuoteID)
		}
	}

	if len(immutable.VisibleItems()) == 0 {
		return nil, insufficientInfo(domain.EUNPROCESSABLE, "The cart for order reference [%d] is empty.", immutableQuoteID)
	}

	return &CartSession{
		ParentQuoteID:    parentQuoteID,
		IncrementID:      incrementID,
		ImmutableQuoteID: immutableQuoteID,
		Parent:           parent,
		Immutable:        immutable,
	}, nil
}

func (g *CartGuard) failClosed(ctx context.Context, err error, parentQuoteID int64) error {
	if !domain.IsCode(err, domain.ENOTFOUND) {
		g.logger.Error().Err(err).Int64("parent_quote_id", parentQuoteID).Msg("unexpected error resolving cart")
		telemetry.CaptureError(err, map[string]interface{}{
			"parent_quote_id": parentQuoteID,
			"trace_id":        hook.TraceID(ctx),
		})
	}
	return insufficientInfo(domain.ENOTFOUND, "The cart reference [%d] is not found.", parentQuoteID)
}

// ApplyShipment copies the payload's shipment address and method onto the
// quote's shipping address when present. The region ID is resolved
// best-effort; unknown regions leave it unset.
func (g *CartGuard) ApplyShipment(ctx context.Context, q *domain.Quote, shipments []hook.Shipment) error {
	if len(shipments) == 0 || shipments[0].Reference == "" {
		return nil
	}
	sh := shipments[0]
	addr := sh.ShippingAddress

	street := strings.TrimSpace(addr.StreetAddress1 + "\n" + addr.StreetAddress2)

	var regionID int64
	if addr.Region != "" && addr.CountryCode != "" {
		id, err := g.regions.GetRegionID(ctx, addr.CountryCode, addr.Region)
		if err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
			return err
		}
		regionID = id
	}

	q.Shipping.FirstName = addr.FirstName
	q.Shipping.LastName = addr.LastName
	q.Shipping.Company = addr.Company
	q.Shipping.Street = street
	q.Shipping.City = addr.Locality
	q.Shipping.Region = addr.Region
	q.Shipping.RegionID = regionID
	q.Shipping.PostalCode = addr.PostalCode
	q.Shipping.CountryCode = addr.CountryCode
	q.Shipping.Phone = addr.Telephone()
	q.Shipping.Email = addr.EmailAddress
	q.Shipping.ShippingMethod = sh.Reference
	return nil
}
