package domain

import (
	"context"
	"time"
)

// Quote domain errors.
var (
	ErrQuoteNotFound  = &Error{Code: ENOTFOUND, Message: "Quote not found"}
	ErrQuoteEmpty     = &Error{Code: EUNPROCESSABLE, Message: "Quote has no items"}
	ErrQuoteInactive  = &Error{Code: ENOTFOUND, Message: "Quote is not active"}
	ErrRegionNotFound = &Error{Code: ENOTFOUND, Message: "Region not found"}
	ErrSKUNotFound    = &Error{Code: ENOTFOUND, Message: "SKU not found"}
)

// Quote is a shopping-session snapshot. An immutable quote is the
// point-in-time copy tied to one checkout attempt; the parent quote is the
// long-lived cart the customer returns to across attempts. ParentID is zero
// on parent quotes themselves.
type Quote struct {
	ID           int64
	ParentID     int64
	IncrementID  string
	Currency     string
	IsActive     bool
	IsVirtual    bool
	CouponCode   string
	Items        []QuoteItem
	Shipping     QuoteAddress
	Billing      QuoteAddress
	Totals       QuoteTotals
	GiftCardCode string
	// GiftCardsUsedCents is the gift-card amount already consumed by this
	// quote, used as the zero-usage guard on repeated hook deliveries.
	GiftCardsUsedCents int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// VisibleItems returns the line items that participate in reconciliation.
func (q *Quote) VisibleItems() []QuoteItem {
	out := make([]QuoteItem, 0, len(q.Items))
	for _, it := range q.Items {
		if !it.Hidden {
			out = append(out, it)
		}
	}
	return out
}

// QuoteItem is a cart line item. Unit prices are minor currency units.
type QuoteItem struct {
	ID             int64
	SKU            string
	Name           string
	Description    string
	ProductID      int64
	Quantity       int32
	UnitPriceCents int64
	// Hidden marks child/configuration rows that are not visible line items.
	Hidden bool
}

// QuoteAddress holds the mutable address state totals are collected against.
type QuoteAddress struct {
	FirstName      string
	LastName       string
	Company        string
	Street         string
	City           string
	Region         string
	RegionID       int64
	PostalCode     string
	CountryCode    string
	Phone          string
	Email          string
	ShippingMethod string
	// CollectedRates caches carrier rates between collections. Cleared by
	// ResetShippingRates before every fresh enumeration.
	CollectedRates []ShippingRate
}

// ResetShippingRates drops previously collected rates so the next totals
// collection starts from a clean slate. Stateful carrier pricing plugins can
// otherwise leak state between successive collections.
func (a *QuoteAddress) ResetShippingRates() {
	a.CollectedRates = nil
}

// QuoteTotals is the last collected totals snapshot, minor units except Tax
// and ShippingCost which carry the raw engine figures for drift accounting.
type QuoteTotals struct {
	SubtotalCents       int64
	DiscountCents       int64
	ShippingCost        float64
	Tax                 float64
	GrandTotalCents     int64
	DiscountDescription string
}

// ShippingRate is one carrier quote produced during rate collection.
type ShippingRate struct {
	CarrierCode  string
	CarrierTitle string
	MethodCode   string
	MethodTitle  string
	Cost         float64
	ErrorMessage string
}

// MethodReference returns the stable "carrierCode_methodCode" reference the
// authority round-trips on shipment selection.
func (r ShippingRate) MethodReference() string {
	return r.CarrierCode + "_" + r.MethodCode
}

// Service returns the customer-facing option label.
func (r ShippingRate) Service() string {
	return r.CarrierTitle + " - " + r.MethodTitle
}

// QuoteStore is the narrow seam over the platform's quote persistence.
type QuoteStore interface {
	// GetQuote loads a quote by ID regardless of active state
	// (product-page checkouts create quotes as inactive).
	GetQuote(ctx context.Context, id int64) (*Quote, error)

	// GetActiveQuote loads a quote by ID, requiring it to be active.
	GetActiveQuote(ctx context.Context, id int64) (*Quote, error)

	// GetQuoteByIncrementID loads a quote by its reserved order increment ID.
	GetQuoteByIncrementID(ctx context.Context, incrementID string) (*Quote, error)

	// SaveQuote persists mutations (coupon, addresses, totals).
	SaveQuote(ctx context.Context, q *Quote) error
}

// RegionStore resolves directory region IDs from free-form names.
type RegionStore interface {
	// GetRegionID returns the region ID for a country + region name pair,
	// or ErrRegionNotFound.
	GetRegionID(ctx context.Context, countryCode, region string) (int64, error)
}

// StockStore is the narrow seam over the platform's stock registry.
type StockStore interface {
	// IsInStock reports whether the SKU is currently purchasable.
	IsInStock(ctx context.Context, sku string) (bool, error)
}
