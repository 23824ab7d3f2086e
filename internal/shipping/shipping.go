package shipping

import (
	"context"
	"errors"
)

var (
	// ErrNoDestination is returned when rate params lack a country code.
	ErrNoDestination = errors.New("destination country required")
)

// Carrier produces rate quotes for a destination and cart contents.
// Implementations can integrate with real carriers; the flat-rate and
// table-rate carriers cover stores without a live integration.
type Carrier interface {
	// Code returns the stable carrier code used in method references.
	Code() string

	// Title returns the display title for the carrier.
	Title() string

	// GetRates returns available rate quotes for the shipment. A quote may
	// carry an inline error message instead of a price; such quotes are
	// excluded from the option list and surfaced as diagnostics.
	GetRates(ctx context.Context, params RateParams) ([]Rate, error)
}

// RateParams contains parameters for calculating shipping rates.
type RateParams struct {
	Destination   Address
	Items         []Item
	SubtotalCents int64
	Currency      string
}

// Address is the destination for rate calculation.
type Address struct {
	Street      string
	City        string
	Region      string
	RegionID    int64
	PostalCode  string
	CountryCode string
}

// Item is one cart line for rate calculation.
type Item struct {
	SKU      string
	Quantity int32
}

// Rate is a single rate quote from a carrier.
type Rate struct {
	CarrierCode  string
	CarrierTitle string
	MethodCode   string
	MethodTitle  string
	// Cost is in major units; rounding to minor units happens at the
	// reconciliation boundary where drift is accounted for.
	Cost float64
	// ErrorMessage is set when the carrier declined to quote this method.
	ErrorMessage string
}
