package tax

import (
	"context"
)

// Calculator defines the interface for tax calculation.
// Implementations: PercentageCalculator, NoTaxCalculator.
type Calculator interface {
	// CalculateTax computes tax for the line items and shipping cost.
	// The returned amount is in major units; callers round to minor units
	// at the reconciliation boundary.
	CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error)
}

// TaxParams contains all information needed for tax calculation.
type TaxParams struct {
	Address   Address
	LineItems []LineItem
	// ShippingCost is the selected method's cost in major units.
	ShippingCost float64
}

// Address represents a destination address for tax purposes.
type Address struct {
	Street      string
	City        string
	Region      string
	PostalCode  string
	CountryCode string
}

// LineItem represents a single item being taxed.
type LineItem struct {
	SKU            string
	Quantity       int32
	UnitPriceCents int64
}

// TaxResult contains the calculated tax amount and breakdown.
type TaxResult struct {
	// Tax is the total tax in major units.
	Tax       float64
	Breakdown []TaxBreakdown
}

// TaxBreakdown represents tax for a single jurisdiction.
type TaxBreakdown struct {
	Jurisdiction string  // "state", "county", "city"
	Name         string  // e.g., "Washington State"
	Rate         float64 // e.g., 0.065 for 6.5%
	Amount       float64
}
