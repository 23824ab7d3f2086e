package tax

import (
	"context"
	"fmt"
)

// PercentageCalculator calculates tax using a single percentage rate applied
// to merchandise and shipping.
type PercentageCalculator struct {
	rate float64 // e.g., 0.08 for 8%
	name string
}

// NewPercentageCalculator creates a new percentage-based tax calculator.
func NewPercentageCalculator(rate float64, name string) (Calculator, error) {
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("tax rate must be in [0, 1): %v", rate)
	}
	if name == "" {
		name = "Sales Tax"
	}
	return &PercentageCalculator{rate: rate, name: name}, nil
}

// CalculateTax computes tax on merchandise subtotal + shipping using the
// configured rate.
func (c *PercentageCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	var subtotal float64
	for _, item := range params.LineItems {
		subtotal += float64(item.UnitPriceCents) / 100 * float64(item.Quantity)
	}

	taxable := subtotal + params.ShippingCost
	amount := taxable * c.rate

	return &TaxResult{
		Tax: amount,
		Breakdown: []TaxBreakdown{
			{
				Jurisdiction: "state",
				Name:         c.name,
				Rate:         c.rate,
				Amount:       amount,
			},
		},
	}, nil
}
