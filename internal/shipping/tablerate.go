package shipping

import (
	"context"
	"sort"
)

// TableRateCarrier prices a single method from subtotal brackets, the way
// platform table-rate carriers do. Brackets outside the destination's
// country list produce an inline error quote rather than no quote, so the
// estimator can report why the method was excluded.
type TableRateCarrier struct {
	code        string
	title       string
	method      string
	methodTitle string
	countries   map[string]bool
	brackets    []RateBracket
}

// RateBracket maps a minimum subtotal (minor units, inclusive) to a cost.
type RateBracket struct {
	MinSubtotalCents int64
	Cost             float64
}

// NewTableRateCarrier creates a table-rate carrier. Countries may be empty
// to allow all destinations. Brackets are sorted by threshold.
func NewTableRateCarrier(countries []string, brackets []RateBracket) Carrier {
	allowed := make(map[string]bool, len(countries))
	for _, c := range countries {
		allowed[c] = true
	}
	sorted := make([]RateBracket, len(brackets))
	copy(sorted, brackets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinSubtotalCents < sorted[j].MinSubtotalCents
	})
	return &TableRateCarrier{
		code:        "tablerate",
		title:       "Best Way",
		method:      "bestway",
		methodTitle: "Table Rate",
		countries:   allowed,
		brackets:    sorted,
	}
}

// Code returns the carrier code.
func (c *TableRateCarrier) Code() string { return c.code }

// Title returns the carrier title.
func (c *TableRateCarrier) Title() string { return c.title }

// GetRates returns the bracket price for the subtotal, or an error quote
// when the destination or subtotal is outside the table.
func (c *TableRateCarrier) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	if params.Destination.CountryCode == "" {
		return nil, ErrNoDestination
	}

	rate := Rate{
		CarrierCode:  c.code,
		CarrierTitle: c.title,
		MethodCode:   c.method,
		MethodTitle:  c.methodTitle,
	}

	if len(c.countries) > 0 && !c.countries[params.Destination.CountryCode] {
		rate.ErrorMessage = "This shipping method is not available to the selected country."
		return []Rate{rate}, nil
	}

	matched := false
	for _, b := range c.brackets {
		if params.SubtotalCents >= b.MinSubtotalCents {
			rate.Cost = b.Cost
			matched = true
		}
	}
	if !matched {
		rate.ErrorMessage = "Order subtotal is below the minimum for this shipping method."
		return []Rate{rate}, nil
	}

	return []Rate{rate}, nil
}
