package shipping

import (
	"context"
)

// FlatRateCarrier returns predefined flat-rate shipping options.
// Used for stores without a real carrier integration.
type FlatRateCarrier struct {
	code  string
	title string
	rates []FlatRate
}

// FlatRate defines a single flat-rate shipping option.
type FlatRate struct {
	MethodCode  string
	MethodTitle string
	Cost        float64
}

// NewFlatRateCarrier creates a new flat-rate carrier.
func NewFlatRateCarrier(rates []FlatRate) Carrier {
	return &FlatRateCarrier{
		code:  "flatrate",
		title: "Flat Rate",
		rates: rates,
	}
}

// Code returns the carrier code.
func (c *FlatRateCarrier) Code() string { return c.code }

// Title returns the carrier title.
func (c *FlatRateCarrier) Title() string { return c.title }

// GetRates converts the configured flat rates to Rate quotes.
func (c *FlatRateCarrier) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	if params.Destination.CountryCode == "" {
		return nil, ErrNoDestination
	}

	result := make([]Rate, len(c.rates))
	for i, fr := range c.rates {
		result[i] = Rate{
			CarrierCode:  c.code,
			CarrierTitle: c.title,
			MethodCode:   fr.MethodCode,
			MethodTitle:  fr.MethodTitle,
			Cost:         fr.Cost,
		}
	}
	return result, nil
}
