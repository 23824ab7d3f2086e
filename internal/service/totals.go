// Package service implements the hook-facing business operations: order
// materialization, discount and gift-card application, and shipping
// estimation. Services depend on the domain store seams and never on HTTP.
package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/shipping"
	"github.com/dukerupert/bifrost/internal/tax"
)

// TotalsCollector recomputes a quote's totals snapshot: subtotal from the
// visible line items, the already-applied discount, the selected shipping
// method's cost, and tax over items plus shipping.
type TotalsCollector struct {
	carriers []shipping.Carrier
	taxCalc  tax.Calculator
	logger   zerolog.Logger
}

// NewTotalsCollector creates a totals collector over the registered carriers.
func NewTotalsCollector(carriers []shipping.Carrier, taxCalc tax.Calculator, logger zerolog.Logger) *TotalsCollector {
	return &TotalsCollector{
		carriers: carriers,
		taxCalc:  taxCalc,
		logger:   logger.With().Str("component", "totals").Logger(),
	}
}

// CollectRates enumerates every carrier's quotes for the shipping address and
// stores them on the address. Previously collected rates are dropped first so
// stateful carrier pricing cannot leak between collections.
func (c *TotalsCollector) CollectRates(ctx context.Context, q *domain.Quote) error {
	q.Shipping.ResetShippingRates()

	params := shipping.RateParams{
		Destination: shipping.Address{
			Street:      q.Shipping.Street,
			City:        q.Shipping.City,
			Region:      q.Shipping.Region,
			RegionID:    q.Shipping.RegionID,
			PostalCode:  q.Shipping.PostalCode,
			CountryCode: q.Shipping.CountryCode,
		},
		SubtotalCents: subtotalCents(q),
		Currency:      q.Currency,
	}
	for _, it := range q.VisibleItems() {
		params.Items = append(params.Items, shipping.Item{SKU: it.SKU, Quantity: it.Quantity})
	}

	for _, carrier := range c.carriers {
		rates, err := carrier.GetRates(ctx, params)
		if err != nil {
			// A failing carrier quotes nothing; the others still count.
			c.logger.Warn().Err(err).Str("carrier", carrier.Code()).Msg("carrier rate lookup failed")
			continue
		}
		for _, r := range rates {
			q.Shipping.CollectedRates = append(q.Shipping.CollectedRates, domain.ShippingRate{
				CarrierCode:  r.CarrierCode,
				CarrierTitle: r.CarrierTitle,
				MethodCode:   r.MethodCode,
				MethodTitle:  r.MethodTitle,
				Cost:         r.Cost,
				ErrorMessage: r.ErrorMessage,
			})
		}
	}
	return nil
}

// Collect recomputes the quote's totals snapshot for the currently selected
// shipping method. Rates must have been collected beforehand when a method
// is selected; an unknown method collects with zero shipping.
func (c *TotalsCollector) Collect(ctx context.Context, q *domain.Quote) error {
	subtotal := subtotalCents(q)

	var shippingCost float64
	if q.Shipping.ShippingMethod != "" && !q.IsVirtual {
		for _, r := range q.Shipping.CollectedRates {
			if r.MethodReference() == q.Shipping.ShippingMethod {
				shippingCost = r.Cost
				break
			}
		}
	}

	taxParams := tax.TaxParams{
		Address: tax.Address{
			Street:      q.Shipping.Street,
			City:        q.Shipping.City,
			Region:      q.Shipping.Region,
			PostalCode:  q.Shipping.PostalCode,
			CountryCode: q.Shipping.CountryCode,
		},
		ShippingCost: shippingCost,
	}
	for _, it := range q.VisibleItems() {
		taxParams.LineItems = append(taxParams.LineItems, tax.LineItem{
			SKU:            it.SKU,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}

	taxResult, err := c.taxCalc.CalculateTax(ctx, taxParams)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "totals.collect", "tax calculation failed")
	}

	q.Totals.SubtotalCents = subtotal
	q.Totals.ShippingCost = shippingCost
	q.Totals.Tax = taxResult.Tax
	q.Totals.GrandTotalCents = subtotal - q.Totals.DiscountCents +
		hook.ToMinor(shippingCost) + hook.ToMinor(taxResult.Tax)
	return nil
}

// CollectForMethod selects the method on the shipping address and recomputes
// totals. Rates are re-collected from scratch before the run and dropped
// after it, so one method's collection cannot observe another's.
func (c *TotalsCollector) CollectForMethod(ctx context.Context, q *domain.Quote, methodRef string) error {
	if err := c.CollectRates(ctx, q); err != nil {
		return err
	}
	q.Shipping.ShippingMethod = methodRef
	if err := c.Collect(ctx, q); err != nil {
		return err
	}
	q.Shipping.ResetShippingRates()
	return nil
}

func subtotalCents(q *domain.Quote) int64 {
	var total int64
	for _, it := range q.VisibleItems() {
		total += int64(it.Quantity) * it.UnitPriceCents
	}
	return total
}
