package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/bifrost/internal/cache"
	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/telemetry"
)

// driftThreshold is the minor-unit drift above which rounding a method's
// floating-point cost is compensated into tax and reported.
const driftThreshold = 0.01

// estimateTTL bounds how long a prefetched estimate stays valid.
const estimateTTL = 3600 * time.Second

// ShippingConfig tunes shipping estimation per deployment.
type ShippingConfig struct {
	// PrefetchEnabled turns on the estimate cache.
	PrefetchEnabled bool
	// PrefetchAddressFields lists extra address fields (snake_case) folded
	// into the cache fingerprint, e.g. "street", "phone".
	PrefetchAddressFields []string
}

// ShippingOption is one selectable method in the estimate envelope.
type ShippingOption struct {
	Service        string `json:"service"`
	CostCents      int64  `json:"cost"`
	Reference      string `json:"reference"`
	TaxAmountCents int64  `json:"tax_amount"`
}

// TaxResult is the top-level tax of the estimate envelope. Tax is attached
// per option; the overall figure stays zero.
type TaxResult struct {
	AmountCents int64 `json:"amount"`
}

// ShippingResult is the estimate envelope body. Serialized as-is into the
// prefetch cache.
type ShippingResult struct {
	Options   []ShippingOption `json:"shipping_options"`
	TaxResult TaxResult        `json:"tax_result"`
}

// ShippingEstimator enumerates shipping options for a candidate address,
// memoizing results keyed by a cart+address fingerprint.
type ShippingEstimator struct {
	quotes  domain.QuoteStore
	regions domain.RegionStore
	totals  *TotalsCollector
	cache   cache.Cache
	cfg     ShippingConfig
	logger  zerolog.Logger
}

// NewShippingEstimator creates a shipping estimator.
func NewShippingEstimator(
	quotes domain.QuoteStore,
	regions domain.RegionStore,
	totals *TotalsCollector,
	c cache.Cache,
	cfg ShippingConfig,
	logger zerolog.Logger,
) *ShippingEstimator {
	return &ShippingEstimator{
		quotes:  quotes,
		regions: regions,
		totals:  totals,
		cache:   c,
		cfg:     cfg,
		logger:  logger.With().Str("component", "shipping_estimator").Logger(),
	}
}

func unprocessable(format string, args ...interface{}) error {
	return domain.HookErrorf(domain.EUNPROCESSABLE, domain.HookCodeUnprocessable,
		"shipping.estimate", format, args...)
}

// Estimate resolves the cart, verifies it against the payload's item list
// and returns the available shipping options for the address.
func (s *ShippingEstimator) Estimate(ctx context.Context, req hook.ShippingRequest) (*ShippingResult, error) {
	incrementID, _ := hook.ParseDisplayID(req.Cart.DisplayID)
	if incrementID == "" {
		return nil, unprocessable("Invalid display_id: %s.", req.Cart.DisplayID)
	}

	quote, err := s.quotes.GetQuoteByIncrementID(ctx, incrementID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, unprocessable("Invalid display_id: %s.", req.Cart.DisplayID)
		}
		return nil, err
	}

	if err := s.checkCartItems(ctx, req.Cart, quote); err != nil {
		return nil, err
	}

	var fingerprint string
	if s.cfg.PrefetchEnabled {
		fingerprint = s.fingerprint(quote, req.ShippingAddress)
		if data, err := s.cache.Get(ctx, fingerprint); err == nil {
			var cached ShippingResult
			if err := json.Unmarshal(data, &cached); err == nil {
				if telemetry.Business != nil {
					telemetry.Business.EstimateCacheHits.Inc()
					telemetry.Business.ShippingEstimates.WithLabelValues("cache").Inc()
				}
				return &cached, nil
			}
		}
		if telemetry.Business != nil {
			telemetry.Business.EstimateCacheMisses.Inc()
		}
	}

	s.applyAddress(ctx, quote, req.ShippingAddress)

	options, err := s.collectOptions(ctx, quote, req.ShippingAddress)
	if err != nil {
		return nil, err
	}

	result := &ShippingResult{Options: options, TaxResult: TaxResult{AmountCents: 0}}

	if s.cfg.PrefetchEnabled {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, fingerprint, data, estimateTTL); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache shipping estimate")
			}
		}
	}
	if telemetry.Business != nil {
		telemetry.Business.ShippingEstimates.WithLabelValues("computed").Inc()
	}

	return result, nil
}

// checkCartItems verifies the payload's SKU/quantity map matches the live
// cart exactly. An empty comparison set counts as a mismatch. Full item
// detail goes to the error tracker for diagnosis.
func (s *ShippingEstimator) checkCartItems(ctx context.Context, cart hook.TransactionCart, quote *domain.Quote) error {
	cartItems := make(map[string]int32, len(cart.Items))
	for _, it := range cart.Items {
		cartItems[it.SKU] = it.Quantity
	}

	visible := quote.VisibleItems()
	quoteItems := make(map[string]int32, len(visible))
	for _, it := range visible {
		quoteItems[it.SKU] = it.Quantity
	}

	if len(cartItems) == 0 || !mapsEqual(cartItems, quoteItems) {
		err := unprocessable("Cart items data has changed.")
		telemetry.CaptureError(err, map[string]interface{}{
			"cart_items":  cart.Items,
			"quote_items": visible,
			"quote_id":    quote.ID,
			"trace_id":    hook.TraceID(ctx),
		})
		return err
	}
	return nil
}

// fingerprint builds the cache key: quote ID, minor-unit subtotal, the core
// address fields, every visible item's SKU and quantity, and any configured
// extra address fields.
func (s *ShippingEstimator) fingerprint(quote *domain.Quote, addr hook.Address) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d_%d_%s_%s_%s", quote.ID, subtotalCents(quote),
		addr.CountryCode, addr.Region, addr.PostalCode)
	for _, it := range quote.VisibleItems() {
		fmt.Fprintf(&b, "_%s_%d", it.SKU, it.Quantity)
	}
	for _, field := range s.cfg.PrefetchAddressFields {
		if v := addressField(quote.Shipping, field); v != "" {
			b.WriteString("_" + v)
		}
	}
	sum := md5.Sum([]byte(b.String()))
	return "shipping:" + hex.EncodeToString(sum[:])
}

// applyAddress overlays the candidate address onto the quote's shipping
// address. Unset payload fields leave the existing value alone.
func (s *ShippingEstimator) applyAddress(ctx context.Context, quote *domain.Quote, addr hook.Address) {
	if addr.Region != "" && addr.CountryCode != "" {
		if id, err := s.regions.GetRegionID(ctx, addr.CountryCode, addr.Region); err == nil {
			quote.Shipping.RegionID = id
		}
	}
	setIfPresent(&quote.Shipping.CountryCode, addr.CountryCode)
	setIfPresent(&quote.Shipping.PostalCode, addr.PostalCode)
	setIfPresent(&quote.Shipping.Region, addr.Region)
	setIfPresent(&quote.Shipping.FirstName, addr.FirstName)
	setIfPresent(&quote.Shipping.LastName, addr.LastName)
	setIfPresent(&quote.Shipping.Street, addr.StreetAddress1)
	setIfPresent(&quote.Shipping.City, addr.Locality)
	setIfPresent(&quote.Shipping.Phone, addr.Telephone())
}

type methodError struct {
	Service        string `json:"service"`
	Reference      string `json:"reference"`
	CostCents      int64  `json:"cost"`
	TaxAmountCents int64  `json:"tax_amount"`
	Error          string `json:"error"`
}

// collectOptions enumerates all carrier quotes and recomputes totals per
// method. Rounding drift beyond the threshold folds into the option's tax
// and raises a diagnostic; methods quoting an inline error are excluded and
// aggregated into one report.
func (s *ShippingEstimator) collectOptions(ctx context.Context, quote *domain.Quote, addr hook.Address) ([]ShippingOption, error) {
	if err := s.totals.CollectRates(ctx, quote); err != nil {
		return nil, err
	}
	rates := make([]domain.ShippingRate, len(quote.Shipping.CollectedRates))
	copy(rates, quote.Shipping.CollectedRates)
	quote.Shipping.ResetShippingRates()

	options := make([]ShippingOption, 0, len(rates))
	var errors []methodError
	var diffs map[string]interface{}

	for _, rate := range rates {
		service := rate.Service()
		method := rate.MethodReference()

		if err := s.totals.CollectForMethod(ctx, quote, method); err != nil {
			return nil, err
		}

		cost := quote.Totals.ShippingCost
		roundedCost := hook.ToMinor(cost)
		diff := cost*100 - float64(roundedCost)
		taxAmount := hook.ToMinor(quote.Totals.Tax + diff/100)

		if math.Abs(diff) >= driftThreshold {
			if diffs == nil {
				diffs = map[string]interface{}{}
			}
			diffs[method] = map[string]interface{}{
				"diff":       diff,
				"service":    service,
				"reference":  method,
				"cost":       roundedCost,
				"tax_amount": taxAmount,
			}
		}

		if rate.ErrorMessage != "" {
			errors = append(errors, methodError{
				Service:        service,
				Reference:      method,
				CostCents:      roundedCost,
				TaxAmountCents: taxAmount,
				Error:          rate.ErrorMessage,
			})
			continue
		}

		options = append(options, ShippingOption{
			Service:        service,
			CostCents:      roundedCost,
			Reference:      method,
			TaxAmountCents: taxAmount,
		})
	}

	if len(errors) > 0 {
		s.logger.Warn().Int("count", len(errors)).Msg("carriers declined to quote methods")
		telemetry.CaptureMessage("Shipping Method Error", map[string]interface{}{
			"address": addr,
			"errors":  errors,
		})
	}
	if diffs != nil {
		telemetry.CaptureMessage("Cart Totals Mismatch", map[string]interface{}{
			"totals_diff":      diffs,
			"shipping_options": options,
		})
	}

	return options, nil
}

func mapsEqual(a, b map[string]int32) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func addressField(a domain.QuoteAddress, field string) string {
	switch field {
	case "first_name", "firstname":
		return a.FirstName
	case "last_name", "lastname":
		return a.LastName
	case "company":
		return a.Company
	case "street":
		return a.Street
	case "city":
		return a.City
	case "phone", "telephone":
		return a.Phone
	case "email":
		return a.Email
	default:
		return ""
	}
}
