package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/bifrost/internal/cache"
	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/events"
	"github.com/dukerupert/bifrost/internal/giftcard"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/telemetry"
)

// DiscountConfig tunes discount application per deployment.
type DiscountConfig struct {
	// IgnoredShippingAddressCoupons lists codes whose discount is read from
	// the parent quote's already-collected totals instead of being
	// recomputed against the shipment address.
	IgnoredShippingAddressCoupons []string
}

// AppliedDiscount is one entry of the cart totals breakdown.
type AppliedDiscount struct {
	AmountCents int64  `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference,omitempty"`
}

// CartTotals is the totals block attached to discount envelopes.
type CartTotals struct {
	TotalAmountCents int64             `json:"total_amount"`
	TaxAmountCents   int64             `json:"tax_amount"`
	Discounts        []AppliedDiscount `json:"discounts"`
}

// DiscountOutcome is the successful result of applying a code.
type DiscountOutcome struct {
	Result domain.DiscountResult
	Cart   CartTotals
}

// DiscountService resolves a submitted code to a coupon or a gift card and
// applies it to both quotes of the checkout session.
type DiscountService struct {
	guard     *CartGuard
	quotes    domain.QuoteStore
	coupons   domain.CouponStore
	giftCards *giftcard.Registry
	totals    *TotalsCollector
	cache     cache.Cache
	publisher events.Publisher
	cfg       DiscountConfig
	now       func() time.Time
	logger    zerolog.Logger
}

// NewDiscountService creates a discount service.
func NewDiscountService(
	guard *CartGuard,
	quotes domain.QuoteStore,
	coupons domain.CouponStore,
	giftCards *giftcard.Registry,
	totals *TotalsCollector,
	c cache.Cache,
	publisher events.Publisher,
	cfg DiscountConfig,
	logger zerolog.Logger,
) *DiscountService {
	return &DiscountService{
		guard:     guard,
		quotes:    quotes,
		coupons:   coupons,
		giftCards: giftCards,
		totals:    totals,
		cache:     c,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With().Str("component", "discount_service").Logger(),
	}
}

// OrderCacheKey is the cache key for the computed order representation tied
// to a parent quote. Invalidated whenever a discount alters the quote.
func OrderCacheKey(parentQuoteID int64) string {
	return fmt.Sprintf("order:quote:%d", parentQuoteID)
}

// Apply validates and applies the submitted code. The returned quote, when
// non-nil, is the cart context a failure envelope may attach totals from.
func (s *DiscountService) Apply(ctx context.Context, req hook.DiscountRequest) (*DiscountOutcome, *domain.Quote, error) {
	code := strings.TrimSpace(req.Code())
	if code == "" {
		return nil, nil, domain.HookErrorf(domain.EUNPROCESSABLE, domain.HookCodeInvalidCode,
			"discount.apply", "No coupon code provided")
	}

	session, err := s.guard.Resolve(ctx, req.Cart)
	if err != nil {
		return nil, nil, err
	}

	if err := s.guard.ApplyShipment(ctx, session.Immutable, req.Cart.Shipments); err != nil {
		return nil, session.Immutable, domain.WrapError(err, domain.EINTERNAL, "discount.apply", "failed to apply shipment")
	}

	result, kind, err := s.resolveAndApply(ctx, code, session)
	if err != nil {
		return nil, session.Immutable, err
	}

	// The cached order representation mirrors the quote the authority will
	// re-fetch; it is stale the moment a discount lands.
	if err := s.cache.Delete(ctx, OrderCacheKey(session.ParentQuoteID)); err != nil {
		s.logger.Warn().Err(err).Int64("parent_quote_id", session.ParentQuoteID).
			Msg("failed to invalidate cached order")
	}

	s.publisher.DiscountApplied(ctx, events.DiscountApplied{
		QuoteID:     session.ParentQuoteID,
		Code:        result.Code,
		Kind:        kind,
		AmountCents: result.AmountCents,
		AppliedAt:   s.now(),
	})
	if telemetry.Business != nil {
		telemetry.Business.DiscountApplied.WithLabelValues(kind).Inc()
	}

	totals, err := s.CartTotals(ctx, session.Immutable)
	if err != nil {
		return nil, session.Immutable, err
	}

	s.logger.Info().
		Str("code", code).
		Int64("amount_cents", result.AmountCents).
		Str("type", result.Type).
		Msg("discount applied")

	return &DiscountOutcome{Result: *result, Cart: totals}, session.Immutable, nil
}

func (s *DiscountService) resolveAndApply(ctx context.Context, code string, session *CartSession) (*domain.DiscountResult, string, error) {
	coupon, err := s.coupons.GetCouponByCode(ctx, code)
	switch {
	case err == nil:
		var result *domain.DiscountResult
		if s.shouldUseParentQuoteDiscount(code, session) {
			result, err = s.parentQuoteDiscountResult(ctx, code, coupon, session.Parent)
		} else {
			result, err = s.applyCoupon(ctx, code, coupon, session)
		}
		return result, "coupon", err
	case domain.IsCode(err, domain.ENOTFOUND):
		result, err := s.applyGiftCard(ctx, code, session)
		return result, "giftcard", err
	default:
		return nil, "", err
	}
}

// shouldUseParentQuoteDiscount reports whether the code's discount must be
// read from the parent quote's collected totals: the code is already on both
// quotes and is configured to ignore the shipment address.
func (s *DiscountService) shouldUseParentQuoteDiscount(code string, session *CartSession) bool {
	if session.Immutable.CouponCode != code || session.Parent.CouponCode != code {
		return false
	}
	for _, ignored := range s.cfg.IgnoredShippingAddressCoupons {
		if ignored == code {
			return true
		}
	}
	return false
}

func (s *DiscountService) parentQuoteDiscountResult(ctx context.Context, code string, coupon *domain.Coupon, parent *domain.Quote) (*domain.DiscountResult, error) {
	rule, err := s.coupons.GetRule(ctx, coupon.RuleID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.HookErrorf(domain.ENOTFOUND, domain.HookCodeInvalidCode,
				"discount.apply", "The coupon code %s is not found", code)
		}
		return nil, err
	}

	return &domain.DiscountResult{
		Code:        code,
		AmountCents: abs64(parent.Totals.DiscountCents),
		Description: "Discount " + parent.Totals.DiscountDescription,
		Type:        rule.DiscountType(),
	}, nil
}

func (s *DiscountService) applyCoupon(ctx context.Context, code string, coupon *domain.Coupon, session *CartSession) (*domain.DiscountResult, error) {
	rule, err := s.coupons.GetRule(ctx, coupon.RuleID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.HookErrorf(domain.ENOTFOUND, domain.HookCodeInvalidCode,
				"discount.apply", "The coupon code %s is not found", code)
		}
		return nil, err
	}
	if err := s.checkRuleConditions(code, coupon, rule); err != nil {
		return nil, err
	}

	amount := discountAmountCents(rule, session.Immutable)

	for _, q := range []*domain.Quote{session.Immutable, session.Parent} {
		q.CouponCode = code
		q.Totals.DiscountCents = amount
		q.Totals.DiscountDescription = rule.Description
		if err := s.totals.Collect(ctx, q); err != nil {
			return nil, err
		}
		if err := s.quotes.SaveQuote(ctx, q); err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "discount.apply", "failed to save quote")
		}
	}

	return &domain.DiscountResult{
		Code:        code,
		AmountCents: abs64(amount),
		Description: "Discount " + rule.Description,
		Type:        rule.DiscountType(),
	}, nil
}

// checkRuleConditions enforces the rule's activity window and the coupon's
// usage limit, each with its own wire code.
func (s *DiscountService) checkRuleConditions(code string, coupon *domain.Coupon, rule *domain.DiscountRule) error {
	now := s.now()
	if !rule.ToDate.IsZero() && now.After(rule.ToDate) {
		return domain.HookErrorf(domain.EUNPROCESSABLE, domain.HookCodeCodeExpired,
			"discount.apply", "The coupon code %s has expired", code)
	}
	if !rule.IsActive || (!rule.FromDate.IsZero() && now.Before(rule.FromDate)) {
		return domain.HookErrorf(domain.EUNPROCESSABLE, domain.HookCodeCodeNotAvailable,
			"discount.apply", "The coupon code %s is not available", code)
	}
	if coupon.UsageLimit > 0 && coupon.TimesUsed >= coupon.UsageLimit {
		return domain.HookErrorf(domain.EUNPROCESSABLE, domain.HookCodeCodeLimitReached,
			"discount.apply", "The usage limit of coupon code %s has been reached", code)
	}
	return nil
}

func (s *DiscountService) applyGiftCard(ctx context.Context, code string, session *CartSession) (*domain.DiscountResult, error) {
	card, provider, err := s.giftCards.Lookup(ctx, code)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.HookErrorf(domain.ENOTFOUND, domain.HookCodeInvalidCode,
				"discount.apply", "The coupon code %s is not found", code)
		}
		return nil, err
	}

	amount, err := provider.Apply(ctx, card, session.Immutable, session.Parent)
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNPROCESSABLE, "discount.apply", domain.ErrorMessage(err))
	}

	description := card.Description
	if description == "" {
		description = "Gift Card"
	}

	return &domain.DiscountResult{
		Code:        code,
		AmountCents: abs64(amount),
		Description: description,
		Type:        domain.DiscountTypeFixed,
	}, nil
}

// CartTotals recomputes and snapshots the quote's totals for an envelope.
func (s *DiscountService) CartTotals(ctx context.Context, q *domain.Quote) (CartTotals, error) {
	if err := s.totals.Collect(ctx, q); err != nil {
		return CartTotals{}, err
	}

	totals := CartTotals{
		TotalAmountCents: q.Totals.GrandTotalCents,
		TaxAmountCents:   hook.ToMinor(q.Totals.Tax),
		Discounts:        []AppliedDiscount{},
	}
	if q.Totals.DiscountCents != 0 {
		totals.Discounts = append(totals.Discounts, AppliedDiscount{
			AmountCents: abs64(q.Totals.DiscountCents),
			Description: q.Totals.DiscountDescription,
			Reference:   q.CouponCode,
		})
	}
	return totals, nil
}

// discountAmountCents computes the rule's discount against the quote
// subtotal, in minor units.
func discountAmountCents(rule *domain.DiscountRule, q *domain.Quote) int64 {
	switch rule.SimpleAction {
	case "by_percent", "cart_fixed_percent":
		return int64(math.Round(float64(subtotalCents(q)) * rule.Value / 100))
	case "free_shipping":
		return hook.ToMinor(q.Totals.ShippingCost)
	default:
		return hook.ToMinor(rule.Value)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
