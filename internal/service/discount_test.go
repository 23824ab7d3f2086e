package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/giftcard"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/tax"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type discountTestEnv struct {
	quotes    *mockQuoteStore
	coupons   *mockCouponStore
	cache     *mockCache
	publisher *mockPublisher
	svc       *DiscountService
}

func newDiscountTestEnv(cfg DiscountConfig, providers []giftcard.Provider, quotes ...*domain.Quote) *discountTestEnv {
	env := &discountTestEnv{
		quotes:    newMockQuoteStore(quotes...),
		coupons:   newMockCouponStore(),
		cache:     newMockCache(),
		publisher: &mockPublisher{},
	}
	totals := NewTotalsCollector(nil, tax.NewNoTaxCalculator(), zerolog.Nop())
	guard := NewCartGuard(env.quotes, newMockOrderStore(), &mockRegionStore{}, zerolog.Nop())
	env.svc = NewDiscountService(guard, env.quotes, env.coupons,
		giftcard.NewRegistry(providers...), totals, env.cache, env.publisher, cfg, zerolog.Nop())
	env.svc.now = func() time.Time { return testNow }
	return env
}

func (env *discountTestEnv) addCoupon(code string, rule *domain.DiscountRule) *domain.Coupon {
	coupon := &domain.Coupon{ID: int64(len(env.coupons.coupons) + 1), Code: code, RuleID: rule.ID}
	env.coupons.coupons[code] = coupon
	env.coupons.rules[rule.ID] = rule
	return coupon
}

func activeRule(id int64, action string, value float64) *domain.DiscountRule {
	return &domain.DiscountRule{
		ID:           id,
		Description:  "Spring promo",
		SimpleAction: action,
		Value:        value,
		IsActive:     true,
	}
}

func makeDiscountRequest(parentID int64, q *domain.Quote, code string) hook.DiscountRequest {
	return hook.DiscountRequest{
		Cart:         makeTestCart(parentID, q),
		DiscountCode: code,
	}
}

func TestDiscountService_Apply_EmptyCodeRejectedBeforeCartLookup(t *testing.T) {
	env := newDiscountTestEnv(DiscountConfig{}, nil)

	for _, code := range []string{"", "   "} {
		_, quote, err := env.svc.Apply(context.Background(), hook.DiscountRequest{DiscountCode: code})

		require.Error(t, err)
		assert.Nil(t, quote)
		assert.Equal(t, 422, domain.ErrorStatus(err))
		assert.Equal(t, domain.HookCodeInvalidCode, domain.ErrorHookCode(err, 0))
		assert.Equal(t, "No coupon code provided", domain.ErrorMessage(err))
	}
	assert.Zero(t, env.coupons.lookupCalls)
	assert.Empty(t, env.quotes.getCalls)
	assert.Empty(t, env.quotes.getActiveCalls)
}

func TestDiscountService_Apply_FixedCoupon(t *testing.T) {
	parent, immutable := makeTestSession()
	env := newDiscountTestEnv(DiscountConfig{}, nil, parent, immutable)
	env.addCoupon("SAVE10", activeRule(1, "by_fixed", 10.0))

	outcome, quote, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "SAVE10"))

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Same(t, immutable, quote)
	assert.Equal(t, "SAVE10", outcome.Result.Code)
	assert.Equal(t, int64(1000), outcome.Result.AmountCents)
	assert.Equal(t, "Discount Spring promo", outcome.Result.Description)
	assert.Equal(t, domain.DiscountTypeFixed, outcome.Result.Type)

	// The code lands on both quotes and both are persisted.
	assert.Equal(t, "SAVE10", immutable.CouponCode)
	assert.Equal(t, "SAVE10", parent.CouponCode)
	assert.Len(t, env.quotes.saved, 2)

	// 5500 subtotal - 1000 discount, no shipping or tax.
	assert.Equal(t, int64(4500), outcome.Cart.TotalAmountCents)
	require.Len(t, outcome.Cart.Discounts, 1)
	assert.Equal(t, int64(1000), outcome.Cart.Discounts[0].AmountCents)
	assert.Equal(t, "SAVE10", outcome.Cart.Discounts[0].Reference)

	assert.Equal(t, []string{OrderCacheKey(parent.ID)}, env.cache.deleted)
	require.Len(t, env.publisher.discounts, 1)
	assert.Equal(t, "coupon", env.publisher.discounts[0].Kind)
	assert.Equal(t, testNow, env.publisher.discounts[0].AppliedAt)
}

func TestDiscountService_Apply_PercentCoupon(t *testing.T) {
	parent, immutable := makeTestSession()
	env := newDiscountTestEnv(DiscountConfig{}, nil, parent, immutable)
	env.addCoupon("TENOFF", activeRule(2, "by_percent", 10))

	outcome, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "TENOFF"))

	require.NoError(t, err)
	assert.Equal(t, int64(550), outcome.Result.AmountCents) // 10% of 5500
	assert.Equal(t, domain.DiscountTypePercentage, outcome.Result.Type)
}

func TestDiscountService_Apply_CodeIsTrimmed(t *testing.T) {
	parent, immutable := makeTestSession()
	env := newDiscountTestEnv(DiscountConfig{}, nil, parent, immutable)
	env.addCoupon("SAVE10", activeRule(1, "by_fixed", 10.0))

	outcome, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "  SAVE10  "))

	require.NoError(t, err)
	assert.Equal(t, "SAVE10", outcome.Result.Code)
}

func TestDiscountService_Apply_ExpiredRule(t *testing.T) {
	parent, immutable := makeTestSession()
	env := newDiscountTestEnv(DiscountConfig{}, nil, parent, immutable)
	rule := activeRule(3, "by_fixed", 5.0)
	rule.ToDate = testNow.Add(-24 * time.Hour)
	env.addCoupon("OLD", rule)

	_, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "OLD"))

	require.Error(t, err)
	assert.Equal(t, domain.HookCodeCodeExpired, domain.ErrorHookCode(err, 0))
	assert.Equal(t, "The coupon code OLD has expired", domain.ErrorMessage(err))
}

func TestDiscountService_Apply_RuleNotYetActive(t *testing.T) {
	parent, immutable := makeTestSession()
	env := newDiscountTestEnv(DiscountConfig{}, nil, parent, immutable)
	rule := activeRule(4, "by_fixed", 5.0)
	rule.FromDate = testNow.Add(24 * time.Hour)
	env.addCoupon("SOON", rule)

	_, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "SOON"))

	require.Error(t, err)
	assert.Equal(t, domain.HookCodeCodeNotAvailable, domain.ErrorHookCode(err, 0))
}

func TestDiscountService_Apply_InactiveRule(t *testing.T) {
	parent, immutable := makeTestSession()
	env := newDiscountTestEnv(DiscountConfig{}, nil, parent, immutable)
	rule := activeRule(5, "by_fixed", 5.0)
	rule.IsActive = false
	env.addCoupon("DISABLED", rule)

	_, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "DISABLED"))

	require.Error(t, err)
	assert.Equal(t, domain.HookCodeCodeNotAvailable, domain.ErrorHookCode(err, 0))
	assert.Equal(t, "The coupon code DISABLED is not available", domain.ErrorMessage(err))
}

func TestDiscountService_Apply_UsageLimitReached(t *testing.T) {
	parent, immutable := makeTestSession()
	env := newDiscountTestEnv(DiscountConfig{}, nil, parent, immutable)
	coupon := env.addCoupon("MAXED", activeRule(6, "by_fixed", 5.0))
	coupon.UsageLimit = 3
	coupon.TimesUsed = 3

	_, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "MAXED"))

	require.Error(t, err)
	assert.Equal(t, domain.HookCodeCodeLimitReached, domain.ErrorHookCode(err, 0))
	assert.Equal(t, "The usage limit of coupon code MAXED has been reached", domain.ErrorMessage(err))
}

func TestDiscountService_Apply_UnknownCode(t *testing.T) {
	parent, immutable := makeTestSession()
	env := newDiscountTestEnv(DiscountConfig{}, nil, parent, immutable)

	_, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "NOSUCH"))

	require.Error(t, err)
	assert.Equal(t, 404, domain.ErrorStatus(err))
	assert.Equal(t, domain.HookCodeInvalidCode, domain.ErrorHookCode(err, 0))
	assert.Equal(t, "The coupon code NOSUCH is not found", domain.ErrorMessage(err))
	assert.Empty(t, env.cache.deleted)
	assert.Empty(t, env.publisher.discounts)
}

func TestDiscountService_Apply_GiftCard(t *testing.T) {
	parent, immutable := makeTestSession()
	provider := &mockGiftCardProvider{
		code:        "account",
		card:        &giftcard.Card{Provider: "account", Code: "GIFT-100", BalanceCents: 10000},
		applyAmount: 10000,
	}
	env := newDiscountTestEnv(DiscountConfig{}, []giftcard.Provider{provider}, parent, immutable)

	outcome, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "GIFT-100"))

	require.NoError(t, err)
	assert.Equal(t, int64(10000), outcome.Result.AmountCents)
	assert.Equal(t, "Gift Card", outcome.Result.Description)
	assert.Equal(t, domain.DiscountTypeFixed, outcome.Result.Type)
	assert.Equal(t, 1, provider.applyCalls)

	require.Len(t, env.publisher.discounts, 1)
	assert.Equal(t, "giftcard", env.publisher.discounts[0].Kind)
	assert.Equal(t, []string{OrderCacheKey(parent.ID)}, env.cache.deleted)
}

func TestDiscountService_Apply_GiftCardKeepsProviderDescription(t *testing.T) {
	parent, immutable := makeTestSession()
	provider := &mockGiftCardProvider{
		code:        "certificate",
		card:        &giftcard.Card{Provider: "certificate", Code: "CERT-1", BalanceCents: 2500, Description: "Holiday certificate"},
		applyAmount: 2500,
	}
	env := newDiscountTestEnv(DiscountConfig{}, []giftcard.Provider{provider}, parent, immutable)

	outcome, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "CERT-1"))

	require.NoError(t, err)
	assert.Equal(t, "Holiday certificate", outcome.Result.Description)
}

func TestDiscountService_Apply_GiftCardApplyFailure(t *testing.T) {
	parent, immutable := makeTestSession()
	provider := &mockGiftCardProvider{
		code:     "account",
		card:     &giftcard.Card{Provider: "account", Code: "GIFT-100", BalanceCents: 10000},
		applyErr: domain.Errorf(domain.EUNPROCESSABLE, "giftcard.apply", "Gift card balance exhausted"),
	}
	env := newDiscountTestEnv(DiscountConfig{}, []giftcard.Provider{provider}, parent, immutable)

	_, quote, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "GIFT-100"))

	require.Error(t, err)
	assert.Same(t, immutable, quote)
	assert.Equal(t, 422, domain.ErrorStatus(err))
}

func TestDiscountService_Apply_ParentQuoteExemption(t *testing.T) {
	parent, immutable := makeTestSession()
	parent.CouponCode = "FREESHIP"
	immutable.CouponCode = "FREESHIP"
	parent.Totals.DiscountCents = -750
	parent.Totals.DiscountDescription = "Free shipping promo"

	env := newDiscountTestEnv(DiscountConfig{
		IgnoredShippingAddressCoupons: []string{"FREESHIP"},
	}, nil, parent, immutable)
	env.addCoupon("FREESHIP", activeRule(7, "free_shipping", 0))

	outcome, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "FREESHIP"))

	require.NoError(t, err)
	assert.Equal(t, int64(750), outcome.Result.AmountCents)
	assert.Equal(t, "Discount Free shipping promo", outcome.Result.Description)
	assert.Equal(t, domain.DiscountTypeShipping, outcome.Result.Type)
	// The exemption path reads the parent's collected totals; nothing is saved.
	assert.Empty(t, env.quotes.saved)
}

func TestDiscountService_Apply_IgnoredCodeNotOnBothQuotesReapplies(t *testing.T) {
	parent, immutable := makeTestSession()
	parent.CouponCode = "FREESHIP" // immutable does not carry it yet

	env := newDiscountTestEnv(DiscountConfig{
		IgnoredShippingAddressCoupons: []string{"FREESHIP"},
	}, nil, parent, immutable)
	env.addCoupon("FREESHIP", activeRule(7, "free_shipping", 0))

	_, _, err := env.svc.Apply(context.Background(), makeDiscountRequest(parent.ID, immutable, "FREESHIP"))

	require.NoError(t, err)
	assert.Len(t, env.quotes.saved, 2)
	assert.Equal(t, "FREESHIP", immutable.CouponCode)
}

func TestDiscountService_CartTotals_NoDiscount(t *testing.T) {
	_, immutable := makeTestSession()
	env := newDiscountTestEnv(DiscountConfig{}, nil)

	totals, err := env.svc.CartTotals(context.Background(), immutable)

	require.NoError(t, err)
	assert.Equal(t, int64(5500), totals.TotalAmountCents)
	assert.Zero(t, totals.TaxAmountCents)
	assert.NotNil(t, totals.Discounts)
	assert.Empty(t, totals.Discounts)
}
