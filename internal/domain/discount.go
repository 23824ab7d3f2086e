package domain

import (
	"context"
	"time"
)

// Discount domain errors.
var (
	ErrCouponNotFound = &Error{Code: ENOTFOUND, HookCode: HookCodeInvalidCode, Message: "Coupon code not found"}
	ErrRuleNotFound   = &Error{Code: ENOTFOUND, HookCode: HookCodeInvalidCode, Message: "Discount rule not found"}
)

// Discount classification reported to the authority.
const (
	DiscountTypeFixed      = "fixed_amount"
	DiscountTypePercentage = "percentage"
	DiscountTypeShipping   = "shipping"
)

// Coupon is a promotional code pointing at a discount rule.
type Coupon struct {
	ID         int64
	Code       string
	RuleID     int64
	UsageLimit int32
	TimesUsed  int32
}

// DiscountRule holds the conditions and action of a promotion.
type DiscountRule struct {
	ID          int64
	Description string
	// SimpleAction is the platform action identifier, e.g. "by_fixed",
	// "by_percent", "free_shipping".
	SimpleAction string
	// Value is interpreted per action: a major-unit amount for by_fixed,
	// a percentage (0-100) for by_percent, unused for free_shipping.
	Value    float64
	FromDate time.Time
	ToDate   time.Time
	IsActive bool
}

// DiscountType maps the rule action to the authority's classification.
func (r *DiscountRule) DiscountType() string {
	switch r.SimpleAction {
	case "by_percent", "cart_fixed_percent":
		return DiscountTypePercentage
	case "free_shipping":
		return DiscountTypeShipping
	default:
		return DiscountTypeFixed
	}
}

// DiscountResult is the transient outcome of applying a code; never
// persisted independently. Amount is minor units, non-negative.
type DiscountResult struct {
	Code        string
	AmountCents int64
	Description string
	Type        string
}

// CouponStore is the narrow seam over the platform's promotion subsystem.
type CouponStore interface {
	// GetCouponByCode returns the coupon for a code, or ErrCouponNotFound.
	GetCouponByCode(ctx context.Context, code string) (*Coupon, error)

	// GetRule returns the discount rule for a coupon, or ErrRuleNotFound.
	GetRule(ctx context.Context, ruleID int64) (*DiscountRule, error)
}
