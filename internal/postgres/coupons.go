package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/bifrost/internal/domain"
)

// CouponStore implements domain.CouponStore using PostgreSQL.
type CouponStore struct {
	db *pgxpool.Pool
}

var _ domain.CouponStore = (*CouponStore)(nil)

// NewCouponStore creates a new PostgreSQL-backed coupon store.
func NewCouponStore(db *pgxpool.Pool) *CouponStore {
	return &CouponStore{db: db}
}

// GetCouponByCode returns the coupon for a code. Codes are matched
// case-sensitively, the way the storefront issues them.
func (s *CouponStore) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	err := s.db.QueryRow(ctx, `
		SELECT id, code, rule_id, usage_limit, times_used
		FROM coupons
		WHERE code = $1`, code).Scan(&c.ID, &c.Code, &c.RuleID, &c.UsageLimit, &c.TimesUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, domain.Internal(err, "coupon.get", "failed to get coupon")
	}
	return &c, nil
}

// GetRule returns the discount rule for a coupon.
func (s *CouponStore) GetRule(ctx context.Context, ruleID int64) (*domain.DiscountRule, error) {
	var r domain.DiscountRule
	var fromDate, toDate *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT id, description, simple_action, value, from_date, to_date, is_active
		FROM discount_rules
		WHERE id = $1`, ruleID).Scan(&r.ID, &r.Description, &r.SimpleAction, &r.Value, &fromDate, &toDate, &r.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, domain.Internal(err, "coupon.get_rule", "failed to get discount rule")
	}
	if fromDate != nil {
		r.FromDate = *fromDate
	}
	if toDate != nil {
		r.ToDate = *toDate
	}
	return &r, nil
}
