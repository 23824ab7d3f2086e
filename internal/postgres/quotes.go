package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/bifrost/internal/domain"
)

// QuoteStore implements domain.QuoteStore using PostgreSQL.
type QuoteStore struct {
	db *pgxpool.Pool
}

// Compile-time check that QuoteStore implements domain.QuoteStore.
var _ domain.QuoteStore = (*QuoteStore)(nil)

// NewQuoteStore creates a new PostgreSQL-backed quote store.
func NewQuoteStore(db *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{db: db}
}

const quoteColumns = `
	id, parent_id, increment_id, currency, is_active, is_virtual,
	coupon_code, gift_card_code, gift_cards_used_cents,
	subtotal_cents, discount_cents, shipping_cost, tax,
	grand_total_cents, discount_description, created_at, updated_at`

// GetQuote loads a quote by ID regardless of active state.
func (s *QuoteStore) GetQuote(ctx context.Context, id int64) (*domain.Quote, error) {
	return s.getQuote(ctx, `SELECT`+quoteColumns+` FROM quotes WHERE id = $1`, id)
}

// GetActiveQuote loads a quote by ID, requiring it to be active.
func (s *QuoteStore) GetActiveQuote(ctx context.Context, id int64) (*domain.Quote, error) {
	q, err := s.getQuote(ctx, `SELECT`+quoteColumns+` FROM quotes WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			// Distinguish missing from deactivated for callers that care.
			if _, inner := s.GetQuote(ctx, id); inner == nil {
				return nil, domain.ErrQuoteInactive
			}
		}
		return nil, err
	}
	return q, nil
}

// GetQuoteByIncrementID loads a quote by its reserved order increment ID.
func (s *QuoteStore) GetQuoteByIncrementID(ctx context.Context, incrementID string) (*domain.Quote, error) {
	return s.getQuote(ctx, `SELECT`+quoteColumns+` FROM quotes WHERE increment_id = $1`, incrementID)
}

func (s *QuoteStore) getQuote(ctx context.Context, query string, arg interface{}) (*domain.Quote, error) {
	var q domain.Quote
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&q.ID, &q.ParentID, &q.IncrementID, &q.Currency, &q.IsActive, &q.IsVirtual,
		&q.CouponCode, &q.GiftCardCode, &q.GiftCardsUsedCents,
		&q.Totals.SubtotalCents, &q.Totals.DiscountCents, &q.Totals.ShippingCost, &q.Totals.Tax,
		&q.Totals.GrandTotalCents, &q.Totals.DiscountDescription, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQuoteNotFound
		}
		return nil, domain.Internal(err, "quote.get", "failed to get quote")
	}

	if err := s.loadItems(ctx, &q); err != nil {
		return nil, err
	}
	if err := s.loadAddresses(ctx, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *QuoteStore) loadItems(ctx context.Context, q *domain.Quote) error {
	rows, err := s.db.Query(ctx, `
		SELECT id, sku, name, description, product_id, quantity, unit_price_cents, hidden
		FROM quote_items
		WHERE quote_id = $1
		ORDER BY id`, q.ID)
	if err != nil {
		return domain.Internal(err, "quote.get", "failed to load quote items")
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.QuoteItem
		if err := rows.Scan(&it.ID, &it.SKU, &it.Name, &it.Description, &it.ProductID,
			&it.Quantity, &it.UnitPriceCents, &it.Hidden); err != nil {
			return domain.Internal(err, "quote.get", "failed to scan quote item")
		}
		q.Items = append(q.Items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.Internal(err, "quote.get", "failed to read quote items")
	}
	return nil
}

func (s *QuoteStore) loadAddresses(ctx context.Context, q *domain.Quote) error {
	rows, err := s.db.Query(ctx, `
		SELECT kind, first_name, last_name, company, street, city, region, region_id,
			postal_code, country_code, phone, email, shipping_method
		FROM quote_addresses
		WHERE quote_id = $1`, q.ID)
	if err != nil {
		return domain.Internal(err, "quote.get", "failed to load quote addresses")
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var a domain.QuoteAddress
		if err := rows.Scan(&kind, &a.FirstName, &a.LastName, &a.Company, &a.Street, &a.City,
			&a.Region, &a.RegionID, &a.PostalCode, &a.CountryCode, &a.Phone, &a.Email,
			&a.ShippingMethod); err != nil {
			return domain.Internal(err, "quote.get", "failed to scan quote address")
		}
		switch kind {
		case "shipping":
			q.Shipping = a
		case "billing":
			q.Billing = a
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Internal(err, "quote.get", "failed to read quote addresses")
	}
	return nil
}

// SaveQuote persists quote mutations and both addresses in one transaction.
// Line items are owned by the platform and never written here.
func (s *QuoteStore) SaveQuote(ctx context.Context, q *domain.Quote) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "quote.save", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE quotes SET
			coupon_code = $2,
			gift_card_code = $3,
			gift_cards_used_cents = $4,
			subtotal_cents = $5,
			discount_cents = $6,
			shipping_cost = $7,
			tax = $8,
			grand_total_cents = $9,
			discount_description = $10,
			is_active = $11,
			updated_at = NOW()
		WHERE id = $1`,
		q.ID, q.CouponCode, q.GiftCardCode, q.GiftCardsUsedCents,
		q.Totals.SubtotalCents, q.Totals.DiscountCents, q.Totals.ShippingCost, q.Totals.Tax,
		q.Totals.GrandTotalCents, q.Totals.DiscountDescription, q.IsActive)
	if err != nil {
		return domain.Internal(err, "quote.save", "failed to update quote")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuoteNotFound
	}

	for kind, a := range map[string]*domain.QuoteAddress{"shipping": &q.Shipping, "billing": &q.Billing} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO quote_addresses (
				quote_id, kind, first_name, last_name, company, street, city, region,
				region_id, postal_code, country_code, phone, email, shipping_method
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (quote_id, kind) DO UPDATE SET
				first_name = EXCLUDED.first_name,
				last_name = EXCLUDED.last_name,
				company = EXCLUDED.company,
				street = EXCLUDED.street,
				city = EXCLUDED.city,
				region = EXCLUDED.region,
				region_id = EXCLUDED.region_id,
				postal_code = EXCLUDED.postal_code,
				country_code = EXCLUDED.country_code,
				phone = EXCLUDED.phone,
				email = EXCLUDED.email,
				shipping_method = EXCLUDED.shipping_method`,
			q.ID, kind, a.FirstName, a.LastName, a.Company, a.Street, a.City, a.Region,
			a.RegionID, a.PostalCode, a.CountryCode, a.Phone, a.Email, a.ShippingMethod); err != nil {
			return domain.Internal(err, "quote.save", "failed to upsert quote address")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "quote.save", "failed to commit transaction")
	}
	return nil
}
