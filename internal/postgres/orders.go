package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/bifrost/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	db *pgxpool.Pool
}

// Compile-time check that OrderStore implements domain.OrderStore.
var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a new PostgreSQL-backed order store.
func NewOrderStore(db *pgxpool.Pool) *OrderStore {
	return &OrderStore{db: db}
}

// GetOrderByIncrementID returns the order for an increment ID.
func (s *OrderStore) GetOrderByIncrementID(ctx context.Context, incrementID string) (*domain.Order, error) {
	var o domain.Order
	err := s.db.QueryRow(ctx, `
		SELECT id, increment_id, quote_id, currency, subtotal_cents, discount_cents,
			shipping_cents, tax_cents, grand_total_cents, created_at
		FROM orders
		WHERE increment_id = $1`, incrementID).Scan(
		&o.ID, &o.IncrementID, &o.QuoteID, &o.Currency, &o.SubtotalCents, &o.DiscountCents,
		&o.ShippingCents, &o.TaxCents, &o.GrandTotalCents, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get", "failed to get order")
	}

	rows, err := s.db.Query(ctx, `
		SELECT sku, name, quantity, unit_price_cents, row_total_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, o.ID)
	if err != nil {
		return nil, domain.Internal(err, "order.get", "failed to load order items")
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.SKU, &it.Name, &it.Quantity, &it.UnitPriceCents, &it.RowTotalCents); err != nil {
			return nil, domain.Internal(err, "order.get", "failed to scan order item")
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.get", "failed to read order items")
	}
	return &o, nil
}

// CreateOrder persists the order and its items. The unique index on
// increment_id turns racing duplicate deliveries into ErrOrderAlreadyExists.
func (s *OrderStore) CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, domain.Internal(err, "order.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	created := *o
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			increment_id, quote_id, currency, subtotal_cents, discount_cents,
			shipping_cents, tax_cents, grand_total_cents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		o.IncrementID, o.QuoteID, o.Currency, o.SubtotalCents, o.DiscountCents,
		o.ShippingCents, o.TaxCents, o.GrandTotalCents).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrOrderAlreadyExists
		}
		return nil, domain.Internal(err, "order.create", "failed to insert order")
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, sku, name, quantity, unit_price_cents, row_total_cents)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			created.ID, it.SKU, it.Name, it.Quantity, it.UnitPriceCents, it.RowTotalCents); err != nil {
			return nil, domain.Internal(err, "order.create", "failed to insert order item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.Internal(err, "order.create", "failed to commit transaction")
	}
	return &created, nil
}
