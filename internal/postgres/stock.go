package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/bifrost/internal/domain"
)

// StockStore implements domain.StockStore using PostgreSQL.
type StockStore struct {
	db *pgxpool.Pool
}

var _ domain.StockStore = (*StockStore)(nil)

// NewStockStore creates a new PostgreSQL-backed stock store.
func NewStockStore(db *pgxpool.Pool) *StockStore {
	return &StockStore{db: db}
}

// IsInStock reports whether the SKU is currently purchasable. Backorderable
// items count as in stock regardless of quantity.
func (s *StockStore) IsInStock(ctx context.Context, sku string) (bool, error) {
	var inStock bool
	err := s.db.QueryRow(ctx, `
		SELECT quantity > 0 OR allow_backorder
		FROM stock_items
		WHERE sku = $1`, sku).Scan(&inStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrSKUNotFound
		}
		return false, domain.Internal(err, "stock.check", "failed to check stock")
	}
	return inStock, nil
}
