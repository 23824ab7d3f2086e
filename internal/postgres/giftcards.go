package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/giftcard"
)

// GiftCardStore implements giftcard.CardStore and giftcard.CertificateStore
// using PostgreSQL. Accounts and certificates live in separate tables but
// share the same shape.
type GiftCardStore struct {
	db *pgxpool.Pool
}

var (
	_ giftcard.CardStore        = (*GiftCardStore)(nil)
	_ giftcard.CertificateStore = (*GiftCardStore)(nil)
)

// NewGiftCardStore creates a new PostgreSQL-backed gift-card store.
func NewGiftCardStore(db *pgxpool.Pool) *GiftCardStore {
	return &GiftCardStore{db: db}
}

// GetCardByCode returns the gift-card account for a code.
func (s *GiftCardStore) GetCardByCode(ctx context.Context, code string) (*giftcard.Card, error) {
	return s.get(ctx, `
		SELECT code, balance_cents, description
		FROM gift_cards
		WHERE code = $1`, code)
}

// GetCertificateByCode returns the gift certificate for a code.
func (s *GiftCardStore) GetCertificateByCode(ctx context.Context, code string) (*giftcard.Card, error) {
	return s.get(ctx, `
		SELECT code, balance_cents, description
		FROM gift_certificates
		WHERE code = $1`, code)
}

func (s *GiftCardStore) get(ctx context.Context, query, code string) (*giftcard.Card, error) {
	var c giftcard.Card
	err := s.db.QueryRow(ctx, query, code).Scan(&c.Code, &c.BalanceCents, &c.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, domain.Internal(err, "giftcard.get", "failed to get gift card")
	}
	return &c, nil
}
