package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/bifrost/internal/domain"
)

// RegionStore implements domain.RegionStore using PostgreSQL.
type RegionStore struct {
	db *pgxpool.Pool
}

var _ domain.RegionStore = (*RegionStore)(nil)

// NewRegionStore creates a new PostgreSQL-backed region store.
func NewRegionStore(db *pgxpool.Pool) *RegionStore {
	return &RegionStore{db: db}
}

// GetRegionID resolves a free-form region to its directory ID. Addresses
// arrive with either the region code ("WA") or the full name
// ("Washington"), so both are matched.
func (s *RegionStore) GetRegionID(ctx context.Context, countryCode, region string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		SELECT id
		FROM directory_regions
		WHERE country_code = $1 AND (code = $2 OR name = $2)`, countryCode, region).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrRegionNotFound
		}
		return 0, domain.Internal(err, "region.get", "failed to resolve region")
	}
	return id, nil
}
