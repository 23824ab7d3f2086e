// Package giftcard resolves and applies gift-card codes through an ordered
// provider registry. Each provider owns one gift-card subsystem; the last
// registered provider is conventionally the open extension hook for
// third-party integrations.
package giftcard

import (
	"context"

	"github.com/dukerupert/bifrost/internal/domain"
)

// Card is a resolved gift card. Balance is in minor units and may be
// negative in provider backends; consumers report the absolute value.
type Card struct {
	// Provider is the code of the provider that resolved the card.
	Provider     string
	Code         string
	BalanceCents int64
	Description  string
}

// Provider owns one gift-card subsystem.
type Provider interface {
	// Code returns the stable provider code used in logs and events.
	Code() string

	// Lookup resolves a code to a card, or domain.ErrCouponNotFound when
	// this provider does not recognize the code. Any other error aborts the
	// registry scan.
	Lookup(ctx context.Context, code string) (*Card, error)

	// Apply attaches the card to both quotes. Must be idempotent across
	// repeated hook deliveries for the same cart: implementations either
	// guard on non-zero usage or remove before re-adding.
	Apply(ctx context.Context, card *Card, immutable, parent *domain.Quote) (int64, error)
}

// Registry tries providers in registration order.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry over the given providers. Order matters:
// the first provider to recognize a code wins.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers}
}

// Lookup resolves a code through the providers in order. Returns
// domain.ErrCouponNotFound when no provider recognizes the code.
func (r *Registry) Lookup(ctx context.Context, code string) (*Card, Provider, error) {
	for _, p := range r.providers {
		card, err := p.Lookup(ctx, code)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				continue
			}
			return nil, nil, err
		}
		if card != nil {
			return card, p, nil
		}
	}
	return nil, nil, domain.ErrCouponNotFound
}
