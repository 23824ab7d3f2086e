package giftcard

import (
	"context"

	"github.com/dukerupert/bifrost/internal/domain"
)

// CardStore is the seam over the platform's native gift-card accounts.
type CardStore interface {
	// GetCardByCode returns the account for a code, or domain.ErrCouponNotFound.
	GetCardByCode(ctx context.Context, code string) (*Card, error)
}

// CertificateStore is the seam over the certificate-style gift subsystem.
type CertificateStore interface {
	// GetCertificateByCode returns the certificate for a code, or
	// domain.ErrCouponNotFound.
	GetCertificateByCode(ctx context.Context, code string) (*Card, error)
}

// AccountProvider applies platform gift-card accounts. Application uses a
// zero-usage guard: a quote that has already consumed gift-card balance is
// left untouched so repeated validation calls from the authority's checkout
// (address changes, back and forth) cannot double-apply.
type AccountProvider struct {
	cards  CardStore
	quotes domain.QuoteStore
}

// NewAccountProvider creates the native gift-card account provider.
func NewAccountProvider(cards CardStore, quotes domain.QuoteStore) *AccountProvider {
	return &AccountProvider{cards: cards, quotes: quotes}
}

// Code returns the provider code.
func (p *AccountProvider) Code() string { return "account" }

// Lookup resolves a code to a gift-card account.
func (p *AccountProvider) Lookup(ctx context.Context, code string) (*Card, error) {
	card, err := p.cards.GetCardByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	card.Provider = p.Code()
	return card, nil
}

// Apply attaches the card to both quotes under the zero-usage guard.
func (p *AccountProvider) Apply(ctx context.Context, card *Card, immutable, parent *domain.Quote) (int64, error) {
	for _, q := range []*domain.Quote{immutable, parent} {
		if q == nil || q.GiftCardsUsedCents != 0 {
			continue
		}
		q.GiftCardCode = card.Code
		if err := p.quotes.SaveQuote(ctx, q); err != nil {
			return 0, domain.WrapError(err, domain.EINTERNAL, "giftcard.apply", "failed to save quote")
		}
	}
	return card.BalanceCents, nil
}

// CertificateProvider applies certificate-style gift codes. Certificates are
// add-if-absent: a quote already carrying the certificate code keeps it.
type CertificateProvider struct {
	certs  CertificateStore
	quotes domain.QuoteStore
}

// NewCertificateProvider creates the gift-certificate provider.
func NewCertificateProvider(certs CertificateStore, quotes domain.QuoteStore) *CertificateProvider {
	return &CertificateProvider{certs: certs, quotes: quotes}
}

// Code returns the provider code.
func (p *CertificateProvider) Code() string { return "certificate" }

// Lookup resolves a code to a certificate.
func (p *CertificateProvider) Lookup(ctx context.Context, code string) (*Card, error) {
	card, err := p.certs.GetCertificateByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	card.Provider = p.Code()
	return card, nil
}

// Apply attaches the certificate to whichever quotes do not carry it yet.
func (p *CertificateProvider) Apply(ctx context.Context, card *Card, immutable, parent *domain.Quote) (int64, error) {
	for _, q := range []*domain.Quote{immutable, parent} {
		if q == nil || q.GiftCardCode == card.Code {
			continue
		}
		q.GiftCardCode = card.Code
		if err := p.quotes.SaveQuote(ctx, q); err != nil {
			return 0, domain.WrapError(err, domain.EINTERNAL, "giftcard.apply", "failed to save quote")
		}
	}
	return card.BalanceCents, nil
}
