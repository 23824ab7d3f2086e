package giftcard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bifrost/internal/domain"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// stubProvider implements Provider for testing
type stubProvider struct {
	code        string
	card        *Card
	lookupErr   error
	lookupCalls int
}

func (s *stubProvider) Code() string { return s.code }

func (s *stubProvider) Lookup(ctx context.Context, code string) (*Card, error) {
	s.lookupCalls++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if s.card == nil {
		return nil, domain.ErrCouponNotFound
	}
	return s.card, nil
}

func (s *stubProvider) Apply(ctx context.Context, card *Card, immutable, parent *domain.Quote) (int64, error) {
	return card.BalanceCents, nil
}

// stubCardStore implements CardStore and CertificateStore for testing
type stubCardStore struct {
	cards map[string]*Card
}

func (s *stubCardStore) GetCardByCode(ctx context.Context, code string) (*Card, error) {
	return s.lookup(code)
}

func (s *stubCardStore) GetCertificateByCode(ctx context.Context, code string) (*Card, error) {
	return s.lookup(code)
}

func (s *stubCardStore) lookup(code string) (*Card, error) {
	c, ok := s.cards[code]
	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	copied := *c
	return &copied, nil
}

// stubQuoteStore implements domain.QuoteStore for testing
type stubQuoteStore struct {
	saved   []*domain.Quote
	saveErr error
}

func (s *stubQuoteStore) GetQuote(ctx context.Context, id int64) (*domain.Quote, error) {
	return nil, domain.ErrQuoteNotFound
}

func (s *stubQuoteStore) GetActiveQuote(ctx context.Context, id int64) (*domain.Quote, error) {
	return nil, domain.ErrQuoteNotFound
}

func (s *stubQuoteStore) GetQuoteByIncrementID(ctx context.Context, incrementID string) (*domain.Quote, error) {
	return nil, domain.ErrQuoteNotFound
}

func (s *stubQuoteStore) SaveQuote(ctx context.Context, q *domain.Quote) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, q)
	return nil
}

// ============================================================================
// Registry
// ============================================================================

func TestRegistry_Lookup_FirstProviderWins(t *testing.T) {
	first := &stubProvider{code: "account", card: &Card{Provider: "account", Code: "GC", BalanceCents: 100}}
	second := &stubProvider{code: "certificate", card: &Card{Provider: "certificate", Code: "GC", BalanceCents: 200}}
	registry := NewRegistry(first, second)

	card, provider, err := registry.Lookup(context.Background(), "GC")

	require.NoError(t, err)
	assert.Equal(t, "account", card.Provider)
	assert.Equal(t, "account", provider.Code())
	assert.Zero(t, second.lookupCalls, "scan stops at the first hit")
}

func TestRegistry_Lookup_FallsThroughNotFound(t *testing.T) {
	first := &stubProvider{code: "account"}
	second := &stubProvider{code: "hook", card: &Card{Provider: "hook", Code: "GC", BalanceCents: 300}}
	registry := NewRegistry(first, second)

	card, provider, err := registry.Lookup(context.Background(), "GC")

	require.NoError(t, err)
	assert.Equal(t, "hook", card.Provider)
	assert.Equal(t, "hook", provider.Code())
	assert.Equal(t, 1, first.lookupCalls)
}

func TestRegistry_Lookup_NoProviderRecognizesCode(t *testing.T) {
	registry := NewRegistry(&stubProvider{code: "account"}, &stubProvider{code: "certificate"})

	_, _, err := registry.Lookup(context.Background(), "NOSUCH")

	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
}

func TestRegistry_Lookup_HardErrorAbortsScan(t *testing.T) {
	first := &stubProvider{code: "account", lookupErr: domain.Internal(assert.AnError, "giftcard.lookup", "backend down")}
	second := &stubProvider{code: "certificate", card: &Card{Provider: "certificate", Code: "GC"}}
	registry := NewRegistry(first, second)

	_, _, err := registry.Lookup(context.Background(), "GC")

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINTERNAL))
	assert.Zero(t, second.lookupCalls)
}

func TestRegistry_Lookup_Empty(t *testing.T) {
	_, _, err := NewRegistry().Lookup(context.Background(), "GC")
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
}

// ============================================================================
// Account provider
// ============================================================================

func TestAccountProvider_Lookup(t *testing.T) {
	store := &stubCardStore{cards: map[string]*Card{"GC-1": {Code: "GC-1", BalanceCents: 5000}}}
	provider := NewAccountProvider(store, &stubQuoteStore{})

	card, err := provider.Lookup(context.Background(), "GC-1")

	require.NoError(t, err)
	assert.Equal(t, "account", card.Provider)
	assert.Equal(t, int64(5000), card.BalanceCents)
}

func TestAccountProvider_Apply_ZeroUsageGuard(t *testing.T) {
	quotes := &stubQuoteStore{}
	provider := NewAccountProvider(&stubCardStore{}, quotes)
	card := &Card{Provider: "account", Code: "GC-1", BalanceCents: 5000}

	fresh := &domain.Quote{ID: 1}
	alreadyUsed := &domain.Quote{ID: 2, GiftCardsUsedCents: 1200}

	amount, err := provider.Apply(context.Background(), card, fresh, alreadyUsed)

	require.NoError(t, err)
	assert.Equal(t, int64(5000), amount)
	assert.Equal(t, "GC-1", fresh.GiftCardCode)
	assert.Empty(t, alreadyUsed.GiftCardCode, "a quote that already consumed balance is left alone")
	require.Len(t, quotes.saved, 1)
	assert.Same(t, fresh, quotes.saved[0])
}

func TestAccountProvider_Apply_RepeatDeliveryIsIdempotent(t *testing.T) {
	quotes := &stubQuoteStore{}
	provider := NewAccountProvider(&stubCardStore{}, quotes)
	card := &Card{Provider: "account", Code: "GC-1", BalanceCents: 5000}

	immutable := &domain.Quote{ID: 1, GiftCardsUsedCents: 5000, GiftCardCode: "GC-1"}
	parent := &domain.Quote{ID: 2, GiftCardsUsedCents: 5000, GiftCardCode: "GC-1"}

	amount, err := provider.Apply(context.Background(), card, immutable, parent)

	require.NoError(t, err)
	assert.Equal(t, int64(5000), amount)
	assert.Empty(t, quotes.saved)
}

// ============================================================================
// Certificate provider
// ============================================================================

func TestCertificateProvider_Lookup(t *testing.T) {
	store := &stubCardStore{cards: map[string]*Card{"CERT-1": {Code: "CERT-1", BalanceCents: 2500}}}
	provider := NewCertificateProvider(store, &stubQuoteStore{})

	card, err := provider.Lookup(context.Background(), "CERT-1")

	require.NoError(t, err)
	assert.Equal(t, "certificate", card.Provider)
}

func TestCertificateProvider_Apply_AddIfAbsent(t *testing.T) {
	quotes := &stubQuoteStore{}
	provider := NewCertificateProvider(&stubCardStore{}, quotes)
	card := &Card{Provider: "certificate", Code: "CERT-1", BalanceCents: 2500}

	carrying := &domain.Quote{ID: 1, GiftCardCode: "CERT-1"}
	fresh := &domain.Quote{ID: 2}

	amount, err := provider.Apply(context.Background(), card, carrying, fresh)

	require.NoError(t, err)
	assert.Equal(t, int64(2500), amount)
	require.Len(t, quotes.saved, 1)
	assert.Same(t, fresh, quotes.saved[0])
	assert.Equal(t, "CERT-1", fresh.GiftCardCode)
}
