package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/hook"
)

func newTestGuard(quotes *mockQuoteStore, orders *mockOrderStore) *CartGuard {
	return NewCartGuard(quotes, orders, &mockRegionStore{}, zerolog.Nop())
}

func TestCartGuard_Resolve_Success(t *testing.T) {
	parent, immutable := makeTestSession()
	quotes := newMockQuoteStore(parent, immutable)
	guard := newTestGuard(quotes, newMockOrderStore())

	session, err := guard.Resolve(context.Background(), makeTestCart(parent.ID, immutable))

	require.NoError(t, err)
	assert.Equal(t, parent.ID, session.ParentQuoteID)
	assert.Equal(t, immutable.ID, session.ImmutableQuoteID)
	assert.Equal(t, "100000123", session.IncrementID)
	assert.Same(t, parent, session.Parent)
	assert.Same(t, immutable, session.Immutable)

	// Distinct quotes: the parent must be loaded with the active restriction.
	assert.Equal(t, []int64{parent.ID}, quotes.getActiveCalls)
	assert.Equal(t, []int64{immutable.ID}, quotes.getCalls)
}

func TestCartGuard_Resolve_MissingOrderReference(t *testing.T) {
	guard := newTestGuard(newMockQuoteStore(), newMockOrderStore())

	_, err := guard.Resolve(context.Background(), hook.TransactionCart{DisplayID: "100000123 / 12"})

	require.Error(t, err)
	assert.Equal(t, 404, domain.ErrorStatus(err))
	assert.Equal(t, domain.HookCodeInsufficientInfo, domain.ErrorHookCode(err, 0))
	assert.Equal(t, "The cart reference is not found.", domain.ErrorMessage(err))
}

func TestCartGuard_Resolve_InvalidIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		cart hook.TransactionCart
	}{
		{"non-numeric order reference", hook.TransactionCart{OrderReference: "abc", DisplayID: "100000123 / 12"}},
		{"negative order reference", hook.TransactionCart{OrderReference: "-5", DisplayID: "100000123 / 12"}},
		{"non-numeric immutable id", hook.TransactionCart{OrderReference: "11", DisplayID: "100000123 / xyz"}},
		{"missing increment id", hook.TransactionCart{OrderReference: "11", DisplayID: " / 12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := newTestGuard(newMockQuoteStore(), newMockOrderStore())

			_, err := guard.Resolve(context.Background(), tt.cart)

			require.Error(t, err)
			assert.Equal(t, 422, domain.ErrorStatus(err))
			assert.Equal(t, domain.HookCodeInsufficientInfo, domain.ErrorHookCode(err, 0))
		})
	}
}

func TestCartGuard_Resolve_ProductPageCheckout(t *testing.T) {
	// Product-page checkouts create the quote inactive and reuse it as both
	// parent and immutable, so the active restriction must be skipped.
	quote := makeTestQuote(42, false)
	quotes := newMockQuoteStore(quote)
	guard := newTestGuard(quotes, newMockOrderStore())

	cart := hook.TransactionCart{
		OrderReference: "42",
		DisplayID:      hook.FormatDisplayID(quote.IncrementID, quote.ID),
	}
	session, err := guard.Resolve(context.Background(), cart)

	require.NoError(t, err)
	assert.Same(t, session.Parent, session.Immutable)
	assert.Equal(t, []int64{42}, quotes.getCalls)
	assert.Empty(t, quotes.getActiveCalls)
}

func TestCartGuard_Resolve_OrderAlreadyExists(t *testing.T) {
	parent, immutable := makeTestSession()
	orders := newMockOrderStore()
	orders.orders[immutable.IncrementID] = &domain.Order{IncrementID: immutable.IncrementID}
	guard := newTestGuard(newMockQuoteStore(parent, immutable), orders)

	_, err := guard.Resolve(context.Background(), makeTestCart(parent.ID, immutable))

	require.ErrorIs(t, err, domain.ErrOrderAlreadyExists)
	assert.Equal(t, domain.HookCodeOrderAlreadyExists, domain.ErrorHookCode(err, 0))
	assert.Equal(t, 422, domain.ErrorStatus(err))
}

func TestCartGuard_Resolve_ParentNotFound(t *testing.T) {
	_, immutable := makeTestSession()
	guard := newTestGuard(newMockQuoteStore(immutable), newMockOrderStore())

	_, err := guard.Resolve(context.Background(), makeTestCart(11, immutable))

	require.Error(t, err)
	assert.Equal(t, 404, domain.ErrorStatus(err))
	assert.Equal(t, "The cart reference [11] is not found.", domain.ErrorMessage(err))
}

func TestCartGuard_Resolve_ImmutableNotFound(t *testing.T) {
	parent, immutable := makeTestSession()
	guard := newTestGuard(newMockQuoteStore(parent), newMockOrderStore())

	_, err := guard.Resolve(context.Background(), makeTestCart(parent.ID, immutable))

	require.Error(t, err)
	assert.Equal(t, 404, domain.ErrorStatus(err))
	assert.Equal(t, "The cart reference [12] is not found.", domain.ErrorMessage(err))
}

func TestCartGuard_Resolve_EmptyCart(t *testing.T) {
	parent, immutable := makeTestSession()
	immutable.Items = nil
	guard := newTestGuard(newMockQuoteStore(parent, immutable), newMockOrderStore())

	_, err := guard.Resolve(context.Background(), makeTestCart(parent.ID, immutable))

	require.Error(t, err)
	assert.Equal(t, 422, domain.ErrorStatus(err))
	assert.Equal(t, "The cart for order reference [12] is empty.", domain.ErrorMessage(err))
}

func TestCartGuard_Resolve_HiddenItemsOnlyCountsAsEmpty(t *testing.T) {
	parent, immutable := makeTestSession()
	for i := range immutable.Items {
		immutable.Items[i].Hidden = true
	}
	guard := newTestGuard(newMockQuoteStore(parent, immutable), newMockOrderStore())

	_, err := guard.Resolve(context.Background(), makeTestCart(parent.ID, immutable))

	require.Error(t, err)
	assert.Equal(t, 422, domain.ErrorStatus(err))
}

func TestCartGuard_Resolve_StoreFailureFailsClosed(t *testing.T) {
	parent, immutable := makeTestSession()
	quotes := newMockQuoteStore(parent, immutable)
	quotes.getErr = domain.Internal(assert.AnError, "quote.get", "connection lost")
	guard := newTestGuard(quotes, newMockOrderStore())

	_, err := guard.Resolve(context.Background(), makeTestCart(parent.ID, immutable))

	require.Error(t, err)
	assert.Equal(t, 404, domain.ErrorStatus(err))
	assert.Equal(t, domain.HookCodeInsufficientInfo, domain.ErrorHookCode(err, 0))
}

func TestCartGuard_ApplyShipment(t *testing.T) {
	quote := makeTestQuote(12, false)
	quote.Shipping = domain.QuoteAddress{}
	guard := NewCartGuard(newMockQuoteStore(), newMockOrderStore(), &mockRegionStore{id: 62}, zerolog.Nop())

	shipments := []hook.Shipment{{
		Reference: "flatrate_standard",
		ShippingAddress: hook.Address{
			FirstName:      "Jane",
			LastName:       "Doe",
			StreetAddress1: "123 Main St",
			StreetAddress2: "Apt 4B",
			Locality:       "Seattle",
			Region:         "Washington",
			PostalCode:     "98101",
			CountryCode:    "US",
			PhoneNumber:    "206-555-0100",
			EmailAddress:   "jane@example.com",
		},
	}}
	err := guard.ApplyShipment(context.Background(), quote, shipments)

	require.NoError(t, err)
	assert.Equal(t, "flatrate_standard", quote.Shipping.ShippingMethod)
	assert.Equal(t, "123 Main St\nApt 4B", quote.Shipping.Street)
	assert.Equal(t, int64(62), quote.Shipping.RegionID)
	assert.Equal(t, "206-555-0100", quote.Shipping.Phone)
	assert.Equal(t, "jane@example.com", quote.Shipping.Email)
}

func TestCartGuard_ApplyShipment_NoReferenceIsNoop(t *testing.T) {
	quote := makeTestQuote(12, false)
	before := quote.Shipping
	guard := newTestGuard(newMockQuoteStore(), newMockOrderStore())

	require.NoError(t, guard.ApplyShipment(context.Background(), quote, nil))
	require.NoError(t, guard.ApplyShipment(context.Background(), quote, []hook.Shipment{{Service: "Standard"}}))
	assert.Equal(t, before, quote.Shipping)
}

func TestCartGuard_ApplyShipment_UnknownRegionLeavesIDUnset(t *testing.T) {
	quote := makeTestQuote(12, false)
	guard := newTestGuard(newMockQuoteStore(), newMockOrderStore())

	shipments := []hook.Shipment{{
		Reference: "flatrate_standard",
		ShippingAddress: hook.Address{
			Region:      "Nowhere",
			CountryCode: "US",
		},
	}}
	require.NoError(t, guard.ApplyShipment(context.Background(), quote, shipments))
	assert.Zero(t, quote.Shipping.RegionID)
}
