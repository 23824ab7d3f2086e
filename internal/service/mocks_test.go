package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/events"
	"github.com/dukerupert/bifrost/internal/giftcard"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/shipping"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockQuoteStore implements domain.QuoteStore for testing
type mockQuoteStore struct {
	quotes map[int64]*domain.Quote

	getCalls       []int64
	getActiveCalls []int64
	saved          []*domain.Quote

	getErr  error
	saveErr error
}

func newMockQuoteStore(quotes ...*domain.Quote) *mockQuoteStore {
	m := &mockQuoteStore{quotes: map[int64]*domain.Quote{}}
	for _, q := range quotes {
		m.quotes[q.ID] = q
	}
	return m
}

func (m *mockQuoteStore) GetQuote(ctx context.Context, id int64) (*domain.Quote, error) {
	m.getCalls = append(m.getCalls, id)
	if m.getErr != nil {
		return nil, m.getErr
	}
	q, ok := m.quotes[id]
	if !ok {
		return nil, domain.ErrQuoteNotFound
	}
	return q, nil
}

func (m *mockQuoteStore) GetActiveQuote(ctx context.Context, id int64) (*domain.Quote, error) {
	m.getActiveCalls = append(m.getActiveCalls, id)
	if m.getErr != nil {
		return nil, m.getErr
	}
	q, ok := m.quotes[id]
	if !ok {
		return nil, domain.ErrQuoteNotFound
	}
	if !q.IsActive {
		return nil, domain.ErrQuoteInactive
	}
	return q, nil
}

func (m *mockQuoteStore) GetQuoteByIncrementID(ctx context.Context, incrementID string) (*domain.Quote, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, q := range m.quotes {
		if q.IncrementID == incrementID {
			return q, nil
		}
	}
	return nil, domain.ErrQuoteNotFound
}

func (m *mockQuoteStore) SaveQuote(ctx context.Context, q *domain.Quote) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, q)
	return nil
}

// mockOrderStore implements domain.OrderStore for testing
type mockOrderStore struct {
	orders map[string]*domain.Order

	created   []*domain.Order
	getErr    error
	createErr error
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{orders: map[string]*domain.Order{}}
}

func (m *mockOrderStore) GetOrderByIncrementID(ctx context.Context, incrementID string) (*domain.Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[incrementID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if _, ok := m.orders[o.IncrementID]; ok {
		return nil, domain.ErrOrderAlreadyExists
	}
	o.ID = int64(len(m.orders) + 1)
	o.CreatedAt = time.Now()
	m.orders[o.IncrementID] = o
	m.created = append(m.created, o)
	return o, nil
}

// mockStockStore implements domain.StockStore for testing
type mockStockStore struct {
	outOfStock map[string]bool
	err        error
}

func (m *mockStockStore) IsInStock(ctx context.Context, sku string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return !m.outOfStock[sku], nil
}

// mockRegionStore implements domain.RegionStore for testing
type mockRegionStore struct {
	id  int64
	err error
}

func (m *mockRegionStore) GetRegionID(ctx context.Context, countryCode, region string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if m.id == 0 {
		return 0, domain.ErrRegionNotFound
	}
	return m.id, nil
}

// mockCouponStore implements domain.CouponStore for testing
type mockCouponStore struct {
	coupons map[string]*domain.Coupon
	rules   map[int64]*domain.DiscountRule

	lookupCalls int
	getErr      error
}

func newMockCouponStore() *mockCouponStore {
	return &mockCouponStore{
		coupons: map[string]*domain.Coupon{},
		rules:   map[int64]*domain.DiscountRule{},
	}
}

func (m *mockCouponStore) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	m.lookupCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.coupons[code]
	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	return c, nil
}

func (m *mockCouponStore) GetRule(ctx context.Context, ruleID int64) (*domain.DiscountRule, error) {
	r, ok := m.rules[ruleID]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	return r, nil
}

// mockCache implements cache.Cache for testing
type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	deleted []string

	getErr error
	setErr error
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, domain.NotFound("cache.get", "key", key)
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.data, key)
	return nil
}

// mockPublisher implements events.Publisher for testing
type mockPublisher struct {
	orders    []events.OrderCreated
	discounts []events.DiscountApplied
}

func (m *mockPublisher) OrderCreated(ctx context.Context, event events.OrderCreated) {
	m.orders = append(m.orders, event)
}

func (m *mockPublisher) DiscountApplied(ctx context.Context, event events.DiscountApplied) {
	m.discounts = append(m.discounts, event)
}

// mockCarrier implements shipping.Carrier for testing
type mockCarrier struct {
	code  string
	title string
	rates []shipping.Rate
	err   error
	calls int
}

func (m *mockCarrier) Code() string  { return m.code }
func (m *mockCarrier) Title() string { return m.title }

func (m *mockCarrier) GetRates(ctx context.Context, params shipping.RateParams) ([]shipping.Rate, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.rates, nil
}

// mockGiftCardProvider implements giftcard.Provider for testing
type mockGiftCardProvider struct {
	code        string
	card        *giftcard.Card
	lookupErr   error
	applyAmount int64
	applyErr    error

	lookupCalls int
	applyCalls  int
}

func (m *mockGiftCardProvider) Code() string { return m.code }

func (m *mockGiftCardProvider) Lookup(ctx context.Context, code string) (*giftcard.Card, error) {
	m.lookupCalls++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	if m.card == nil || m.card.Code != code {
		return nil, domain.ErrCouponNotFound
	}
	return m.card, nil
}

func (m *mockGiftCardProvider) Apply(ctx context.Context, card *giftcard.Card, immutable, parent *domain.Quote) (int64, error) {
	m.applyCalls++
	if m.applyErr != nil {
		return 0, m.applyErr
	}
	return m.applyAmount, nil
}

// ============================================================================
// Test Fixtures
// ============================================================================

func makeTestQuote(id int64, active bool) *domain.Quote {
	return &domain.Quote{
		ID:          id,
		IncrementID: "100000123",
		Currency:    "USD",
		IsActive:    active,
		Items: []domain.QuoteItem{
			{ID: 1, SKU: "WIDGET-1", Name: "Widget", Quantity: 2, UnitPriceCents: 1500},
			{ID: 2, SKU: "GADGET-2", Name: "Gadget", Quantity: 1, UnitPriceCents: 2500},
		},
		Shipping: domain.QuoteAddress{
			FirstName:   "Jane",
			LastName:    "Doe",
			Street:      "123 Main St",
			City:        "Seattle",
			Region:      "Washington",
			PostalCode:  "98101",
			CountryCode: "US",
		},
	}
}

// makeTestSession builds the usual two-quote checkout: an active parent
// and an inactive immutable snapshot reserved under the same increment ID.
func makeTestSession() (parent, immutable *domain.Quote) {
	parent = makeTestQuote(11, true)
	immutable = makeTestQuote(12, false)
	immutable.ParentID = parent.ID
	return parent, immutable
}

func makeTestCart(parentID int64, q *domain.Quote) hook.TransactionCart {
	cart := hook.TransactionCart{
		OrderReference: strconv.FormatInt(parentID, 10),
		DisplayID:      hook.FormatDisplayID(q.IncrementID, q.ID),
	}
	for _, it := range q.VisibleItems() {
		cart.Items = append(cart.Items, hook.TransactionItem{
			SKU:         it.SKU,
			Name:        it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   hook.Amount{Amount: it.UnitPriceCents},
			TotalAmount: hook.Amount{Amount: int64(it.Quantity) * it.UnitPriceCents},
		})
	}
	return cart
}

func makeOrderTransaction(parentID int64, q *domain.Quote) hook.Transaction {
	return hook.Transaction{
		Type:     hook.TypeOrderCreate,
		Currency: q.Currency,
		Order:    hook.TransactionOrder{Cart: makeTestCart(parentID, q)},
	}
}
