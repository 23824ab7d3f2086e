package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/events"
	"github.com/dukerupert/bifrost/internal/hook"
	"github.com/dukerupert/bifrost/internal/telemetry"
)

// OrderResult is returned to the handler for the success envelope.
type OrderResult struct {
	Order     *domain.Order
	DisplayID string
}

// OrderService materializes orders from authenticated create-order hooks.
type OrderService struct {
	guard     *CartGuard
	quotes    domain.QuoteStore
	orders    domain.OrderStore
	stock     domain.StockStore
	totals    *TotalsCollector
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewOrderService creates an order service.
func NewOrderService(
	guard *CartGuard,
	quotes domain.QuoteStore,
	orders domain.OrderStore,
	stock domain.StockStore,
	totals *TotalsCollector,
	publisher events.Publisher,
	logger zerolog.Logger,
) *OrderService {
	return &OrderService{
		guard:     guard,
		quotes:    quotes,
		orders:    orders,
		stock:     stock,
		totals:    totals,
		publisher: publisher,
		logger:    logger.With().Str("component", "order_service").Logger(),
	}
}

func generalError(format string, args ...interface{}) error {
	return domain.HookErrorf(domain.EUNPROCESSABLE, domain.HookCodeGeneral, "order.create", format, args...)
}

// CreateOrder validates the transaction against the live cart and
// materializes the order exactly once per increment ID.
func (s *OrderService) CreateOrder(ctx context.Context, tx hook.Transaction) (*OrderResult, error) {
	if tx.Type != hook.TypeOrderCreate {
		return nil, generalError("Invalid hook type!")
	}
	if len(tx.Order.Cart.Items) == 0 && tx.Order.Cart.DisplayID == "" && tx.Order.Cart.OrderReference == "" {
		return nil, generalError("Missing order data.")
	}

	session, err := s.guard.Resolve(ctx, tx.Order.Cart)
	if err != nil {
		return nil, err
	}
	quote := session.Immutable

	if err := s.prepareQuote(ctx, quote, tx); err != nil {
		return nil, err
	}
	if err := s.validateQuoteData(ctx, quote, tx); err != nil {
		return nil, err
	}

	order := s.materialize(quote, session.IncrementID)
	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	s.retireQuotes(ctx, session)

	s.publisher.OrderCreated(ctx, events.OrderCreated{
		IncrementID:     created.IncrementID,
		QuoteID:         created.QuoteID,
		Currency:        created.Currency,
		GrandTotalCents: created.GrandTotalCents,
		CreatedAt:       created.CreatedAt,
	})
	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.WithLabelValues(created.Currency).Inc()
		telemetry.Business.OrderValue.WithLabelValues(created.Currency).Observe(float64(created.GrandTotalCents))
	}

	s.logger.Info().
		Str("increment_id", created.IncrementID).
		Int64("quote_id", created.QuoteID).
		Int64("grand_total_cents", created.GrandTotalCents).
		Msg("order created")

	return &OrderResult{
		Order:     created,
		DisplayID: hook.FormatDisplayID(created.IncrementID, quote.ID),
	}, nil
}

// prepareQuote applies any late shipment info from the transaction and
// re-collects totals so validation runs against current figures.
func (s *OrderService) prepareQuote(ctx context.Context, quote *domain.Quote, tx hook.Transaction) error {
	if err := s.guard.ApplyShipment(ctx, quote, tx.Order.Cart.Shipments); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "order.create", "failed to apply shipment")
	}
	if quote.Shipping.ShippingMethod != "" && !quote.IsVirtual {
		if err := s.totals.CollectRates(ctx, quote); err != nil {
			return err
		}
	}
	return s.totals.Collect(ctx, quote)
}

// validateQuoteData runs the reconciliation checks in order: SKU set
// membership, inventory, unit price, then cart-level tax.
func (s *OrderService) validateQuoteData(ctx context.Context, quote *domain.Quote, tx hook.Transaction) error {
	txItems := tx.Order.Cart.Items
	txSKUs := make(map[string]bool, len(txItems))
	for _, it := range txItems {
		txSKUs[it.SKU] = true
	}

	for _, item := range quote.VisibleItems() {
		if !txSKUs[item.SKU] {
			return generalError("Cart data has changed. SKU: %s", item.SKU)
		}
		if err := s.validateItemInventory(ctx, item.SKU); err != nil {
			return err
		}
		if err := validateItemPrice(item, txItems); err != nil {
			return err
		}
	}

	return validateTax(quote, tx)
}

func (s *OrderService) validateItemInventory(ctx context.Context, sku string) error {
	inStock, err := s.stock.IsInStock(ctx, sku)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "order.create", "failed to check inventory")
	}
	if !inStock {
		return domain.HookErrorf(domain.EUNPROCESSABLE, domain.HookCodeOutOfInventory,
			"order.create", "Item is out of stock. Item sku: %s", sku)
	}
	return nil
}

func validateItemPrice(item domain.QuoteItem, txItems []hook.TransactionItem) error {
	for _, txItem := range txItems {
		if txItem.SKU == item.SKU && txItem.UnitPrice.Amount != item.UnitPriceCents {
			return domain.HookErrorf(domain.EUNPROCESSABLE, domain.HookCodePriceUpdated,
				"order.create", "Price do not matched. Item sku: %s", item.SKU)
		}
	}
	return nil
}

// validateTax compares minor-unit tax exactly. Exact equality between two
// independent computation paths is fragile under rounding, but a silent
// tolerance would hide real pricing drift; kept strict pending product
// review.
func validateTax(quote *domain.Quote, tx hook.Transaction) error {
	if hook.ToMinor(quote.Totals.Tax) != tx.Order.Cart.TaxAmount.Amount {
		return generalError("Cart Tax mismatched.")
	}
	return nil
}

func (s *OrderService) materialize(quote *domain.Quote, incrementID string) *domain.Order {
	order := &domain.Order{
		IncrementID:     incrementID,
		QuoteID:         quote.ID,
		Currency:        quote.Currency,
		SubtotalCents:   quote.Totals.SubtotalCents,
		DiscountCents:   quote.Totals.DiscountCents,
		ShippingCents:   hook.ToMinor(quote.Totals.ShippingCost),
		TaxCents:        hook.ToMinor(quote.Totals.Tax),
		GrandTotalCents: quote.Totals.GrandTotalCents,
	}
	for _, it := range quote.VisibleItems() {
		order.Items = append(order.Items, domain.OrderItem{
			SKU:            it.SKU,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			RowTotalCents:  int64(it.Quantity) * it.UnitPriceCents,
		})
	}
	return order
}

// retireQuotes deactivates both quotes after a successful materialization.
// Failures here are logged, not surfaced: the order exists and the authority
// must see success.
func (s *OrderService) retireQuotes(ctx context.Context, session *CartSession) {
	seen := map[int64]bool{}
	for _, q := range []*domain.Quote{session.Immutable, session.Parent} {
		if q == nil || seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		q.IsActive = false
		if err := s.quotes.SaveQuote(ctx, q); err != nil {
			s.logger.Warn().Err(err).Int64("quote_id", q.ID).Msg("failed to retire quote")
		}
	}
}
