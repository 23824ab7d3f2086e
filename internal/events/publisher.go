// Package events publishes integration events to NATS after state-changing
// hooks, and hosts the request/reply extension hook used by the gift-card
// registry.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subjects published by the gateway.
const (
	SubjectOrderCreated    = "bifrost.order.created"
	SubjectDiscountApplied = "bifrost.discount.applied"

	// SubjectGiftCardLookup is the request/reply subject third-party
	// gift-card integrations answer on.
	SubjectGiftCardLookup = "bifrost.giftcard.lookup"
)

// OrderCreated is published after an order is materialized from a hook.
type OrderCreated struct {
	EventID         string    `json:"event_id"`
	IncrementID     string    `json:"increment_id"`
	QuoteID         int64     `json:"quote_id"`
	Currency        string    `json:"currency"`
	GrandTotalCents int64     `json:"grand_total_cents"`
	CreatedAt       time.Time `json:"created_at"`
}

// DiscountApplied is published after a discount or gift card is applied.
type DiscountApplied struct {
	EventID     string    `json:"event_id"`
	QuoteID     int64     `json:"quote_id"`
	Code        string    `json:"code"`
	Kind        string    `json:"kind"` // coupon or giftcard
	AmountCents int64     `json:"amount_cents"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Publisher publishes integration events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	OrderCreated(ctx context.Context, event OrderCreated)
	DiscountApplied(ctx context.Context, event DiscountApplied)
}

// NATSPublisher publishes events to a NATS connection. Publishing is
// best-effort: failures are logged, never surfaced to the hook response.
type NATSPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// Connect establishes a NATS connection with sane reconnect defaults.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
}

// NewNATSPublisher creates a publisher over an established connection.
func NewNATSPublisher(conn *nats.Conn, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logger}
}

// OrderCreated publishes the order-created event.
func (p *NATSPublisher) OrderCreated(ctx context.Context, event OrderCreated) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	p.publish(SubjectOrderCreated, event)
}

// DiscountApplied publishes the discount-applied event.
func (p *NATSPublisher) DiscountApplied(ctx context.Context, event DiscountApplied) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	p.publish(SubjectDiscountApplied, event)
}

func (p *NATSPublisher) publish(subject string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("subject", subject).Msg("failed to marshal event")
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}

// NopPublisher discards all events. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) OrderCreated(context.Context, OrderCreated)       {}
func (NopPublisher) DiscountApplied(context.Context, DiscountApplied) {}
