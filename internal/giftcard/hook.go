package giftcard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/events"
)

// lookupTimeout bounds how long a third-party integration may take to claim
// a code before the registry reports it unknown.
const lookupTimeout = 2 * time.Second

// HookProvider is the open extension point for third-party gift-card
// systems: codes unclaimed by the built-in providers are offered over NATS
// request/reply, and any subscribed integration may claim them.
type HookProvider struct {
	conn   *nats.Conn
	quotes domain.QuoteStore
}

// lookupRequest is sent on the lookup subject.
type lookupRequest struct {
	Code string `json:"code"`
}

// lookupReply is the integration's answer.
type lookupReply struct {
	Found        bool   `json:"found"`
	Provider     string `json:"provider"`
	BalanceCents int64  `json:"balance_cents"`
	Description  string `json:"description"`
	ErrorMessage string `json:"error_message"`
}

// NewHookProvider creates the extension-hook provider.
func NewHookProvider(conn *nats.Conn, quotes domain.QuoteStore) *HookProvider {
	return &HookProvider{conn: conn, quotes: quotes}
}

// Code returns the provider code.
func (p *HookProvider) Code() string { return "hook" }

// Lookup offers the code to subscribed integrations. No responder or a
// negative reply maps to not-found so the registry can report an unknown
// code.
func (p *HookProvider) Lookup(ctx context.Context, code string) (*Card, error) {
	if p.conn == nil {
		return nil, domain.ErrCouponNotFound
	}

	data, err := json.Marshal(lookupRequest{Code: code})
	if err != nil {
		return nil, domain.Internal(err, "giftcard.hook", "failed to marshal lookup request")
	}

	reqCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	msg, err := p.conn.RequestWithContext(reqCtx, events.SubjectGiftCardLookup, data)
	if err != nil {
		// No integration subscribed, or none answered in time.
		return nil, domain.ErrCouponNotFound
	}

	var reply lookupReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, domain.Internal(err, "giftcard.hook", "malformed lookup reply")
	}
	if !reply.Found {
		return nil, domain.ErrCouponNotFound
	}
	if reply.ErrorMessage != "" {
		return nil, domain.Errorf(domain.EUNPROCESSABLE, "giftcard.hook", "%s", reply.ErrorMessage)
	}

	provider := reply.Provider
	if provider == "" {
		provider = p.Code()
	}

	return &Card{
		Provider:     provider,
		Code:         code,
		BalanceCents: reply.BalanceCents,
		Description:  reply.Description,
	}, nil
}

// Apply records the external card on both quotes under the zero-usage
// guard; the owning integration tracks consumption on its side.
func (p *HookProvider) Apply(ctx context.Context, card *Card, immutable, parent *domain.Quote) (int64, error) {
	for _, q := range []*domain.Quote{immutable, parent} {
		if q == nil || q.GiftCardsUsedCents != 0 || q.GiftCardCode == card.Code {
			continue
		}
		q.GiftCardCode = card.Code
		if err := p.quotes.SaveQuote(ctx, q); err != nil {
			return 0, domain.WrapError(err, domain.EINTERNAL, "giftcard.apply", "failed to save quote")
		}
	}
	return card.BalanceCents, nil
}
