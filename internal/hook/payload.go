// Package hook models the payment authority's webhook payloads and the
// request-scoped metadata attached while processing them.
package hook

import (
	"math"
	"strconv"
	"strings"
)

// Hook types dispatched by the authority.
const (
	TypeOrderCreate = "order.create"
)

// TraceIDHeader carries the authority's per-delivery trace identifier.
// Attached to error reports for cross-system diagnosis.
const TraceIDHeader = "X-Bolt-Trace-Id"

// Transaction is the authority's read-only transaction payload, a mirror of
// the cart at authorization time. All monetary amounts are minor units.
type Transaction struct {
	Type     string           `json:"type" validate:"required"`
	Order    TransactionOrder `json:"order"`
	Currency string           `json:"currency"`
}

// TransactionOrder wraps the cart mirror.
type TransactionOrder struct {
	Cart TransactionCart `json:"cart"`
}

// TransactionCart mirrors the platform cart as the authority last saw it.
type TransactionCart struct {
	// OrderReference is the parent quote ID, stable across checkout retries.
	OrderReference string `json:"order_reference"`
	// DisplayID encodes "<incrementId> / <immutableQuoteId>".
	DisplayID    string            `json:"display_id"`
	Items        []TransactionItem `json:"items" validate:"omitempty,dive"`
	TaxAmount    Amount            `json:"tax_amount"`
	DiscountCode string            `json:"discount_code"`
	Shipments    []Shipment        `json:"shipments" validate:"omitempty,dive"`
}

// TransactionItem is one mirrored line item.
type TransactionItem struct {
	Reference   string `json:"reference"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SKU         string `json:"sku" validate:"required"`
	Quantity    int32  `json:"quantity" validate:"gte=0"`
	UnitPrice   Amount `json:"unit_price"`
	TotalAmount Amount `json:"total_amount"`
}

// Amount is a minor-unit monetary amount.
type Amount struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency_code,omitempty"`
}

// Shipment carries the selected shipping option and address, when known.
type Shipment struct {
	// Reference is the stable method reference, "carrierCode_methodCode".
	Reference       string  `json:"reference"`
	Service         string  `json:"service"`
	CostCents       int64   `json:"-"`
	Cost            *Amount `json:"cost,omitempty"`
	TaxAmount       *Amount `json:"tax_amount,omitempty"`
	ShippingAddress Address `json:"shipping_address"`
}

// Address is the authority's address shape. Unset fields are omitted.
type Address struct {
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Company        string `json:"company,omitempty"`
	StreetAddress1 string `json:"street_address1,omitempty"`
	StreetAddress2 string `json:"street_address2,omitempty"`
	Locality       string `json:"locality,omitempty"`
	Region         string `json:"region,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	CountryCode    string `json:"country_code,omitempty"`
	Phone          string `json:"phone,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	EmailAddress   string `json:"email_address,omitempty" validate:"omitempty,email"`
}

// Telephone returns whichever phone field the authority populated.
func (a Address) Telephone() string {
	if a.Phone != "" {
		return a.Phone
	}
	return a.PhoneNumber
}

// DiscountRequest is the discount validation hook payload.
type DiscountRequest struct {
	Cart         TransactionCart `json:"cart"`
	DiscountCode string          `json:"discount_code"`
}

// Code returns the submitted discount code, preferring the top-level field.
func (r DiscountRequest) Code() string {
	if r.DiscountCode != "" {
		return r.DiscountCode
	}
	return r.Cart.DiscountCode
}

// ShippingRequest is the shipping-and-tax hook payload.
type ShippingRequest struct {
	Cart            TransactionCart `json:"cart"`
	ShippingAddress Address         `json:"shipping_address"`
}

// ParseDisplayID splits the composite display ID into the order increment ID
// and the immutable quote ID. Either half may be empty; the separator is a
// literal " / " as produced by the authority.
func ParseDisplayID(displayID string) (incrementID string, quoteID string) {
	parts := strings.SplitN(displayID, " / ", 2)
	incrementID = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		quoteID = strings.TrimSpace(parts[1])
	}
	return incrementID, quoteID
}

// FormatDisplayID builds the composite display ID returned in envelopes.
func FormatDisplayID(incrementID string, quoteID int64) string {
	return incrementID + " / " + strconv.FormatInt(quoteID, 10)
}

// ParseQuoteID parses a quote identifier transmitted as a string field.
func ParseQuoteID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ToMinor converts a major-unit amount to minor units, rounding half away
// from zero the way the platform's currency helpers do.
func ToMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
