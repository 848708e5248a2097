package canonical

import (
	"encoding/json"
	"errors"

	"github.com/gowebpki/jcs"
)

// Errors for structurally absent required sections. Missing optional
// sub-fields never error; they normalize to empty sentinels instead.
var (
	ErrMissingCart            = errors.New("canonical: order has no cart")
	ErrMissingShippingAddress = errors.New("canonical: order has no shipping address")
)

// Order is the fixed-shape reduction of an order used as the exact input
// to hashing and signing. Struct field order locks the JSON key order;
// Marshal additionally applies RFC 8785 so the serialized bytes are
// independent of any source ordering.
//
// Only fields that are economically critical and stable after creation
// belong here. Lifecycle fields (status, deliveredAt, payment-status
// updates) and the signature envelope itself are excluded: including
// them would make verification of the original intent impossible once
// the order advances.
type Order struct {
	UserID          string  `json:"userId"`
	Cart            []Item  `json:"cart"`
	TotalPrice      float64 `json:"totalPrice"`
	ShippingAddress Address `json:"shippingAddress"`
	PaymentInfo     Payment `json:"paymentInfo"`
}

// Item is one canonical cart line. Display-only fields (name, images)
// are excluded: they are mutable denormalized data and must not affect
// the signature.
type Item struct {
	ProductID string  `json:"productId"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
	ShopID    string  `json:"shopId"`
}

// Address holds the fixed destination fields. Absent sub-fields are the
// empty string, never omitted, so the shape is always complete.
type Address struct {
	Address  string `json:"address"`
	Province string `json:"province"`
	Country  string `json:"country"`
}

// Payment holds the payment descriptor fields, each independently
// normalized to the empty string when absent.
type Payment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Type   string `json:"type"`
}

// Marshal returns the canonical serialization of the order: compact JSON
// in the fixed key order above, normalized to RFC 8785 (JCS) form. Two
// logically identical orders always produce byte-identical output.
func Marshal(o Order) ([]byte, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}
