package wire

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/stonebraker/orderattest/pkg/attest/canonical"
)

// UserRef tolerates the two shapes an order's user reference arrives in:
// a bare string identifier or an object carrying an "_id" field. Both
// normalize to the same string id.
type UserRef struct {
	ID string
}

func (u *UserRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		u.ID = s
		return nil
	}
	var obj struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("wire: user must be a string id or an object with _id")
	}
	u.ID = obj.ID
	return nil
}

func (u UserRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.ID)
}

// CartItem is a live cart line as submitted or stored. A line may carry
// its product reference either as productId or, when it is a direct
// product document reference, as _id. Name is display-only.
type CartItem struct {
	ProductID string  `json:"productId,omitempty"`
	ID        string  `json:"_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
	ShopID    string  `json:"shopId"`
}

// productRef resolves the item's product identifier, preferring productId.
// An empty result means the item is unresolvable and must be dropped.
func (c CartItem) productRef() string {
	if c.ProductID != "" {
		return c.ProductID
	}
	return c.ID
}

type Address struct {
	Address  string `json:"address,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
}

type PaymentInfo struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Order is the tolerated raw order shape: everything needed to rebuild
// the canonical record, plus the mutable lifecycle fields that
// canonicalization deliberately ignores.
type Order struct {
	User            UserRef      `json:"user"`
	Cart            []CartItem   `json:"cart"`
	TotalPrice      float64      `json:"totalPrice"`
	ShippingAddress *Address     `json:"shippingAddress"`
	PaymentInfo     *PaymentInfo `json:"paymentInfo"`

	Status      string     `json:"status,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
}

// ToCanonical reduces the raw order to its canonical record. Cart items
// with no resolvable product reference are filtered out, not nulled.
// Fails only when the cart or shipping address section is structurally
// absent.
func (o Order) ToCanonical() (canonical.Order, error) {
	if o.Cart == nil {
		return canonical.Order{}, canonical.ErrMissingCart
	}
	if o.ShippingAddress == nil {
		return canonical.Order{}, canonical.ErrMissingShippingAddress
	}

	items := make([]canonical.Item, 0, len(o.Cart))
	for _, it := range o.Cart {
		ref := it.productRef()
		if ref == "" {
			continue
		}
		items = append(items, canonical.Item{
			ProductID: ref,
			Qty:       it.Qty,
			Price:     it.Price,
			ShopID:    it.ShopID,
		})
	}

	rec := canonical.Order{
		UserID:     o.User.ID,
		Cart:       items,
		TotalPrice: o.TotalPrice,
		ShippingAddress: canonical.Address{
			Address:  o.ShippingAddress.Address,
			Province: o.ShippingAddress.Province,
			Country:  o.ShippingAddress.Country,
		},
	}
	if o.PaymentInfo != nil {
		rec.PaymentInfo = canonical.Payment{
			ID:     o.PaymentInfo.ID,
			Status: o.PaymentInfo.Status,
			Type:   o.PaymentInfo.Type,
		}
	}
	return rec, nil
}

// Envelope is the signature artifact persisted alongside each order.
// Signature and PublicKey are raw bytes; JSON transports them as
// standard base64. Algorithm records the scheme in effect when the
// signature was produced and must be carried forward unchanged.
type Envelope struct {
	Signature []byte `json:"signature"`
	PublicKey []byte `json:"publicKey"`
	Algorithm string `json:"algorithm"`
	Verified  bool   `json:"verified"`
}

// Empty reports whether the envelope carries no signature material.
func (e Envelope) Empty() bool {
	return len(e.Signature) == 0 && len(e.PublicKey) == 0 && e.Algorithm == ""
}

// EncodeEnvelope returns base64url(JSON) of the envelope, suitable for a
// header or query value.
func EncodeEnvelope(e Envelope) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeEnvelope parses a base64url(JSON) value produced by EncodeEnvelope.
func DecodeEnvelope(value string) (Envelope, error) {
	var zero Envelope
	if value == "" {
		return zero, errors.New("wire: empty envelope value")
	}
	b, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return zero, err
	}
	if err := json.Unmarshal(b, &zero); err != nil {
		return zero, err
	}
	return zero, nil
}
