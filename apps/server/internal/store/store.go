// Package store persists orders and their signature envelopes.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stonebraker/orderattest/pkg/attest/wire"
)

var ErrNotFound = errors.New("store: order not found")

// Order is a persisted sub-order. Creation splits a cart by shop, so
// every stored order belongs to exactly one shop.
type Order struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	ShopID          string           `json:"shopId"`
	Cart            []wire.CartItem  `json:"cart"`
	ShippingAddress wire.Address     `json:"shippingAddress"`
	PaymentInfo     wire.PaymentInfo `json:"paymentInfo"`
	TotalPrice      float64          `json:"totalPrice"`
	Status          string           `json:"status"`
	Envelope        wire.Envelope    `json:"envelope"`
	DeliveredAt     *time.Time       `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// ToWire rebuilds the raw order shape the canonicalizer consumes from
// the persisted fields.
func (o *Order) ToWire() wire.Order {
	addr := o.ShippingAddress
	pay := o.PaymentInfo
	return wire.Order{
		User:            wire.UserRef{ID: o.UserID},
		Cart:            o.Cart,
		TotalPrice:      o.TotalPrice,
		ShippingAddress: &addr,
		PaymentInfo:     &pay,
		Status:          o.Status,
		DeliveredAt:     o.DeliveredAt,
	}
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS orders (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        shop_id TEXT NOT NULL,
        cart JSON NOT NULL,
        shipping_address JSON NOT NULL,
        payment_info JSON NOT NULL,
        total_price REAL NOT NULL,
        status TEXT NOT NULL DEFAULT 'Processing',
        signature BLOB NOT NULL,
        public_key BLOB NOT NULL,
        algorithm TEXT NOT NULL,
        verified INTEGER NOT NULL DEFAULT 0,
        delivered_at DATETIME,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
    CREATE INDEX IF NOT EXISTS idx_orders_shop ON orders(shop_id);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	cartJSON, err := json.Marshal(o.Cart)
	if err != nil {
		return fmt.Errorf("store: marshal cart: %w", err)
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("store: marshal shipping address: %w", err)
	}
	payJSON, err := json.Marshal(o.PaymentInfo)
	if err != nil {
		return fmt.Errorf("store: marshal payment info: %w", err)
	}

	var deliveredAt any
	if o.DeliveredAt != nil {
		deliveredAt = *o.DeliveredAt
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO orders (id, user_id, shop_id, cart, shipping_address, payment_info,
            total_price, status, signature, public_key, algorithm, verified, delivered_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.ShopID, cartJSON, addrJSON, payJSON,
		o.TotalPrice, o.Status, o.Envelope.Signature, o.Envelope.PublicKey,
		o.Envelope.Algorithm, o.Envelope.Verified, deliveredAt, o.CreatedAt)
	return err
}

const orderColumns = `id, user_id, shop_id, cart, shipping_address, payment_info,
    total_price, status, signature, public_key, algorithm, verified, delivered_at, created_at`

func (s *Store) GetByID(ctx context.Context, id string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// ListByUser returns the user's orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
}

// ListByShop returns a seller's orders, newest first.
func (s *Store) ListByShop(ctx context.Context, shopID string) ([]*Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE shop_id = ? ORDER BY created_at DESC, id`, shopID)
}

// ListAll returns every order, most recently delivered first and then
// newest first. Undelivered orders sort after delivered ones.
func (s *Store) ListAll(ctx context.Context) ([]*Order, error) {
	return s.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY delivered_at DESC, created_at DESC, id`)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateStatus sets the order's lifecycle status, stamping delivered_at
// when the order reaches Delivered. These fields are outside the signed
// canonical record, so stored signatures stay valid.
func (s *Store) UpdateStatus(ctx context.Context, id, status string, deliveredAt *time.Time) error {
	var delivered any
	if deliveredAt != nil {
		delivered = *deliveredAt
	}
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = ?, delivered_at = COALESCE(?, delivered_at) WHERE id = ?`,
		status, delivered, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateVerified persists the cached verification flag. Called off the
// read path; the verification result already returned is authoritative
// whether or not this write succeeds.
func (s *Store) UpdateVerified(ctx context.Context, id string, verified bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET verified = ? WHERE id = ?`, verified, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	var (
		o           Order
		cartJSON    []byte
		addrJSON    []byte
		payJSON     []byte
		deliveredAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.UserID, &o.ShopID, &cartJSON, &addrJSON, &payJSON,
		&o.TotalPrice, &o.Status, &o.Envelope.Signature, &o.Envelope.PublicKey,
		&o.Envelope.Algorithm, &o.Envelope.Verified, &deliveredAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cartJSON, &o.Cart); err != nil {
		return nil, fmt.Errorf("store: unmarshal cart: %w", err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("store: unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(payJSON, &o.PaymentInfo); err != nil {
		return nil, fmt.Errorf("store: unmarshal payment info: %w", err)
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	return &o, nil
}
