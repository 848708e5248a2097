// Copyright 2025 Jason Stonebraker
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stonebraker/orderattest/apps/server/internal/store"
	"github.com/stonebraker/orderattest/pkg/attest/canonical"
	"github.com/stonebraker/orderattest/pkg/attest/keys"
	"github.com/stonebraker/orderattest/pkg/attest/sanitize"
	"github.com/stonebraker/orderattest/pkg/attest/sign"
	"github.com/stonebraker/orderattest/pkg/attest/verify"
	"github.com/stonebraker/orderattest/pkg/attest/wire"
)

// Order lifecycle statuses, in progression order, plus the refund pair.
var orderStatuses = []string{
	"Processing",
	"Transferred to delivery partner",
	"Shipping",
	"Received",
	"On the way",
	"Delivered",
	"Processing refund",
	"Refund Success",
}

const (
	statusRefundRequested = "Processing refund"
	statusRefundAccepted  = "Refund Success"
)

// OrderHandler wires the signing core into the order HTTP flows.
type OrderHandler struct {
	store    *store.Store
	signer   *sign.Signer
	verifier *verify.Verifier
	keyring  *keys.Keyring
	log      *zap.Logger
}

func NewOrderHandler(st *store.Store, signer *sign.Signer, verifier *verify.Verifier, keyring *keys.Keyring, log *zap.Logger) *OrderHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderHandler{store: st, signer: signer, verifier: verifier, keyring: keyring, log: log}
}

// Routes returns the order API router, mounted under /api/v2/order.
func (h *OrderHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/create-order", h.createOrder)
	r.Get("/get-all-orders/{userId}", h.listUserOrders)
	r.Get("/get-seller-all-orders/{shopId}", h.listShopOrders)
	r.Get("/admin-all-orders", h.listAllOrders)
	r.Put("/update-order-status/{id}", h.updateOrderStatus)
	r.Put("/order-refund/{id}", h.requestRefund)
	r.Put("/order-refund-success/{id}", h.acceptRefund)
	r.Get("/signing-key", h.signingKey)
	return r
}

// AttestationHeader carries a client-produced signature envelope on
// order creation, encoded with wire.EncodeEnvelope. A body envelope
// takes precedence when both are present.
const AttestationHeader = "X-Order-Attestation"

type createOrderRequest struct {
	User            wire.UserRef      `json:"user"`
	Cart            []wire.CartItem   `json:"cart"`
	TotalPrice      float64           `json:"totalPrice"`
	ShippingAddress *wire.Address     `json:"shippingAddress"`
	PaymentInfo     *wire.PaymentInfo `json:"paymentInfo"`

	// Envelope is set when the client produced the signature itself.
	// It is verified before the order is created; any mismatch is a
	// hard rejection.
	Envelope *wire.Envelope `json:"envelope,omitempty"`
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User.ID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	if len(req.Cart) == 0 {
		writeError(w, http.StatusBadRequest, canonical.ErrMissingCart.Error())
		return
	}
	if req.ShippingAddress == nil {
		writeError(w, http.StatusBadRequest, canonical.ErrMissingShippingAddress.Error())
		return
	}
	if total := subtotal(req.Cart); math.Abs(req.TotalPrice-total) > 0.005 {
		writeError(w, http.StatusBadRequest, "totalPrice does not match cart contents")
		return
	}
	req.ShippingAddress.Address = sanitize.Text(req.ShippingAddress.Address)
	req.ShippingAddress.Province = sanitize.Text(req.ShippingAddress.Province)
	req.ShippingAddress.Country = sanitize.Text(req.ShippingAddress.Country)

	clientEnv := req.Envelope
	if clientEnv == nil {
		if v := r.Header.Get(AttestationHeader); v != "" {
			decoded, err := wire.DecodeEnvelope(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid attestation header: "+err.Error())
				return
			}
			clientEnv = &decoded
		}
	}

	// One sub-order per shop, in first-seen cart order.
	groups := groupCartByShop(req.Cart)
	if clientEnv != nil && len(groups) > 1 {
		writeError(w, http.StatusUnprocessableEntity, "client-signed orders must target a single shop")
		return
	}

	now := time.Now().UTC()
	created := make([]*store.Order, 0, len(groups))
	for _, g := range groups {
		raw := wire.Order{
			User:            req.User,
			Cart:            g.items,
			TotalPrice:      subtotal(g.items),
			ShippingAddress: req.ShippingAddress,
			PaymentInfo:     req.PaymentInfo,
		}
		rec, err := raw.ToCanonical()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var env wire.Envelope
		if clientEnv != nil {
			ok, verr := h.verifier.VerifyOrder(rec, clientEnv.Signature, clientEnv.PublicKey, clientEnv.Algorithm)
			if verr != nil {
				writeError(w, http.StatusUnprocessableEntity, "invalid order signature: "+verr.Error())
				return
			}
			if !ok {
				verificationFailures.Inc()
				writeError(w, http.StatusUnprocessableEntity, "order signature does not match order contents")
				return
			}
			env = *clientEnv
			env.Verified = true
		} else {
			env, err = h.signer.SignOrder(rec)
			if err != nil {
				// A server that cannot sign must not accept the order.
				h.log.Error("sign order", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "order signing unavailable")
				return
			}
			ordersSigned.Inc()
		}

		created = append(created, &store.Order{
			ID:              uuid.NewString(),
			UserID:          req.User.ID,
			ShopID:          g.shopID,
			Cart:            g.items,
			ShippingAddress: *req.ShippingAddress,
			PaymentInfo:     derefPayment(req.PaymentInfo),
			TotalPrice:      raw.TotalPrice,
			Status:          orderStatuses[0],
			Envelope:        env,
			CreatedAt:       now,
		})
	}

	for _, o := range created {
		if err := h.store.Create(r.Context(), o); err != nil {
			h.log.Error("persist order", zap.String("order", o.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to persist order")
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"orders":  created,
	})
}

// auditedOrder is a stored order plus the advisory verification outcome
// computed at read time.
type auditedOrder struct {
	*store.Order
	IsSignatureValid    bool   `json:"isSignatureValid"`
	VerificationMessage string `json:"verificationMessage"`
}

func (h *OrderHandler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.log.Error("list user orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  h.auditAll(orders),
	})
}

func (h *OrderHandler) listShopOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListByShop(r.Context(), chi.URLParam(r, "shopId"))
	if err != nil {
		h.log.Error("list shop orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  h.auditAll(orders),
	})
}

// listAllOrders is the admin view across every shop and user, delivered
// orders first, each with the same advisory verification outcome the
// per-user and per-shop listings attach.
func (h *OrderHandler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListAll(r.Context())
	if err != nil {
		h.log.Error("list all orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  h.auditAll(orders),
	})
}

// auditAll re-verifies each stored order and lazily refreshes the
// persisted verified flag when the outcome changed. The cache write is
// fire-and-forget: it never delays or fails the read.
func (h *OrderHandler) auditAll(orders []*store.Order) []auditedOrder {
	out := make([]auditedOrder, 0, len(orders))
	for _, o := range orders {
		res := h.verifier.Audit(o.ToWire(), o.Envelope)
		if res.Valid {
			verifications.WithLabelValues("valid").Inc()
		} else {
			verifications.WithLabelValues("invalid").Inc()
			verificationFailures.Inc()
			h.log.Warn("stored order failed verification",
				zap.String("order", o.ID),
				zap.String("message", res.Message))
		}
		if res.Valid != o.Envelope.Verified {
			go h.persistVerified(o.ID, res.Valid)
		}
		out = append(out, auditedOrder{Order: o, IsSignatureValid: res.Valid, VerificationMessage: res.Message})
	}
	return out
}

func (h *OrderHandler) persistVerified(orderID string, verified bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.UpdateVerified(ctx, orderID, verified); err != nil {
		h.log.Warn("update verified flag", zap.String("order", orderID), zap.Error(err))
	}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	id := chi.URLParam(r, "id")
	var deliveredAt *time.Time
	if req.Status == "Delivered" {
		now := time.Now().UTC()
		deliveredAt = &now
	}
	if err := h.store.UpdateStatus(r.Context(), id, req.Status, deliveredAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.log.Error("update order status", zap.String("order", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update order")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error("reload order", zap.String("order", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   order,
	})
}

// requestRefund moves an order into the refund lifecycle at the buyer's
// request. Status is outside the signed record, so the stored signature
// is untouched.
func (h *OrderHandler) requestRefund(w http.ResponseWriter, r *http.Request) {
	h.setRefundStatus(w, r, statusRefundRequested, "order refund requested")
}

// acceptRefund is the seller side of the refund flow.
func (h *OrderHandler) acceptRefund(w http.ResponseWriter, r *http.Request) {
	h.setRefundStatus(w, r, statusRefundAccepted, "order refund successful")
}

func (h *OrderHandler) setRefundStatus(w http.ResponseWriter, r *http.Request, want, message string) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != want {
		writeError(w, http.StatusBadRequest, "status must be "+strconv.Quote(want))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.UpdateStatus(r.Context(), id, req.Status, nil); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.log.Error("update refund status", zap.String("order", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update order")
		return
	}

	order, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error("reload order", zap.String("order", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   order,
		"message": message,
	})
}

// signingKey tells clients and audit tools which key and algorithm the
// server signs with.
func (h *OrderHandler) signingKey(w http.ResponseWriter, r *http.Request) {
	if len(h.keyring.PublicKey()) == 0 {
		writeError(w, http.StatusServiceUnavailable, "signing key unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"publicKey": h.keyring.PublicKey(),
		"algorithm": h.keyring.Algorithm(),
	})
}

type shopGroup struct {
	shopID string
	items  []wire.CartItem
}

func groupCartByShop(cart []wire.CartItem) []shopGroup {
	index := map[string]int{}
	var groups []shopGroup
	for _, item := range cart {
		i, ok := index[item.ShopID]
		if !ok {
			i = len(groups)
			index[item.ShopID] = i
			groups = append(groups, shopGroup{shopID: item.ShopID})
		}
		groups[i].items = append(groups[i].items, item)
	}
	return groups
}

func subtotal(items []wire.CartItem) float64 {
	var total float64
	for _, it := range items {
		total += float64(it.Qty) * it.Price
	}
	return total
}

func derefPayment(p *wire.PaymentInfo) wire.PaymentInfo {
	if p == nil {
		return wire.PaymentInfo{}
	}
	return *p
}

func validStatus(status string) bool {
	for _, s := range orderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"success": false,
		"message": msg,
	})
}
