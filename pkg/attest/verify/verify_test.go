package verify

import (
	"errors"
	"testing"

	"github.com/stonebraker/orderattest/pkg/attest/canonical"
	"github.com/stonebraker/orderattest/pkg/attest/crypto"
	"github.com/stonebraker/orderattest/pkg/attest/crypto/cryptotest"
	"github.com/stonebraker/orderattest/pkg/attest/keys"
	"github.com/stonebraker/orderattest/pkg/attest/sign"
	"github.com/stonebraker/orderattest/pkg/attest/wire"
)

func testRecord() canonical.Order {
	return canonical.Order{
		UserID:          "u1",
		Cart:            []canonical.Item{{ProductID: "p1", Qty: 2, Price: 10, ShopID: "s1"}},
		TotalPrice:      20,
		ShippingAddress: canonical.Address{Address: "1 Main St", Province: "Hanoi", Country: "VN"},
		PaymentInfo:     canonical.Payment{Status: "succeeded", Type: "Direct"},
	}
}

func testRig(t *testing.T) (*Verifier, wire.Envelope, crypto.Provider) {
	t.Helper()
	provider := &cryptotest.FakeProvider{}
	keyring, err := keys.Load(t.TempDir(), provider)
	if err != nil {
		t.Fatalf("keys.Load: %v", err)
	}
	env, err := sign.New(keyring).SignOrder(testRecord())
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	return New(crypto.NewRegistry(provider), nil), env, provider
}

func TestVerifyOrder_RoundTrip(t *testing.T) {
	v, env, _ := testRig(t)
	ok, err := v.VerifyOrder(testRecord(), env.Signature, env.PublicKey, env.Algorithm)
	if err != nil {
		t.Fatalf("VerifyOrder: %v", err)
	}
	if !ok {
		t.Error("freshly signed record did not verify")
	}
}

func TestVerifyOrder_TamperDetection(t *testing.T) {
	v, env, provider := testRig(t)

	t.Run("signature byte flipped", func(t *testing.T) {
		sig := append([]byte(nil), env.Signature...)
		sig[10] ^= 0x01
		ok, err := v.VerifyOrder(testRecord(), sig, env.PublicKey, env.Algorithm)
		if err != nil {
			t.Fatalf("VerifyOrder: %v", err)
		}
		if ok {
			t.Error("tampered signature verified")
		}
	})

	t.Run("substituted public key", func(t *testing.T) {
		otherPub, _, err := provider.GenerateKeyPair()
		if err != nil {
			t.Fatal(err)
		}
		ok, err := v.VerifyOrder(testRecord(), env.Signature, otherPub, env.Algorithm)
		if err != nil {
			t.Fatalf("VerifyOrder: %v", err)
		}
		if ok {
			t.Error("signature verified under wrong public key")
		}
	})

	t.Run("mutated included field", func(t *testing.T) {
		rec := testRecord()
		rec.TotalPrice = 21
		ok, err := v.VerifyOrder(rec, env.Signature, env.PublicKey, env.Algorithm)
		if err != nil {
			t.Fatalf("VerifyOrder: %v", err)
		}
		if ok {
			t.Error("signature verified against mutated record")
		}
	})
}

func TestVerifyOrder_LengthEnforcement(t *testing.T) {
	v, env, _ := testRig(t)

	_, err := v.VerifyOrder(testRecord(), env.Signature[:len(env.Signature)-1], env.PublicKey, env.Algorithm)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("short signature: want ErrLengthMismatch, got %v", err)
	}

	longPub := append(append([]byte(nil), env.PublicKey...), 0x00)
	_, err = v.VerifyOrder(testRecord(), env.Signature, longPub, env.Algorithm)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("long public key: want ErrLengthMismatch, got %v", err)
	}
}

func TestVerifyOrder_UnknownAlgorithm(t *testing.T) {
	v, env, _ := testRig(t)
	_, err := v.VerifyOrder(testRecord(), env.Signature, env.PublicKey, "no-such-scheme")
	if !errors.Is(err, crypto.ErrUnknownAlgorithm) {
		t.Errorf("want ErrUnknownAlgorithm, got %v", err)
	}
}

// The envelope's recorded algorithm, not the active one, selects the
// verifying provider.
func TestVerifyOrder_UsesRecordedAlgorithm(t *testing.T) {
	fake := &cryptotest.FakeProvider{}
	keyring, err := keys.Load(t.TempDir(), fake)
	if err != nil {
		t.Fatal(err)
	}
	env, err := sign.New(keyring).SignOrder(testRecord())
	if err != nil {
		t.Fatal(err)
	}

	// Registry where the "active" production scheme differs from the one
	// that produced the envelope.
	v := New(crypto.NewRegistry(crypto.SchnorrProvider{}, fake), nil)
	ok, err := v.VerifyOrder(testRecord(), env.Signature, env.PublicKey, env.Algorithm)
	if err != nil {
		t.Fatalf("VerifyOrder: %v", err)
	}
	if !ok {
		t.Error("envelope did not verify under its recorded algorithm")
	}
}

func TestAudit(t *testing.T) {
	v, env, _ := testRig(t)
	order := wire.Order{
		User:            wire.UserRef{ID: "u1"},
		Cart:            []wire.CartItem{{ProductID: "p1", Qty: 2, Price: 10, ShopID: "s1"}},
		TotalPrice:      20,
		ShippingAddress: &wire.Address{Address: "1 Main St", Province: "Hanoi", Country: "VN"},
		PaymentInfo:     &wire.PaymentInfo{Status: "succeeded", Type: "Direct"},
	}

	res := v.Audit(order, env)
	if !res.Valid {
		t.Fatalf("audit of intact order failed: %s", res.Message)
	}

	t.Run("missing envelope", func(t *testing.T) {
		res := v.Audit(order, wire.Envelope{})
		if res.Valid || res.Message == "" {
			t.Errorf("empty envelope must be invalid with a message, got %+v", res)
		}
	})

	t.Run("length error folds into result", func(t *testing.T) {
		bad := env
		bad.Signature = bad.Signature[:5]
		res := v.Audit(order, bad)
		if res.Valid {
			t.Error("truncated signature audited as valid")
		}
	})

	t.Run("tampered stored order", func(t *testing.T) {
		mutated := order
		mutated.TotalPrice = 999
		res := v.Audit(mutated, env)
		if res.Valid {
			t.Error("tampered order audited as valid")
		}
	})

	// Lifecycle mutation after creation must not dispute the signature.
	t.Run("status change keeps signature valid", func(t *testing.T) {
		advanced := order
		advanced.Status = "Delivered"
		res := v.Audit(advanced, env)
		if !res.Valid {
			t.Errorf("status change invalidated signature: %s", res.Message)
		}
	})
}
