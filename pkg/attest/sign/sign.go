// Package sign produces signature envelopes over canonical order
// records using the server's loaded keyring.
package sign

import (
	"fmt"

	"github.com/stonebraker/orderattest/pkg/attest/canonical"
	"github.com/stonebraker/orderattest/pkg/attest/crypto"
	"github.com/stonebraker/orderattest/pkg/attest/keys"
	"github.com/stonebraker/orderattest/pkg/attest/wire"
)

// Signer signs canonical order records with one keyring. The keyring is
// injected, not a package global, so tests can run with independent
// keypairs in one process.
type Signer struct {
	keyring *keys.Keyring
}

func New(keyring *keys.Keyring) *Signer {
	return &Signer{keyring: keyring}
}

// SignOrder serializes and digests rec, signs the digest, and returns a
// complete envelope marked verified (self-signed by the trusted server
// key).
//
// An uninitialized keyring is a server misconfiguration: the error wraps
// keys.ErrNotInitialized and is not retryable without operator action.
// A provider returning a signature of the wrong length is a provider
// defect and is surfaced, never stored.
func (s *Signer) SignOrder(rec canonical.Order) (wire.Envelope, error) {
	if s == nil || s.keyring == nil {
		return wire.Envelope{}, fmt.Errorf("sign: signing key unavailable: %w", keys.ErrNotInitialized)
	}

	data, err := canonical.Marshal(rec)
	if err != nil {
		return wire.Envelope{}, fmt.Errorf("sign: marshal canonical record: %w", err)
	}
	digest := crypto.Digest(data)

	provider := s.keyring.Provider()
	sig, err := provider.Sign(digest[:], s.keyring.SecretKey())
	if err != nil {
		return wire.Envelope{}, fmt.Errorf("sign: %s: %w", provider.Algorithm(), err)
	}
	if len(sig) != provider.SignatureLength() {
		return wire.Envelope{}, fmt.Errorf("sign: provider %s returned %d-byte signature, declared %d", provider.Algorithm(), len(sig), provider.SignatureLength())
	}

	return wire.Envelope{
		Signature: sig,
		PublicKey: s.keyring.PublicKey(),
		Algorithm: provider.Algorithm(),
		Verified:  true,
	}, nil
}
