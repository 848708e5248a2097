// Package verify checks signature envelopes against canonical order
// records. Length mismatches and unknown algorithms are errors, distinct
// from a well-formed signature that simply does not match.
package verify

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stonebraker/orderattest/pkg/attest/canonical"
	"github.com/stonebraker/orderattest/pkg/attest/crypto"
	"github.com/stonebraker/orderattest/pkg/attest/wire"
)

// ErrLengthMismatch marks a signature or public key whose length does
// not match the algorithm's declared size. That is corrupted or
// malicious input, not an invalid-but-well-formed signature.
var ErrLengthMismatch = errors.New("verify: length mismatch")

// Verifier resolves providers from a registry by the algorithm recorded
// in each envelope, so signatures stay verifiable after the server's
// active algorithm changes.
type Verifier struct {
	registry *crypto.Registry
	log      *zap.Logger
}

func New(registry *crypto.Registry, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{registry: registry, log: log}
}

// VerifyOrder re-derives the canonical digest for rec and checks
// signature/publicKey against it under the named algorithm. It returns
// false only for a correctly-shaped signature that fails verification;
// structural problems (unknown algorithm, wrong lengths) are errors.
func (v *Verifier) VerifyOrder(rec canonical.Order, signature, publicKey []byte, algorithm string) (bool, error) {
	provider, err := v.registry.Lookup(algorithm)
	if err != nil {
		return false, err
	}
	if len(signature) != provider.SignatureLength() {
		return false, fmt.Errorf("%w: signature is %d bytes, %s expects %d", ErrLengthMismatch, len(signature), algorithm, provider.SignatureLength())
	}
	if len(publicKey) != provider.PublicKeyLength() {
		return false, fmt.Errorf("%w: public key is %d bytes, %s expects %d", ErrLengthMismatch, len(publicKey), algorithm, provider.PublicKeyLength())
	}

	data, err := canonical.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("verify: marshal canonical record: %w", err)
	}
	digest := crypto.Digest(data)
	return provider.Verify(digest[:], signature, publicKey)
}

// Result is the advisory verification outcome attached to order reads.
type Result struct {
	Valid   bool   `json:"isSignatureValid"`
	Message string `json:"verificationMessage"`
}

// Audit is the read-path check for an already-persisted order. It never
// fails the read: structural problems collapse into an invalid Result
// with a human-readable message, and a false here means data corruption
// or tampering to investigate, not a request to reject.
func (v *Verifier) Audit(order wire.Order, env wire.Envelope) Result {
	if env.Empty() {
		return Result{Valid: false, Message: "order does not carry signature information"}
	}
	rec, err := order.ToCanonical()
	if err != nil {
		v.log.Warn("audit: order not canonicalizable", zap.Error(err))
		return Result{Valid: false, Message: fmt.Sprintf("verification error: %v", err)}
	}
	ok, err := v.VerifyOrder(rec, env.Signature, env.PublicKey, env.Algorithm)
	if err != nil {
		v.log.Warn("audit: verification error", zap.String("algorithm", env.Algorithm), zap.Error(err))
		return Result{Valid: false, Message: fmt.Sprintf("verification error: %v", err)}
	}
	if !ok {
		return Result{Valid: false, Message: "order signature is invalid"}
	}
	return Result{Valid: true, Message: "order signature is valid"}
}
