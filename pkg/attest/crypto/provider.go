package crypto

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownAlgorithm is returned by a Registry lookup for an algorithm
// identifier no registered provider declares.
var ErrUnknownAlgorithm = errors.New("crypto: unknown signature algorithm")

// Provider is a digital-signature primitive with fixed key and signature
// sizes. Implementations must be safe for concurrent use: Sign and
// Verify take all state as arguments.
type Provider interface {
	// Algorithm is the stable identifier recorded in every envelope this
	// provider signs. Verification selects a provider by this identifier,
	// never by whatever scheme is currently active.
	Algorithm() string

	PublicKeyLength() int
	SecretKeyLength() int
	SignatureLength() int

	// GenerateKeyPair returns a fresh (publicKey, secretKey) pair, each
	// exactly the declared length.
	GenerateKeyPair() (publicKey, secretKey []byte, err error)

	// Sign produces a signature over a DigestSize-byte digest.
	Sign(digest []byte, secretKey []byte) ([]byte, error)

	// Verify reports whether signature is valid for digest under
	// publicKey. Malformed inputs are errors; a well-formed signature
	// that simply does not match is (false, nil).
	Verify(digest []byte, signature []byte, publicKey []byte) (bool, error)
}

// Registry maps algorithm identifiers to providers. It is populated at
// composition time and read-only afterwards.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Algorithm()] = p
	}
	return r
}

// Register adds or replaces a provider under its declared algorithm id.
func (r *Registry) Register(p Provider) {
	r.providers[p.Algorithm()] = p
}

// Lookup resolves an algorithm identifier to its provider.
func (r *Registry) Lookup(algorithm string) (Provider, error) {
	p, ok := r.providers[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	return p, nil
}

// Algorithms lists the registered algorithm identifiers, sorted.
func (r *Registry) Algorithms() []string {
	out := make([]string, 0, len(r.providers))
	for alg := range r.providers {
		out = append(out, alg)
	}
	sort.Strings(out)
	return out
}
