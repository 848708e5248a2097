// Package cryptotest provides a deterministic signature provider for
// tests. It is never registered by production composition code; only
// _test.go files import it.
package cryptotest

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/stonebraker/orderattest/pkg/attest/crypto"
)

const (
	pubKeyLen = 32
	secKeyLen = 64
	sigLen    = 96
)

// FakeProvider is a stand-in signature scheme with the same shape
// contract as a real provider: fixed lengths, deterministic verify. The
// secret key embeds the public key so Sign can bind signatures to it,
// and a signature is an HMAC of the digest under the public key plus
// padding to the declared length. This gives real tamper sensitivity
// (any byte change in digest, signature, or key flips the result)
// without any actual cryptographic strength.
type FakeProvider struct {
	// Seed varies generated keypairs; successive calls also differ.
	Seed    byte
	counter byte
}

var _ crypto.Provider = (*FakeProvider)(nil)

func (f *FakeProvider) Algorithm() string    { return "fake-hmac" }
func (f *FakeProvider) PublicKeyLength() int { return pubKeyLen }
func (f *FakeProvider) SecretKeyLength() int { return secKeyLen }
func (f *FakeProvider) SignatureLength() int { return sigLen }

func (f *FakeProvider) GenerateKeyPair() ([]byte, []byte, error) {
	f.counter++
	seed := sha256.Sum256([]byte{f.Seed, f.counter})
	pub := sha256.Sum256(append([]byte("pub"), seed[:]...))
	sec := make([]byte, 0, secKeyLen)
	sec = append(sec, pub[:]...)
	sec = append(sec, seed[:]...)
	return pub[:], sec, nil
}

func (f *FakeProvider) Sign(digest []byte, secretKey []byte) ([]byte, error) {
	if len(secretKey) != secKeyLen {
		return nil, fmt.Errorf("fake: secret key must be %d bytes, got %d", secKeyLen, len(secretKey))
	}
	pub := secretKey[:pubKeyLen]
	return fakeSig(digest, pub), nil
}

func (f *FakeProvider) Verify(digest []byte, signature []byte, publicKey []byte) (bool, error) {
	if len(publicKey) != pubKeyLen {
		return false, fmt.Errorf("fake: public key must be %d bytes, got %d", pubKeyLen, len(publicKey))
	}
	return bytes.Equal(signature, fakeSig(digest, publicKey)), nil
}

func fakeSig(digest, pub []byte) []byte {
	mac := hmac.New(sha256.New, pub)
	mac.Write(digest)
	sum := mac.Sum(nil)
	sig := make([]byte, sigLen)
	copy(sig, sum)
	copy(sig[len(sum):], sum)
	copy(sig[2*len(sum):], sum)
	return sig
}
