package crypto

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// AlgorithmSchnorr identifies BIP-340 Schnorr over secp256k1. Kept as a
// registered scheme so envelopes produced under it remain verifiable;
// new signatures use the post-quantum scheme.
const AlgorithmSchnorr = "secp256k1-schnorr"

const (
	schnorrPubKeyLen = 32
	schnorrSecKeyLen = 32
	schnorrSigLen    = 64
)

// SchnorrProvider signs with BIP-340 Schnorr. Public keys use the
// 32-byte x-only serialization. The zero value is ready to use.
type SchnorrProvider struct{}

func (SchnorrProvider) Algorithm() string    { return AlgorithmSchnorr }
func (SchnorrProvider) PublicKeyLength() int { return schnorrPubKeyLen }
func (SchnorrProvider) SecretKeyLength() int { return schnorrSecKeyLen }
func (SchnorrProvider) SignatureLength() int { return schnorrSigLen }

func (SchnorrProvider) GenerateKeyPair() ([]byte, []byte, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, err
	}
	pub := schnorr.SerializePubKey(priv.PubKey())
	return pub, priv.Serialize(), nil
}

func (SchnorrProvider) Sign(digest []byte, secretKey []byte) ([]byte, error) {
	if len(secretKey) != schnorrSecKeyLen {
		return nil, fmt.Errorf("schnorr: secret key must be %d bytes, got %d", schnorrSecKeyLen, len(secretKey))
	}
	priv, _ := btcec.PrivKeyFromBytes(secretKey)
	sig, err := schnorr.Sign(priv, digest)
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

func (SchnorrProvider) Verify(digest []byte, signature []byte, publicKey []byte) (bool, error) {
	pub, err := schnorr.ParsePubKey(publicKey)
	if err != nil {
		return false, fmt.Errorf("schnorr: parse public key: %w", err)
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false, fmt.Errorf("schnorr: parse signature: %w", err)
	}
	return sig.Verify(digest, pub), nil
}
