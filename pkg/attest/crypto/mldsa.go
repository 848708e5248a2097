package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign/eddilithium2"
)

// AlgorithmMLDSA identifies the hybrid Ed25519/Dilithium2 scheme. This is
// the active production algorithm; the post-quantum component is what the
// whole mechanism exists for.
const AlgorithmMLDSA = "Ed25519-Dilithium2"

// MLDSAProvider signs with the circl Ed25519-Dilithium2 hybrid. The
// zero value is ready to use.
type MLDSAProvider struct{}

func (MLDSAProvider) Algorithm() string    { return AlgorithmMLDSA }
func (MLDSAProvider) PublicKeyLength() int { return eddilithium2.PublicKeySize }
func (MLDSAProvider) SecretKeyLength() int { return eddilithium2.PrivateKeySize }
func (MLDSAProvider) SignatureLength() int { return eddilithium2.SignatureSize }

func (MLDSAProvider) GenerateKeyPair() ([]byte, []byte, error) {
	pub, priv, err := eddilithium2.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return pubBytes, privBytes, nil
}

func (MLDSAProvider) Sign(digest []byte, secretKey []byte) ([]byte, error) {
	if len(secretKey) != eddilithium2.PrivateKeySize {
		return nil, fmt.Errorf("mldsa: secret key must be %d bytes, got %d", eddilithium2.PrivateKeySize, len(secretKey))
	}
	priv := new(eddilithium2.PrivateKey)
	if err := priv.UnmarshalBinary(secretKey); err != nil {
		return nil, fmt.Errorf("mldsa: parse secret key: %w", err)
	}
	sig := make([]byte, eddilithium2.SignatureSize)
	eddilithium2.SignTo(priv, digest, sig)
	return sig, nil
}

func (MLDSAProvider) Verify(digest []byte, signature []byte, publicKey []byte) (bool, error) {
	if len(publicKey) != eddilithium2.PublicKeySize {
		return false, fmt.Errorf("mldsa: public key must be %d bytes, got %d", eddilithium2.PublicKeySize, len(publicKey))
	}
	pub := new(eddilithium2.PublicKey)
	if err := pub.UnmarshalBinary(publicKey); err != nil {
		return false, fmt.Errorf("mldsa: parse public key: %w", err)
	}
	return eddilithium2.Verify(pub, digest, signature), nil
}
