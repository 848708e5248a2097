// Package keys owns the server signing keypair lifecycle: load the pair
// from durable storage on boot, or generate and persist a fresh pair,
// then hold it immutable for the life of the process.
package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stonebraker/orderattest/pkg/attest/crypto"
)

// Key blob filenames under the configured key directory.
const (
	PublicKeyFile = "order_signing_public.bin"
	SecretKeyFile = "order_signing_secret.bin"
)

// ErrNotInitialized is returned by services handed a nil Keyring.
var ErrNotInitialized = errors.New("keys: signing keyring not initialized")

// Keyring is the loaded signing keypair plus the provider that produced
// it. It is immutable after Load, so concurrent readers need no locking.
type Keyring struct {
	provider  crypto.Provider
	publicKey []byte
	secretKey []byte
}

// Load returns a Keyring for dir. If both key files exist they are
// loaded verbatim and length-checked against the provider's declared
// sizes; if either is missing a fresh pair is generated and both files
// are written. A pair is never half-regenerated: generation always
// replaces both files together.
//
// Any error here means the process has no valid signing key and the
// caller must treat it as fatal. A server that cannot sign orders must
// not accept order-affecting requests.
func Load(dir string, provider crypto.Provider) (*Keyring, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keys: create key dir: %w", err)
	}

	pubPath := filepath.Join(dir, PublicKeyFile)
	secPath := filepath.Join(dir, SecretKeyFile)

	pubExists := fileExists(pubPath)
	secExists := fileExists(secPath)

	if pubExists && secExists {
		pub, err := os.ReadFile(pubPath)
		if err != nil {
			return nil, fmt.Errorf("keys: read public key: %w", err)
		}
		sec, err := os.ReadFile(secPath)
		if err != nil {
			return nil, fmt.Errorf("keys: read secret key: %w", err)
		}
		if len(pub) != provider.PublicKeyLength() {
			return nil, fmt.Errorf("keys: public key is %d bytes, %s expects %d", len(pub), provider.Algorithm(), provider.PublicKeyLength())
		}
		if len(sec) != provider.SecretKeyLength() {
			return nil, fmt.Errorf("keys: secret key is %d bytes, %s expects %d", len(sec), provider.Algorithm(), provider.SecretKeyLength())
		}
		return &Keyring{provider: provider, publicKey: pub, secretKey: sec}, nil
	}

	pub, sec, err := provider.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("keys: generate keypair: %w", err)
	}
	if err := writeAtomic(pubPath, pub, 0o644); err != nil {
		return nil, fmt.Errorf("keys: write public key: %w", err)
	}
	if err := writeAtomic(secPath, sec, 0o600); err != nil {
		return nil, fmt.Errorf("keys: write secret key: %w", err)
	}
	return &Keyring{provider: provider, publicKey: pub, secretKey: sec}, nil
}

// Provider returns the signature scheme this keyring was loaded for.
// A nil keyring has no scheme and reports nil rather than panicking.
func (k *Keyring) Provider() crypto.Provider {
	if k == nil {
		return nil
	}
	return k.provider
}

// Algorithm returns the active algorithm identifier, or "" before the
// keyring has been initialized.
func (k *Keyring) Algorithm() string {
	if k == nil || k.provider == nil {
		return ""
	}
	return k.provider.Algorithm()
}

// PublicKey returns the loaded public key bytes, or nil before the
// keyring has been initialized. Callers must not mutate the returned
// slice.
func (k *Keyring) PublicKey() []byte {
	if k == nil {
		return nil
	}
	return k.publicKey
}

// SecretKey returns the loaded secret key bytes for signing, or nil
// before the keyring has been initialized. Callers must not mutate the
// returned slice.
func (k *Keyring) SecretKey() []byte {
	if k == nil {
		return nil
	}
	return k.secretKey
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
