package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stonebraker/orderattest/pkg/attest/crypto/cryptotest"
)

func TestLoad_GenerateThenLoadIdempotent(t *testing.T) {
	dir := t.TempDir()
	provider := &cryptotest.FakeProvider{}

	first, err := Load(dir, provider)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	for _, name := range []string{PublicKeyFile, SecretKeyFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s not persisted: %v", name, err)
		}
	}

	// Second load in a fresh keyring must return the same pair, not
	// regenerate.
	second, err := Load(dir, provider)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !bytes.Equal(first.PublicKey(), second.PublicKey()) {
		t.Error("public key changed across loads")
	}
	if !bytes.Equal(first.SecretKey(), second.SecretKey()) {
		t.Error("secret key changed across loads")
	}
}

func TestLoad_RegeneratesBothWhenOneHalfMissing(t *testing.T) {
	dir := t.TempDir()
	provider := &cryptotest.FakeProvider{}

	first, err := Load(dir, provider)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, SecretKeyFile)); err != nil {
		t.Fatal(err)
	}

	second, err := Load(dir, provider)
	if err != nil {
		t.Fatalf("Load after removing secret: %v", err)
	}
	// A pair is never half-regenerated: the stale public key must have
	// been replaced along with the secret.
	if bytes.Equal(first.PublicKey(), second.PublicKey()) {
		t.Error("public key was not regenerated with its pair")
	}
	pubOnDisk, err := os.ReadFile(filepath.Join(dir, PublicKeyFile))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pubOnDisk, second.PublicKey()) {
		t.Error("persisted public key does not match loaded pair")
	}
}

func TestLoad_RejectsWrongLengthBlobs(t *testing.T) {
	dir := t.TempDir()
	provider := &cryptotest.FakeProvider{}

	if err := os.WriteFile(filepath.Join(dir, PublicKeyFile), []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, SecretKeyFile), make([]byte, provider.SecretKeyLength()), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, provider); err == nil {
		t.Error("truncated public key blob should fail Load")
	}
}

func TestLoad_Accessors(t *testing.T) {
	dir := t.TempDir()
	provider := &cryptotest.FakeProvider{}
	k, err := Load(dir, provider)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k.Algorithm() != provider.Algorithm() {
		t.Errorf("Algorithm() = %q, want %q", k.Algorithm(), provider.Algorithm())
	}
	if len(k.PublicKey()) != provider.PublicKeyLength() {
		t.Errorf("public key length %d", len(k.PublicKey()))
	}
	if k.Provider() != provider {
		t.Error("Provider() did not return the injected provider")
	}
}

func TestAccessors_NilKeyring(t *testing.T) {
	var k *Keyring
	if k.Provider() != nil {
		t.Error("nil keyring should have no provider")
	}
	if k.Algorithm() != "" {
		t.Errorf("nil keyring Algorithm() = %q", k.Algorithm())
	}
	if k.PublicKey() != nil {
		t.Error("nil keyring should have no public key")
	}
	if k.SecretKey() != nil {
		t.Error("nil keyring should have no secret key")
	}
}
