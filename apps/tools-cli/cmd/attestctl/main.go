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

package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stonebraker/orderattest/pkg/attest/canonical"
	"github.com/stonebraker/orderattest/pkg/attest/crypto"
	"github.com/stonebraker/orderattest/pkg/attest/keys"
	"github.com/stonebraker/orderattest/pkg/attest/sign"
	"github.com/stonebraker/orderattest/pkg/attest/verify"
	"github.com/stonebraker/orderattest/pkg/attest/wire"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "keygen":
		keygenCmd(os.Args[2:])
	case "sign":
		signCmd(os.Args[2:])
	case "verify":
		verifyCmd(os.Args[2:])
	case "inspect":
		inspectCmd(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	exe := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", exe)
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  keygen    Generate or load a signing keypair in a key directory\n")
	fmt.Fprintf(os.Stderr, "  sign      Sign an order JSON file and print its envelope\n")
	fmt.Fprintf(os.Stderr, "  verify    Verify an order JSON file against an envelope or attestation\n")
	fmt.Fprintf(os.Stderr, "  inspect   Print key and algorithm details for a key directory\n")
}

func newRegistry() *crypto.Registry {
	return crypto.NewRegistry(crypto.MLDSAProvider{}, crypto.SchnorrProvider{})
}

func lookupProvider(algorithm string) crypto.Provider {
	p, err := newRegistry().Lookup(algorithm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v (known: %v)\n", err, newRegistry().Algorithms())
		os.Exit(1)
	}
	return p
}

func keygenCmd(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	dir := fs.String("dir", "config/keys", "key directory")
	algorithm := fs.String("algorithm", crypto.AlgorithmMLDSA, "signature algorithm")
	_ = fs.Parse(args)

	keyring, err := keys.Load(*dir, lookupProvider(*algorithm))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("algorithm: %s\n", keyring.Algorithm())
	fmt.Printf("publicKey: %s\n", base64.StdEncoding.EncodeToString(keyring.PublicKey()))
}

func signCmd(args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	dir := fs.String("dir", "config/keys", "key directory")
	algorithm := fs.String("algorithm", crypto.AlgorithmMLDSA, "signature algorithm")
	orderPath := fs.String("order", "", "path to a raw order JSON file")
	_ = fs.Parse(args)

	if *orderPath == "" {
		fmt.Fprintln(os.Stderr, "sign: -order is required")
		os.Exit(2)
	}
	rec, err := loadCanonicalOrder(*orderPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	keyring, err := keys.Load(*dir, lookupProvider(*algorithm))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	env, err := sign.New(keyring).SignOrder(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	// Also emit the compact form the order API accepts in its
	// X-Order-Attestation header.
	encoded, err := wire.EncodeEnvelope(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: encode envelope: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("attestation: %s\n", encoded)
}

func verifyCmd(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	orderPath := fs.String("order", "", "path to a raw order JSON file")
	envPath := fs.String("envelope", "", "path to an envelope JSON file")
	attestation := fs.String("attestation", "", "compact envelope as printed by sign")
	_ = fs.Parse(args)

	if *orderPath == "" || (*envPath == "" && *attestation == "") {
		fmt.Fprintln(os.Stderr, "verify: -order and one of -envelope or -attestation are required")
		os.Exit(2)
	}
	rec, err := loadCanonicalOrder(*orderPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var env wire.Envelope
	if *attestation != "" {
		env, err = wire.DecodeEnvelope(*attestation)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: parse attestation: %v\n", err)
			os.Exit(1)
		}
	} else {
		envBytes, err := os.ReadFile(*envPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(envBytes, &env); err != nil {
			fmt.Fprintf(os.Stderr, "error: parse envelope: %v\n", err)
			os.Exit(1)
		}
	}

	v := verify.New(newRegistry(), nil)
	ok, err := v.VerifyOrder(rec, env.Signature, env.PublicKey, env.Algorithm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("signature: INVALID")
		os.Exit(1)
	}
	fmt.Println("signature: valid")
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dir := fs.String("dir", "config/keys", "key directory")
	algorithm := fs.String("algorithm", crypto.AlgorithmMLDSA, "signature algorithm")
	_ = fs.Parse(args)

	p := lookupProvider(*algorithm)
	fmt.Printf("algorithm:        %s\n", p.Algorithm())
	fmt.Printf("publicKeyLength:  %d\n", p.PublicKeyLength())
	fmt.Printf("secretKeyLength:  %d\n", p.SecretKeyLength())
	fmt.Printf("signatureLength:  %d\n", p.SignatureLength())

	pubPath := filepath.Join(*dir, keys.PublicKeyFile)
	if pub, err := os.ReadFile(pubPath); err == nil {
		fmt.Printf("publicKey:        %s\n", base64.StdEncoding.EncodeToString(pub))
	} else {
		fmt.Printf("publicKey:        (no key files in %s)\n", *dir)
	}
}

func loadCanonicalOrder(path string) (canonical.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return canonical.Order{}, err
	}
	var raw wire.Order
	if err := json.Unmarshal(data, &raw); err != nil {
		return canonical.Order{}, fmt.Errorf("parse order: %w", err)
	}
	return raw.ToCanonical()
}
