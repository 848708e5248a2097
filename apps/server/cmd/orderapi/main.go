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
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/stonebraker/orderattest/apps/server/internal/config"
	"github.com/stonebraker/orderattest/apps/server/internal/httpx"
	"github.com/stonebraker/orderattest/apps/server/internal/store"
	"github.com/stonebraker/orderattest/pkg/attest/crypto"
	"github.com/stonebraker/orderattest/pkg/attest/keys"
	"github.com/stonebraker/orderattest/pkg/attest/sign"
	"github.com/stonebraker/orderattest/pkg/attest/verify"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	registry := crypto.NewRegistry(crypto.MLDSAProvider{}, crypto.SchnorrProvider{})
	provider, err := registry.Lookup(cfg.Algorithm)
	if err != nil {
		log.Fatal("unknown signing algorithm", zap.String("algorithm", cfg.Algorithm), zap.Error(err))
	}

	// The keyring must be ready before the listener starts: a server
	// that cannot sign orders must not accept order-affecting requests.
	keyring, err := keys.Load(cfg.KeyDir, provider)
	if err != nil {
		log.Fatal("load signing keypair", zap.String("dir", cfg.KeyDir), zap.Error(err))
	}
	log.Info("signing keypair ready",
		zap.String("algorithm", keyring.Algorithm()),
		zap.Int("publicKeyBytes", provider.PublicKeyLength()),
		zap.Int("signatureBytes", provider.SignatureLength()))

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		log.Fatal("open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	st, err := store.New(db)
	if err != nil {
		log.Fatal("migrate database", zap.Error(err))
	}

	handler := httpx.NewOrderHandler(st, sign.New(keyring), verify.New(registry, log), keyring, log)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/v2/order", handler.Routes())

	log.Info("orderapi listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"service":   "orderapi",
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}
