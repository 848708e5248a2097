package config

import (
	"os"

	"github.com/stonebraker/orderattest/pkg/attest/crypto"
)

type Config struct {
	Addr      string
	KeyDir    string
	DBPath    string
	Algorithm string
}

func Load() Config {
	return Config{
		Addr:      getenv("ORDERATTEST_ADDR", ":8082"),
		KeyDir:    getenv("ORDERATTEST_KEY_DIR", "config/keys"),
		DBPath:    getenv("ORDERATTEST_DB_PATH", "orders.db"),
		Algorithm: getenv("ORDERATTEST_ALGORITHM", crypto.AlgorithmMLDSA),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
