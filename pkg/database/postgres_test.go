package database

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	if cfg.Database != "payment_core" {
		t.Errorf("Database = %q, want payment_core", cfg.Database)
	}
	if cfg.Password != "" {
		t.Error("default config must not carry a password")
	}
	if cfg.MaxConns != 25 || cfg.MinConns != 5 {
		t.Errorf("pool bounds = %d/%d, want 25/5", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", cfg.ConnectTimeout)
	}
}

func TestDSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "payment",
		Password: "s3cret",
		Database: "payment_core",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	for _, part := range []string{
		"host=db.internal", "port=5433", "user=payment",
		"password=s3cret", "dbname=payment_core", "sslmode=require",
	} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN missing %q: %s", part, dsn)
		}
	}
}
