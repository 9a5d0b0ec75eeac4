package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSigningSecret = "0123456789abcdef0123"

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", testSigningSecret)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected allowed origins %v", cfg.AllowedOrigins)
	}
	if cfg.RequestTimeout != 10*time.Second || cfg.DatabaseBusyTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts %v %v", cfg.RequestTimeout, cfg.DatabaseBusyTimeout)
	}
	if cfg.DatabaseDriver != DriverSQLite || cfg.DatabasePath != defaultDatabasePath || cfg.DatabaseMaxOpenConns != 1 {
		t.Fatalf("unexpected database config %+v", cfg)
	}
	if cfg.CookieName != "app_session" || cfg.Issuer != "quire-auth" || cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("unexpected auth config %+v", cfg)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("QUIRE_AUTH_SIGNING_SECRET", testSigningSecret)
	t.Setenv("QUIRE_HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("QUIRE_DATABASE_DRIVER", "Postgres")
	t.Setenv("QUIRE_DATABASE_DSN", "postgres://quire@localhost/quire")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDriver != DriverPostgres || cfg.DatabaseDSN == "" {
		t.Fatalf("unexpected database config %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected allowed origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name     string
		settings map[string]any
		contains string
	}{
		{name: "missing secret", settings: map[string]any{}, contains: "auth.signing_secret is required"},
		{name: "short secret", settings: map[string]any{"auth.signing_secret": "short"}, contains: "at least"},
		{name: "unknown driver", settings: map[string]any{"auth.signing_secret": testSigningSecret, "database.driver": "mysql"}, contains: "not supported"},
		{name: "postgres without dsn", settings: map[string]any{"auth.signing_secret": testSigningSecret, "database.driver": "postgres"}, contains: "database.dsn"},
		{name: "zero pool", settings: map[string]any{"auth.signing_secret": testSigningSecret, "database.max_open_conns": 0}, contains: "max_open_conns"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.settings {
				configViper.Set(key, value)
			}
			_, err := Load(configViper)
			if err == nil || !strings.Contains(err.Error(), testCase.contains) {
				t.Fatalf("expected error containing %q, got %v", testCase.contains, err)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("QUIRE_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("QUIRE_LOG_LEVEL", "")
	os.Unsetenv("QUIRE_LOG_LEVEL")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load env file failed: %v", err)
	}
	if got := os.Getenv("QUIRE_LOG_LEVEL"); got != "debug" {
		t.Fatalf("expected env file value, got %q", got)
	}
}
