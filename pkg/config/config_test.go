package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PARCELAS_STORE", "PARCELAS_HTTP_ADDR", "PARCELAS_RATE_LIMIT",
		"PARCELAS_STORE_RETRIES", "SQLITE_PATH", "POSTGRES_PORT", "POSTGRES_SSLMODE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("Store = %q, want %q", cfg.Store, StoreSQLite)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.TokenTTL != DefaultTokenTTL {
		t.Errorf("TokenTTL = %s", cfg.TokenTTL)
	}
	if cfg.StoreRetries != DefaultStoreRetries || cfg.StoreRetryDelay != DefaultStoreRetryDelay {
		t.Errorf("retries = %d/%s", cfg.StoreRetries, cfg.StoreRetryDelay)
	}
	if cfg.SQLitePath != DefaultSQLitePath {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.Postgres.Port != 5432 || cfg.Postgres.SSLMode != "disable" {
		t.Errorf("postgres defaults = %+v", cfg.Postgres)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PARCELAS_STORE", "Postgres")
	t.Setenv("PARCELAS_TOKEN_TTL", "2h")
	t.Setenv("PARCELAS_RATE_LIMIT", "30")
	t.Setenv("PARCELAS_SHRINK_ON_EDIT", "true")
	t.Setenv("PARCELAS_STORE_RETRY_DELAY", "50ms")
	t.Setenv("PARCELAS_ALLOWED_ORIGINS", "http://localhost:5173, https://parcelas.example ,")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_DB", "parcelas")
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("GSHEETS_NAME", "Parcelas")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StorePostgres {
		t.Errorf("Store = %q", cfg.Store)
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Errorf("TokenTTL = %s", cfg.TokenTTL)
	}
	if cfg.RateLimit != 30 || !cfg.ShrinkOnEdit || cfg.StoreRetryDelay != 50*time.Millisecond {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Postgres.Host != "db" || cfg.Postgres.Port != 6543 || cfg.Postgres.Database != "parcelas" {
		t.Errorf("postgres = %+v", cfg.Postgres)
	}
	if cfg.Sheets.Name != "Parcelas" {
		t.Errorf("sheets = %+v", cfg.Sheets)
	}

	origins := cfg.Origins()
	if len(origins) != 2 || origins[1] != "https://parcelas.example" {
		t.Errorf("Origins() = %q", origins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr []string
	}{
		{
			name: "sqlite ok",
			cfg:  Config{Store: StoreSQLite, SQLitePath: "x.db"},
		},
		{
			name: "memory ok",
			cfg:  Config{Store: StoreMemory},
		},
		{
			name:    "unknown store",
			cfg:     Config{Store: "mongo"},
			wantErr: []string{`"mongo"`},
		},
		{
			name:    "postgres missing everything",
			cfg:     Config{Store: StorePostgres, RateLimit: -1},
			wantErr: []string{"POSTGRES_DB", "POSTGRES_USER", "PARCELAS_RATE_LIMIT"},
		},
		{
			name: "postgres url",
			cfg:  Config{Store: StorePostgres, Postgres: PostgresConfig{URL: "postgres://x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestValidateServe(t *testing.T) {
	cfg := Config{Store: StoreMemory}
	if err := cfg.ValidateServe(); err == nil || !strings.Contains(err.Error(), "PARCELAS_JWT_SECRET") {
		t.Errorf("ValidateServe without secret = %v", err)
	}
	cfg.JWTSecret = "short"
	if err := cfg.ValidateServe(); err == nil {
		t.Error("short secret accepted")
	}
	cfg.JWTSecret = "0123456789abcdef"
	if err := cfg.ValidateServe(); err != nil {
		t.Errorf("ValidateServe: %v", err)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parcelas.json")
	body := `{"PARCELAS_STORE": "memory", "PARCELAS_RATE_LIMIT": 10, "GSHEETS_TITLE": "Parcelas 2025"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(FileEnv, path)
	t.Setenv("PARCELAS_RATE_LIMIT", "99")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("Store = %q, want value from file", cfg.Store)
	}
	if cfg.RateLimit != 99 {
		t.Errorf("RateLimit = %d, env should override the file", cfg.RateLimit)
	}
	if cfg.Sheets.Title != "Parcelas 2025" {
		t.Errorf("Sheets.Title = %q", cfg.Sheets.Title)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.json"))
	if _, err := Load(); err == nil {
		t.Error("missing config file accepted")
	}
}
