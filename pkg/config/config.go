// Package config loads parcelas settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Defaults applied by Load for unset variables.
const (
	DefaultStore           = StoreSQLite
	DefaultHTTPAddr        = ":8080"
	DefaultTokenTTL        = 24 * time.Hour
	DefaultRateLimit       = 120
	DefaultStoreRetries    = 3
	DefaultStoreRetryDelay = 500 * time.Millisecond
	DefaultSQLitePath      = "data/parcelas.db"
	DefaultSecretFile      = "data/client_secret.json"
	DefaultTokenFile       = "data/token.json"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// Store selects the record store backend: postgres, sqlite or memory.
	// Environment variable: PARCELAS_STORE
	Store string `koanf:"PARCELAS_STORE"`

	// HTTPAddr is the listen address of the API server.
	// Environment variable: PARCELAS_HTTP_ADDR
	HTTPAddr string `koanf:"PARCELAS_HTTP_ADDR"`

	// JWTSecret signs session tokens. Required to serve the API.
	// Environment variable: PARCELAS_JWT_SECRET
	JWTSecret string `koanf:"PARCELAS_JWT_SECRET"`

	// TokenTTL is how long a session token stays valid.
	// Environment variable: PARCELAS_TOKEN_TTL
	TokenTTL time.Duration `koanf:"PARCELAS_TOKEN_TTL"`

	// AllowedOrigins is a comma separated list of CORS origins.
	// Environment variable: PARCELAS_ALLOWED_ORIGINS
	AllowedOrigins string `koanf:"PARCELAS_ALLOWED_ORIGINS"`

	// RateLimit is the number of requests per minute allowed per client IP.
	// Environment variable: PARCELAS_RATE_LIMIT
	RateLimit int `koanf:"PARCELAS_RATE_LIMIT"`

	// ShrinkOnEdit deletes trailing installments when an edit lowers the count.
	// Environment variable: PARCELAS_SHRINK_ON_EDIT
	ShrinkOnEdit bool `koanf:"PARCELAS_SHRINK_ON_EDIT"`

	// StoreRetries is the number of tries per store call.
	// Environment variable: PARCELAS_STORE_RETRIES
	StoreRetries uint `koanf:"PARCELAS_STORE_RETRIES"`

	// StoreRetryDelay is the base delay between store retries.
	// Environment variable: PARCELAS_STORE_RETRY_DELAY
	StoreRetryDelay time.Duration `koanf:"PARCELAS_STORE_RETRY_DELAY"`

	// SQLitePath is the database file of the sqlite store.
	// Environment variable: SQLITE_PATH
	SQLitePath string `koanf:"SQLITE_PATH"`

	Postgres PostgresConfig `koanf:",squash"`
	Sheets   SheetsConfig   `koanf:",squash"`

	// ClientSecretFile is the Google OAuth client credentials file.
	// Environment variable: GOOGLE_CLIENT_SECRET_FILE
	ClientSecretFile string `koanf:"GOOGLE_CLIENT_SECRET_FILE"`

	// TokenFile caches the Google OAuth token.
	// Environment variable: GOOGLE_TOKEN_FILE
	TokenFile string `koanf:"GOOGLE_TOKEN_FILE"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
	// URL overrides the fields above when set.
	URL string `koanf:"DATABASE_URL"`
}

// SheetsConfig selects the spreadsheet the Sheets exporter writes to.
type SheetsConfig struct {
	// Title is used when a new spreadsheet has to be created.
	Title string `koanf:"GSHEETS_TITLE"`
	// ID is an existing spreadsheet to write to.
	ID string `koanf:"GSHEETS_ID"`
	// Name is the tab within the spreadsheet.
	Name string `koanf:"GSHEETS_NAME"`
}

// FileEnv names an optional JSON file holding the same keys as the
// environment. Environment variables override the file.
const FileEnv = "PARCELAS_CONFIG_FILE"

// Load reads the configuration from the optional JSON file and the
// environment, and fills in defaults for anything unset.
func Load() (Config, error) {
	k := koanf.New(".")
	if path := os.Getenv(FileEnv); path != "" {
		if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = DefaultStore
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.StoreRetries == 0 {
		c.StoreRetries = DefaultStoreRetries
	}
	if c.StoreRetryDelay == 0 {
		c.StoreRetryDelay = DefaultStoreRetryDelay
	}
	if c.SQLitePath == "" {
		c.SQLitePath = DefaultSQLitePath
	}
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.ClientSecretFile == "" {
		c.ClientSecretFile = DefaultSecretFile
	}
	if c.TokenFile == "" {
		c.TokenFile = DefaultTokenFile
	}
}

// Origins splits AllowedOrigins into its entries.
func (c Config) Origins() []string {
	var origins []string
	for o := range strings.SplitSeq(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate reports every problem with the store settings at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.Postgres.URL == "" {
			if c.Postgres.Database == "" {
				errs = append(errs, errors.New("POSTGRES_DB is required for the postgres store"))
			}
			if c.Postgres.User == "" {
				errs = append(errs, errors.New("POSTGRES_USER is required for the postgres store"))
			}
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH must not be empty"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("PARCELAS_STORE %q is not one of postgres, sqlite, memory", c.Store))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("PARCELAS_RATE_LIMIT must not be negative, got %d", c.RateLimit))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("PARCELAS_TOKEN_TTL must be positive, got %s", c.TokenTTL))
	}
	return errors.Join(errs...)
}

// ValidateServe additionally checks what the API server needs.
func (c Config) ValidateServe() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("PARCELAS_JWT_SECRET is required to serve the API"))
	} else if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("PARCELAS_JWT_SECRET must be at least 16 characters"))
	}
	return errors.Join(errs...)
}
