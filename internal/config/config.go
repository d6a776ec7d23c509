package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix                 = "CINETRACK"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultStoreDriver        = StoreDriverSQLite
	defaultDatabasePath       = "cinetrack.db"
	defaultMongoDatabase      = "cinetrack"
	defaultLogLevel           = "info"
	defaultAuthIssuer         = "cinetrack-auth"
	defaultAuthAudience       = "cinetrack-api"
	defaultTokenTTLMinutes    = 60
	defaultCookieName         = "cinetrack_session"
	defaultCatalogBaseURL     = "https://api.themoviedb.org/3"
	defaultCatalogRequestRate = 20.0
	defaultPlacesBaseURL      = "https://maps.googleapis.com/maps/api/place"
	defaultBlobsRoot          = "media"
	defaultBlobsPublicBaseURL = "/media"
)

// Supported values of store.driver.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMongo  = "mongo"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress string
	LogLevel    string
	LogFile     string

	StoreDriver   string
	DatabasePath  string
	MongoURI      string
	MongoDatabase string

	AuthSigningSecret string
	AuthIssuer        string
	AuthAudience      string
	AuthCookieName    string
	TokenTTL          time.Duration

	CatalogBaseURL           string
	CatalogAPIKey            string
	CatalogRequestsPerSecond float64

	PlacesBaseURL string
	PlacesAPIKey  string

	BlobsRoot          string
	BlobsPublicBaseURL string

	AllowedOrigins []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{})
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("store.driver", defaultStoreDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("mongo.uri", "")
	configViper.SetDefault("mongo.database", defaultMongoDatabase)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.audience", defaultAuthAudience)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("catalog.base_url", defaultCatalogBaseURL)
	configViper.SetDefault("catalog.api_key", "")
	configViper.SetDefault("catalog.requests_per_second", defaultCatalogRequestRate)
	configViper.SetDefault("places.base_url", defaultPlacesBaseURL)
	configViper.SetDefault("places.api_key", "")
	configViper.SetDefault("blobs.root", defaultBlobsRoot)
	configViper.SetDefault("blobs.public_base_url", defaultBlobsPublicBaseURL)
}

// LoadEnvFile exports the variables of a dotenv file; a missing file is ignored unless required.
func LoadEnvFile(path string, required bool) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:              configViper.GetString("http.address"),
		LogLevel:                 configViper.GetString("log.level"),
		LogFile:                  configViper.GetString("log.file"),
		StoreDriver:              strings.ToLower(strings.TrimSpace(configViper.GetString("store.driver"))),
		DatabasePath:             configViper.GetString("database.path"),
		MongoURI:                 configViper.GetString("mongo.uri"),
		MongoDatabase:            configViper.GetString("mongo.database"),
		AuthSigningSecret:        configViper.GetString("auth.signing_secret"),
		AuthIssuer:               configViper.GetString("auth.issuer"),
		AuthAudience:             configViper.GetString("auth.audience"),
		AuthCookieName:           configViper.GetString("auth.cookie_name"),
		TokenTTL:                 time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		CatalogBaseURL:           configViper.GetString("catalog.base_url"),
		CatalogAPIKey:            configViper.GetString("catalog.api_key"),
		CatalogRequestsPerSecond: configViper.GetFloat64("catalog.requests_per_second"),
		PlacesBaseURL:            configViper.GetString("places.base_url"),
		PlacesAPIKey:             configViper.GetString("places.api_key"),
		BlobsRoot:                configViper.GetString("blobs.root"),
		BlobsPublicBaseURL:       configViper.GetString("blobs.public_base_url"),
		AllowedOrigins:           configViper.GetStringSlice("http.allowed_origins"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	switch c.StoreDriver {
	case StoreDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case StoreDriverMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return fmt.Errorf("mongo.uri is required when store.driver is mongo")
		}
		if strings.TrimSpace(c.MongoDatabase) == "" {
			return fmt.Errorf("mongo.database is required when store.driver is mongo")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", StoreDriverSQLite, StoreDriverMongo, c.StoreDriver)
	}
	if strings.TrimSpace(c.BlobsRoot) == "" {
		return fmt.Errorf("blobs.root is required")
	}
	return nil
}
