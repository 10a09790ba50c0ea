// Package config handles loading and validation of service configuration.
// Supports both development (env vars, .env, config file) and production
// (Secret Manager) modes.
package config

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a setting is absent.
const (
	DefaultPort            = "8080"
	DefaultDatabaseURL     = "file:pixelflow.db"
	DefaultSecretID        = "pixelflow-proxy"
	DefaultMaxRewriteBytes = 8 << 20
	DefaultSettingsRefresh = 30 * time.Second
	DefaultUpstreamTimeout = 30 * time.Second
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"` // "development" or "production"
	LogLevel    string `json:"log_level" yaml:"log_level"`     // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string `json:"gcp_project" yaml:"gcp_project"`
	SecretID   string `json:"secret_id" yaml:"secret_id"`

	// Origin WordPress site. SiteID keys the option records and defaults
	// to a hash of the store URL.
	StoreURL string `json:"store_url" yaml:"store_url"`
	SiteID   string `json:"site_id" yaml:"site_id"`

	// Persistence
	DatabaseURL     string        `json:"database_url" yaml:"database_url"`
	RedisURL        string        `json:"redis_url" yaml:"redis_url"`
	SettingsRefresh time.Duration `json:"-" yaml:"-"`

	// Proxy behaviour
	MaxRewriteBytes int64         `json:"max_rewrite_bytes" yaml:"max_rewrite_bytes"`
	UpstreamTLS     string        `json:"upstream_tls" yaml:"upstream_tls"` // "chrome" or "standard"
	UpstreamTimeout time.Duration `json:"-" yaml:"-"`

	// Purchase event overrides: "true", "false" or empty for no override.
	PurchaseTrackingOverride string `json:"purchase_tracking_override" yaml:"purchase_tracking_override"`
	PurchaseDebugOverride    string `json:"purchase_debug_override" yaml:"purchase_debug_override"`

	// Credentials (loaded from secrets in production)
	Secrets Secrets `json:"secrets" yaml:"secrets"`
}

// Secrets contains credentials. In production, this is loaded from Secret
// Manager as JSON. In development, from env vars or CONFIG_FILE.
type Secrets struct {
	WooAPIKey    string `json:"woo_api_key" yaml:"woo_api_key"`
	WooAPISecret string `json:"woo_api_secret" yaml:"woo_api_secret"`
	AdminKeyHash string `json:"admin_key_hash" yaml:"admin_key_hash"` // bcrypt
	NonceSecret  string `json:"nonce_secret" yaml:"nonce_secret"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Outside production a .env file (ENV_FILE) is loaded first when present.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	if os.Getenv("ENVIRONMENT") != "production" {
		if err := loadDotEnv(envOrDefault("ENV_FILE", ".env")); err != nil {
			return nil, err
		}
	}

	// If CONFIG_FILE is set, load everything from the file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg, err := loadFromEnv()
	if err != nil {
		return nil, err
	}

	// Load secrets based on environment
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading secrets: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads a .env file without overriding variables already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// loadFromFile reads all configuration from a JSON or YAML file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Durations are written as strings ("30s") in the file and decoded
	// separately from the embedded Config.
	var fileConfig struct {
		Config          `yaml:",inline"`
		SettingsRefresh string `json:"settings_refresh" yaml:"settings_refresh"`
		UpstreamTimeout string `json:"upstream_timeout" yaml:"upstream_timeout"`
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fileConfig)
	default:
		err = json.Unmarshal(data, &fileConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := fileConfig.Config
	if cfg.SettingsRefresh, err = parseDuration("settings_refresh", fileConfig.SettingsRefresh); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = parseDuration("upstream_timeout", fileConfig.UpstreamTimeout); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFromEnv reads configuration from individual environment variables.
func loadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:                     os.Getenv("PORT"),
		Environment:              os.Getenv("ENVIRONMENT"),
		LogLevel:                 os.Getenv("LOG_LEVEL"),
		GCPProject:               os.Getenv("GCP_PROJECT"),
		SecretID:                 os.Getenv("SECRET_ID"),
		StoreURL:                 os.Getenv("STORE_URL"),
		SiteID:                   os.Getenv("SITE_ID"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		UpstreamTLS:              os.Getenv("UPSTREAM_TLS"),
		PurchaseTrackingOverride: os.Getenv("PURCHASE_TRACKING_OVERRIDE"),
		PurchaseDebugOverride:    os.Getenv("PURCHASE_DEBUG_OVERRIDE"),
		Secrets: Secrets{
			WooAPIKey:    os.Getenv("WOO_API_KEY"),
			WooAPISecret: os.Getenv("WOO_API_SECRET"),
			AdminKeyHash: os.Getenv("ADMIN_KEY_HASH"),
			NonceSecret:  os.Getenv("NONCE_SECRET"),
		},
	}

	var err error
	if cfg.SettingsRefresh, err = parseDuration("SETTINGS_REFRESH", os.Getenv("SETTINGS_REFRESH")); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = parseDuration("UPSTREAM_TIMEOUT", os.Getenv("UPSTREAM_TIMEOUT")); err != nil {
		return nil, err
	}
	if raw := os.Getenv("MAX_REWRITE_BYTES"); raw != "" {
		if cfg.MaxRewriteBytes, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("parsing MAX_REWRITE_BYTES: %w", err)
		}
	}
	return cfg, nil
}

// parseDuration parses an optional duration setting.
func parseDuration(name, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return d, nil
}

// loadFromSecretManager fetches credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
// Only fields present in the secret replace the env values.
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, withDefault(c.SecretID, DefaultSecretID))

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Secrets); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	c.Port = withDefault(c.Port, DefaultPort)
	c.Environment = withDefault(c.Environment, "development")
	c.LogLevel = withDefault(c.LogLevel, "info")
	c.DatabaseURL = withDefault(c.DatabaseURL, DefaultDatabaseURL)
	c.UpstreamTLS = withDefault(c.UpstreamTLS, "chrome")
	c.StoreURL = strings.TrimSuffix(c.StoreURL, "/")
	if c.SiteID == "" && c.StoreURL != "" {
		c.SiteID = DefaultSiteID(c.StoreURL)
	}
	if c.SettingsRefresh <= 0 {
		c.SettingsRefresh = DefaultSettingsRefresh
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if c.MaxRewriteBytes <= 0 {
		c.MaxRewriteBytes = DefaultMaxRewriteBytes
	}
}

// DefaultSiteID derives the site id from the store's home URL.
func DefaultSiteID(storeURL string) string {
	sum := md5.Sum([]byte(strings.TrimSuffix(storeURL, "/")))
	return "wp_" + hex.EncodeToString(sum[:])
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.StoreURL == "" {
		return fmt.Errorf("store_url is required")
	}
	u, err := url.Parse(c.StoreURL)
	if err != nil {
		return fmt.Errorf("invalid store_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid store_url: %q is not an absolute http(s) URL", c.StoreURL)
	}

	switch c.UpstreamTLS {
	case "chrome", "standard":
	default:
		return fmt.Errorf("upstream_tls must be chrome or standard, got %q", c.UpstreamTLS)
	}

	if c.Environment == "production" && c.Secrets.NonceSecret == "" {
		return fmt.Errorf("nonce_secret is required in production")
	}
	return nil
}

// StoreDomain returns the host of the store URL.
func (c *Config) StoreDomain() string {
	return extractDomain(c.StoreURL)
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// extractDomain parses the domain from a URL string.
func extractDomain(storeURL string) string {
	u, err := url.Parse(storeURL)
	if err != nil {
		// Fallback: strip protocol prefix manually
		domain := strings.TrimPrefix(storeURL, "https://")
		domain = strings.TrimPrefix(domain, "http://")
		return strings.Split(domain, "/")[0]
	}
	return u.Host
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
