package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envVars = []string{
	"PORT", "ENVIRONMENT", "LOG_LEVEL", "GCP_PROJECT", "SECRET_ID",
	"STORE_URL", "SITE_ID", "DATABASE_URL", "REDIS_URL",
	"SETTINGS_REFRESH", "MAX_REWRITE_BYTES", "UPSTREAM_TLS", "UPSTREAM_TIMEOUT",
	"PURCHASE_TRACKING_OVERRIDE", "PURCHASE_DEBUG_OVERRIDE",
	"WOO_API_KEY", "WOO_API_SECRET", "ADMIN_KEY_HASH", "NONCE_SECRET",
	"CONFIG_FILE",
}

// clearEnv blanks every variable Load reads and points ENV_FILE at a path
// that does not exist. t.Setenv restores the previous values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("STORE_URL", "https://shop.example.com/")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WOO_API_KEY", "ck_test123")
	t.Setenv("WOO_API_SECRET", "cs_test456")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SETTINGS_REFRESH", "5s")
	t.Setenv("MAX_REWRITE_BYTES", "1024")
	t.Setenv("UPSTREAM_TLS", "standard")
	t.Setenv("PURCHASE_DEBUG_OVERRIDE", "true")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.StoreURL != "https://shop.example.com" {
		t.Errorf("StoreURL = %s, want trailing slash trimmed", cfg.StoreURL)
	}
	if cfg.StoreDomain() != "shop.example.com" {
		t.Errorf("StoreDomain() = %s, want shop.example.com", cfg.StoreDomain())
	}
	if cfg.SiteID != DefaultSiteID("https://shop.example.com") {
		t.Errorf("SiteID = %s, want derived from store URL", cfg.SiteID)
	}
	if cfg.Secrets.WooAPIKey != "ck_test123" || cfg.Secrets.WooAPISecret != "cs_test456" {
		t.Errorf("Secrets = %+v, want woo credentials", cfg.Secrets)
	}
	if cfg.SettingsRefresh != 5*time.Second {
		t.Errorf("SettingsRefresh = %v, want 5s", cfg.SettingsRefresh)
	}
	if cfg.MaxRewriteBytes != 1024 {
		t.Errorf("MaxRewriteBytes = %d, want 1024", cfg.MaxRewriteBytes)
	}
	if cfg.UpstreamTLS != "standard" {
		t.Errorf("UpstreamTLS = %s, want standard", cfg.UpstreamTLS)
	}
	if cfg.PurchaseDebugOverride != "true" {
		t.Errorf("PurchaseDebugOverride = %s, want true", cfg.PurchaseDebugOverride)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_URL", "https://shop.example.com")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %s, want %s", cfg.Port, DefaultPort)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.DatabaseURL != DefaultDatabaseURL {
		t.Errorf("DatabaseURL = %s, want %s", cfg.DatabaseURL, DefaultDatabaseURL)
	}
	if cfg.UpstreamTLS != "chrome" {
		t.Errorf("UpstreamTLS = %s, want chrome", cfg.UpstreamTLS)
	}
	if cfg.SettingsRefresh != DefaultSettingsRefresh {
		t.Errorf("SettingsRefresh = %v, want %v", cfg.SettingsRefresh, DefaultSettingsRefresh)
	}
	if cfg.UpstreamTimeout != DefaultUpstreamTimeout {
		t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, DefaultUpstreamTimeout)
	}
	if cfg.MaxRewriteBytes != DefaultMaxRewriteBytes {
		t.Errorf("MaxRewriteBytes = %d, want %d", cfg.MaxRewriteBytes, DefaultMaxRewriteBytes)
	}
}

func TestLoadExplicitSiteID(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_URL", "https://shop.example.com")
	t.Setenv("SITE_ID", "blog_2")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SiteID != "blog_2" {
		t.Errorf("SiteID = %s, want blog_2", cfg.SiteID)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing store url",
			env:     map[string]string{},
			wantErr: "store_url is required",
		},
		{
			name:    "relative store url",
			env:     map[string]string{"STORE_URL": "shop.example.com"},
			wantErr: "invalid store_url",
		},
		{
			name:    "unknown tls mode",
			env:     map[string]string{"STORE_URL": "https://shop.example.com", "UPSTREAM_TLS": "firefox"},
			wantErr: "upstream_tls must be chrome or standard",
		},
		{
			name:    "bad duration",
			env:     map[string]string{"STORE_URL": "https://shop.example.com", "SETTINGS_REFRESH": "soon"},
			wantErr: "parsing SETTINGS_REFRESH",
		},
		{
			name:    "bad rewrite limit",
			env:     map[string]string{"STORE_URL": "https://shop.example.com", "MAX_REWRITE_BYTES": "lots"},
			wantErr: "parsing MAX_REWRITE_BYTES",
		},
		{
			name:    "production without project",
			env:     map[string]string{"STORE_URL": "https://shop.example.com", "ENVIRONMENT": "production"},
			wantErr: "GCP_PROJECT required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_FILE", writeFile(t, ".env", "STORE_URL=https://dotenv.example.com\nPORT=7070\n"))
	os.Unsetenv("PORT")
	os.Unsetenv("STORE_URL")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StoreURL != "https://dotenv.example.com" {
		t.Errorf("StoreURL = %s, want value from .env", cfg.StoreURL)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %s, want 7070", cfg.Port)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_FILE", writeFile(t, ".env", "STORE_URL=https://dotenv.example.com\n"))
	t.Setenv("STORE_URL", "https://env.example.com")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StoreURL != "https://env.example.com" {
		t.Errorf("StoreURL = %s, want env value to win", cfg.StoreURL)
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "config.json",
			content: `{
				"port": "9090",
				"environment": "test",
				"store_url": "https://file-shop.com",
				"site_id": "file_site",
				"settings_refresh": "1m",
				"upstream_timeout": "10s",
				"secrets": {"woo_api_key": "ck_file", "nonce_secret": "n"}
			}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `port: "9090"
environment: test
store_url: https://file-shop.com
site_id: file_site
settings_refresh: 1m
upstream_timeout: 10s
secrets:
  woo_api_key: ck_file
  nonce_secret: n
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CONFIG_FILE", writeFile(t, tt.file, tt.content))

			cfg, err := Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if cfg.Port != "9090" {
				t.Errorf("Port = %s, want 9090", cfg.Port)
			}
			if cfg.StoreURL != "https://file-shop.com" {
				t.Errorf("StoreURL = %s, want https://file-shop.com", cfg.StoreURL)
			}
			if cfg.SiteID != "file_site" {
				t.Errorf("SiteID = %s, want file_site", cfg.SiteID)
			}
			if cfg.SettingsRefresh != time.Minute {
				t.Errorf("SettingsRefresh = %v, want 1m", cfg.SettingsRefresh)
			}
			if cfg.UpstreamTimeout != 10*time.Second {
				t.Errorf("UpstreamTimeout = %v, want 10s", cfg.UpstreamTimeout)
			}
			if cfg.Secrets.WooAPIKey != "ck_file" {
				t.Errorf("WooAPIKey = %s, want ck_file", cfg.Secrets.WooAPIKey)
			}
			if cfg.UpstreamTLS != "chrome" {
				t.Errorf("UpstreamTLS = %s, want default chrome", cfg.UpstreamTLS)
			}
		})
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Run("file not found", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", "/nonexistent/config.json")
		if _, err := Load(context.Background()); err == nil {
			t.Error("expected error for nonexistent file")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", writeFile(t, "config.json", "{invalid json"))
		if _, err := Load(context.Background()); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", writeFile(t, "config.yml", "store_url: https://a.example\nsettings_refresh: later\n"))
		_, err := Load(context.Background())
		if err == nil || !strings.Contains(err.Error(), "settings_refresh") {
			t.Errorf("expected settings_refresh error, got: %v", err)
		}
	})

	t.Run("missing store_url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", writeFile(t, "config.json", `{"port": "1"}`))
		_, err := Load(context.Background())
		if err == nil || !strings.Contains(err.Error(), "store_url is required") {
			t.Errorf("expected store_url error, got: %v", err)
		}
	})
}

func TestDefaultSiteID(t *testing.T) {
	a := DefaultSiteID("https://shop.example.com")
	if !strings.HasPrefix(a, "wp_") || len(a) != 3+32 {
		t.Errorf("DefaultSiteID() = %s, want wp_ plus md5 hex", a)
	}
	if b := DefaultSiteID("https://shop.example.com/"); b != a {
		t.Errorf("DefaultSiteID() with trailing slash = %s, want %s", b, a)
	}
	if c := DefaultSiteID("https://other.example.com"); c == a {
		t.Error("DefaultSiteID() should differ per store")
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://shop.example.com", "shop.example.com"},
		{"http://localhost:8080", "localhost:8080"},
		{"https://shop.example.com/path/to/store", "shop.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := extractDomain(tt.url); got != tt.want {
				t.Errorf("extractDomain(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("PIXELFLOW_TEST_VAR", "set")
	if got := envOrDefault("PIXELFLOW_TEST_VAR", "default"); got != "set" {
		t.Errorf("envOrDefault() = %q, want set", got)
	}
	if got := envOrDefault("PIXELFLOW_TEST_UNSET", "default"); got != "default" {
		t.Errorf("envOrDefault() = %q, want default", got)
	}
}

func TestWithDefault(t *testing.T) {
	if got := withDefault("", "fallback"); got != "fallback" {
		t.Errorf("withDefault(\"\") = %q, want fallback", got)
	}
	if got := withDefault("value", "fallback"); got != "value" {
		t.Errorf("withDefault(\"value\") = %q, want value", got)
	}
}
