// Package config loads the engine's configuration: environment variables
// (with legacy SP_API_-prefixed aliases), and the accounts/owners/proxies
// JSON files under a config directory (notifications.json is read by
// internal/notify). Everything here is
// deploy-time configuration: loaded once at startup, never mutated at
// runtime.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default rate-limit intervals.
const (
	DefaultCatalogInterval = 700 * time.Millisecond
	DefaultBatchInterval   = 12 * time.Second
	DefaultPricingInterval = 2500 * time.Millisecond
	DefaultBaseWriteDelay  = 100 * time.Millisecond
)

// AmazonCredentials holds LWA refresh-token exchange material.
type AmazonCredentials struct {
	RefreshToken    string
	LWAAppID        string
	LWAClientSecret string
}

// RateIntervals holds the per-endpoint-class minimum intervals, overridable
// via SP_API_CATALOG_INTERVAL / SP_API_BATCH_INTERVAL (seconds).
type RateIntervals struct {
	Catalog   time.Duration
	Batch     time.Duration
	Pricing   time.Duration
	BaseWrite time.Duration
}

// Daemon holds the common daemon-runtime knobs shared by every long-lived
// process.
type Daemon struct {
	IntervalSeconds   int
	MaxRetries        int
	RetryDelaySeconds int
	LogDir            string
	LockDir           string
}

// Upload holds the upload-scheduler knobs.
type Upload struct {
	StartHour int
	EndHour   int
	BatchSize int
}

// Config is the merged, typed view of env vars + config directory.
type Config struct {
	ConfigDir     string
	StoreDBPath   string
	CacheDir      string
	AdminHTTPAddr string // empty disables the admin HTTP surface
	Amazon        AmazonCredentials
	Rates         RateIntervals
	Daemon        Daemon
	Upload        Upload
	DebugASIN     string
	v             *viper.Viper
}

// Default returns the engine's built-in defaults, used as the base that
// env vars and config files overlay.
func Default() *Config {
	return &Config{
		ConfigDir:     "./config",
		StoreDBPath:   "./data/store.db",
		CacheDir:      "./cache",
		AdminHTTPAddr: "127.0.0.1:9090",
		Rates: RateIntervals{
			Catalog:   DefaultCatalogInterval,
			Batch:     DefaultBatchInterval,
			Pricing:   DefaultPricingInterval,
			BaseWrite: DefaultBaseWriteDelay,
		},
		Daemon: Daemon{
			IntervalSeconds:   300,
			MaxRetries:        3,
			RetryDelaySeconds: 30,
			LogDir:            "./logs",
			LockDir:           "./logs",
		},
		Upload: Upload{
			StartHour: 6,
			EndHour:   23,
			BatchSize: 10,
		},
	}
}

// Load reads a local .env file (never overriding already-set OS env vars),
// then merges environment variables into a Default() config via viper.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is not an error

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	cfg.v = v

	cfg.Amazon.RefreshToken = firstNonEmpty(v.GetString("REFRESH_TOKEN"), v.GetString("SP_API_REFRESH_TOKEN"))
	cfg.Amazon.LWAAppID = firstNonEmpty(v.GetString("LWA_APP_ID"), v.GetString("SP_API_LWA_APP_ID"))
	cfg.Amazon.LWAClientSecret = firstNonEmpty(v.GetString("LWA_CLIENT_SECRET"), v.GetString("SP_API_LWA_CLIENT_SECRET"))

	if cfg.Amazon.RefreshToken == "" || cfg.Amazon.LWAAppID == "" || cfg.Amazon.LWAClientSecret == "" {
		return nil, fmt.Errorf("config: missing Amazon LWA credentials (REFRESH_TOKEN/LWA_APP_ID/LWA_CLIENT_SECRET)")
	}

	if s := v.GetString("SP_API_CATALOG_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s + "s"); err == nil {
			cfg.Rates.Catalog = d
		}
	}
	if s := v.GetString("SP_API_BATCH_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s + "s"); err == nil {
			cfg.Rates.Batch = d
		}
	}

	cfg.DebugASIN = v.GetString("DEBUG_ASIN")

	if d := v.GetString("CONFIG_DIR"); d != "" {
		cfg.ConfigDir = d
	}
	if d := v.GetString("STORE_DB_PATH"); d != "" {
		cfg.StoreDBPath = d
	}
	if d := v.GetString("CACHE_DIR"); d != "" {
		cfg.CacheDir = d
	}
	if d := v.GetString("ADMIN_HTTP_ADDR"); d != "" {
		cfg.AdminHTTPAddr = d
	}
	if d := v.GetString("LOG_DIR"); d != "" {
		cfg.Daemon.LogDir = d
		cfg.Daemon.LockDir = d
	}
	if n := v.GetInt("DAEMON_INTERVAL_SECONDS"); n > 0 {
		cfg.Daemon.IntervalSeconds = n
	}
	if n := v.GetInt("DAEMON_MAX_RETRIES"); n > 0 {
		cfg.Daemon.MaxRetries = n
	}
	if n := v.GetInt("DAEMON_RETRY_DELAY_SECONDS"); n > 0 {
		cfg.Daemon.RetryDelaySeconds = n
	}
	if n := v.GetInt("UPLOAD_BATCH_SIZE"); n > 0 {
		cfg.Upload.BatchSize = n
	}
	if v.IsSet("UPLOAD_START_HOUR") {
		cfg.Upload.StartHour = v.GetInt("UPLOAD_START_HOUR")
	}
	if v.IsSet("UPLOAD_END_HOUR") {
		cfg.Upload.EndHour = v.GetInt("UPLOAD_END_HOUR")
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
