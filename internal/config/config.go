package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration values.
type Config struct {
	Environment     string
	HTTPPort        string
	ServiceName     string
	DataDir         string
	DatabasePath    string
	AllowedOrigins  []string
	ExtensionOrigin string

	// Billing provider sync (gates whether the sync job runs at all).
	SyncURL      string
	SyncAPIKey   string
	SyncEnabled  bool
	SyncTimeout  time.Duration
	SyncTimezone string

	// Stripe checkout.
	StripeSecretKey    string
	StripeSuccessURL   string
	StripeCancelURL    string
	StripeCurrency     string
	StripeDonationLink string

	// Static bearer-token associations, token -> user email.
	APITokens map[string]string

	TelemetryEndpoint string
	TelemetryInsecure bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	dataDir := getEnv("DATA_DIR", "data")

	cfg := Config{
		Environment:     getEnv("APP_ENV", "development"),
		HTTPPort:        getEnv("PORT", "8787"),
		ServiceName:     getEnv("SERVICE_NAME", "kity-api"),
		DataDir:         dataDir,
		DatabasePath:    filepath.Join(dataDir, "users.db"),
		AllowedOrigins:  getList("ALLOWED_ORIGINS", []string{"http://localhost:8787", "http://127.0.0.1:8787"}),
		ExtensionOrigin: getEnv("EXTENSION_ORIGIN", "chrome-extension://<your-extension-id>"),

		SyncURL:      os.Getenv("EXTPAY_SYNC_URL"),
		SyncAPIKey:   os.Getenv("EXTPAY_API_KEY"),
		SyncEnabled:  getBool("EXTPAY_SYNC_ENABLED", false),
		SyncTimeout:  getDuration("EXTPAY_SYNC_TIMEOUT", 15*time.Second),
		SyncTimezone: getEnv("EXTPAY_SYNC_TIMEZONE", "UTC"),

		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),
		StripeSuccessURL:   getEnv("STRIPE_SUCCESS_URL", "https://kity.software/thank-you"),
		StripeCancelURL:    getEnv("STRIPE_CANCEL_URL", "https://kity.software/support"),
		StripeCurrency:     strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
		StripeDonationLink: os.Getenv("STRIPE_DONATION_LINK"),

		APITokens: getTokenMap("API_TOKENS"),

		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// getDuration accepts either a Go duration string or a bare number of
// seconds.
func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}

// getTokenMap parses comma-separated token=email pairs.
func getTokenMap(key string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		token, email, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found {
			continue
		}
		token = strings.TrimSpace(token)
		email = strings.TrimSpace(email)
		if token != "" && email != "" {
			tokens[token] = email
		}
	}
	return tokens
}
