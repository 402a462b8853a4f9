// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, push
// provider credentials, delivery tuning, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-chat-push/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-chat-push")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// WebPushConfig defines the VAPID identity and Web Push delivery options.
// The web channel is disabled when either key is empty.
type WebPushConfig struct {
	PublicKey     string        // VAPID_PUBLIC_KEY (base64url, uncompressed P-256 point)
	PrivateKey    string        // VAPID_PRIVATE_KEY
	Subject       string        // VAPID_SUBJECT (mailto: or https:)
	TTL           time.Duration // WEBPUSH_TTL
	Urgency       string        // WEBPUSH_URGENCY: very-low|low|normal|high
	MaxAttempts   int           // WEBPUSH_MAX_ATTEMPTS (1 = no retry)
	AllowInsecure bool          // PUSH_ALLOW_INSECURE_ENDPOINTS (accept http:// endpoints)
}

// Enabled reports whether both VAPID keys are set.
func (w WebPushConfig) Enabled() bool {
	return w.PublicKey != "" && w.PrivateKey != ""
}

// FCMConfig defines Firebase Cloud Messaging credentials and mobile tuning.
// The mobile channel is disabled when no credentials are given.
type FCMConfig struct {
	CredentialsFile string        // FCM_CREDENTIALS_FILE (service-account JSON path)
	CredentialsJSON string        // FCM_CREDENTIALS_JSON (inline service-account JSON)
	AndroidChannel  string        // FCM_ANDROID_CHANNEL_ID
	IOSCategory     string        // FCM_IOS_CATEGORY
	Concurrency     int           // MOBILE_PUSH_CONCURRENCY
	MaxAttempts     int           // MOBILE_MAX_ATTEMPTS
	RetryBaseDelay  time.Duration // MOBILE_RETRY_BASE_DELAY
	SendTimeout     time.Duration // MOBILE_SEND_TIMEOUT
}

// Enabled reports whether any credential source is set.
func (f FCMConfig) Enabled() bool {
	return f.CredentialsFile != "" || f.CredentialsJSON != ""
}

// BreakerConfig defines the mobile circuit breaker.
type BreakerConfig struct {
	Threshold int           // BREAKER_THRESHOLD consecutive failures
	Timeout   time.Duration // BREAKER_TIMEOUT before a probe is allowed
}

// PushConfig groups delivery settings shared by both channels.
type PushConfig struct {
	Web     WebPushConfig
	FCM     FCMConfig
	Breaker BreakerConfig

	LookupTimeout  time.Duration // PUSH_LOOKUP_TIMEOUT for store reads
	DefaultIcon    string        // PUSH_DEFAULT_ICON
	DirectTruncate int           // PUSH_DIRECT_TRUNCATE (runes)
	GroupTruncate  int           // PUSH_GROUP_TRUNCATE (runes)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Delivery endpoints (/notifications/*) have their own buckets.
	DeliveryRateRPS   float64 // RATE_DELIVERY_RPS
	DeliveryRateBurst int     // RATE_DELIVERY_BURST

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Push delivery
	Push PushConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and validates the result.
//
// Unset or empty variables take their default. A variable that is set but
// does not parse is an error, as is every failed check; all of them are
// returned together.
func Load() (Config, error) {
	var e envReader
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBPath: e.str("DB_PATH", "push.db"),

		RateRPS:           e.float("RATE_RPS", 5.0),
		RateBurst:         e.int("RATE_BURST", 10),
		DeliveryRateRPS:   e.float("RATE_DELIVERY_RPS", 50.0),
		DeliveryRateBurst: e.int("RATE_DELIVERY_BURST", 200),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		Push: PushConfig{
			Web: WebPushConfig{
				PublicKey:     strings.TrimSpace(e.str("VAPID_PUBLIC_KEY", "")),
				PrivateKey:    strings.TrimSpace(e.str("VAPID_PRIVATE_KEY", "")),
				Subject:       normalizeSubject(e.first("mailto:admin@example.com", "VAPID_SUBJECT", "VAPID_EMAIL")),
				TTL:           e.dur("WEBPUSH_TTL", 24*time.Hour),
				Urgency:       strings.ToLower(e.str("WEBPUSH_URGENCY", "high")),
				MaxAttempts:   e.int("WEBPUSH_MAX_ATTEMPTS", 1),
				AllowInsecure: e.bool("PUSH_ALLOW_INSECURE_ENDPOINTS", false),
			},
			FCM: FCMConfig{
				CredentialsFile: e.first("", "FCM_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"),
				CredentialsJSON: e.str("FCM_CREDENTIALS_JSON", ""),
				AndroidChannel:  e.str("FCM_ANDROID_CHANNEL_ID", "messages"),
				IOSCategory:     e.str("FCM_IOS_CATEGORY", ""),
				Concurrency:     e.int("MOBILE_PUSH_CONCURRENCY", 4),
				MaxAttempts:     e.int("MOBILE_MAX_ATTEMPTS", 3),
				RetryBaseDelay:  e.dur("MOBILE_RETRY_BASE_DELAY", 100*time.Millisecond),
				SendTimeout:     e.dur("MOBILE_SEND_TIMEOUT", 10*time.Second),
			},
			Breaker: BreakerConfig{
				Threshold: e.int("BREAKER_THRESHOLD", 5),
				Timeout:   e.dur("BREAKER_TIMEOUT", 60*time.Second),
			},
			LookupTimeout:  e.dur("PUSH_LOOKUP_TIMEOUT", 5*time.Second),
			DefaultIcon:    e.str("PUSH_DEFAULT_ICON", "/icons/notification.png"),
			DirectTruncate: e.int("PUSH_DIRECT_TRUNCATE", 200),
			GroupTruncate:  e.int("PUSH_GROUP_TRUNCATE", 100),
		},

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-chat-push"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, errors.Join(append(e.errs, cfg.validate()...)...)
}

func (c Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.DeliveryRateRPS >= 0, "RATE_DELIVERY_RPS must be >= 0")
	check(c.DeliveryRateBurst >= 1, "RATE_DELIVERY_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return append(errs, c.Push.validate()...)
}

func (p PushConfig) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}
	check((p.Web.PublicKey == "") == (p.Web.PrivateKey == ""), "VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	switch p.Web.Urgency {
	case "very-low", "low", "normal", "high":
	default:
		errs = append(errs, errors.New("WEBPUSH_URGENCY must be one of: very-low, low, normal, high"))
	}
	check(p.Web.TTL >= 0, "WEBPUSH_TTL must be >= 0")
	check(p.Web.MaxAttempts >= 1, "WEBPUSH_MAX_ATTEMPTS must be >= 1")
	check(p.FCM.MaxAttempts >= 1, "MOBILE_MAX_ATTEMPTS must be >= 1")
	check(p.FCM.Concurrency >= 1, "MOBILE_PUSH_CONCURRENCY must be >= 1")
	check(p.FCM.RetryBaseDelay >= 0, "MOBILE_RETRY_BASE_DELAY must be >= 0")
	check(p.FCM.SendTimeout > 0, "MOBILE_SEND_TIMEOUT must be > 0")
	check(p.LookupTimeout > 0, "PUSH_LOOKUP_TIMEOUT must be > 0")
	check(p.Breaker.Threshold >= 1, "BREAKER_THRESHOLD must be >= 1")
	check(p.Breaker.Timeout > 0, "BREAKER_TIMEOUT must be > 0")
	check(p.DirectTruncate >= 1 && p.GroupTruncate >= 1, "PUSH_DIRECT_TRUNCATE and PUSH_GROUP_TRUNCATE must be >= 1")
	return errs
}

// normalizeSubject prefixes a bare contact address with "mailto:".
func normalizeSubject(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "mailto:") || strings.HasPrefix(s, "https:") {
		return s
	}
	return "mailto:" + s
}

// envReader reads typed variables and remembers the ones that fail to parse.
type envReader struct {
	errs []error
}

func (e *envReader) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	return v, ok && v != ""
}

func (e *envReader) fail(k, v, kind string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q is not a valid %s", k, v, kind))
}

func (e *envReader) str(k, def string) string {
	if v, ok := e.lookup(k); ok {
		return v
	}
	return def
}

// first returns the first non-empty of keys, for renamed variables.
func (e *envReader) first(def string, keys ...string) string {
	if v, ok := sysutil.LookupEnvAny(keys...); ok {
		return v
	}
	return def
}

func (e *envReader) float(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.fail(k, v, "number")
		return def
	}
	return f
}

func (e *envReader) int(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "integer")
		return def
	}
	return i
}

func (e *envReader) bool(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(k, v, "boolean")
	return def
}

func (e *envReader) dur(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "duration")
		return def
	}
	return d
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
